package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studyhub/session-guard/internal/models"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func future() *time.Time { return datePtr(now.AddDate(0, 1, 0)) }
func past() *time.Time   { return datePtr(now.AddDate(0, -1, 0)) }

func TestEvaluate_NeverSubscribedUser(t *testing.T) {
	// Пользователь без единой записи подписки: не "истёк", а "никогда не подписывался".
	snapshot := &models.UserSnapshot{UID: "u1", Name: "student"}

	state := Evaluate(snapshot, now)

	assert.False(t, state.HasActiveSubscription)
	assert.False(t, state.IsSubscriptionExpired)
	assert.False(t, state.IsClassSubscriptionExpired)
	assert.False(t, state.IsPreparationSubscriptionExpired)
}

func TestEvaluate_NilSnapshot(t *testing.T) {
	state := Evaluate(nil, now)

	assert.False(t, state.HasActiveSubscription)
	assert.False(t, state.IsSubscriptionExpired)
}

func TestIsSubscriptionExpired_EndDateWinsOverStatus(t *testing.T) {
	// status=active, но end_date в прошлом: запись истекла.
	snapshot := &models.UserSnapshot{
		ClassSubscriptions: []models.RawSubscription{
			{Status: models.StatusActive, EndDate: past()},
		},
	}

	assert.True(t, IsSubscriptionExpired(snapshot, now))
	assert.False(t, HasActiveSubscription(snapshot, now))
}

func TestHasActiveSubscription(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *models.UserSnapshot
		want     bool
	}{
		{
			name:     "explicit class flag",
			snapshot: &models.UserSnapshot{HasActiveClassSubscription: true},
			want:     true,
		},
		{
			name: "class subscription with future end date",
			snapshot: &models.UserSnapshot{
				ClassSubscriptions: []models.RawSubscription{{Status: models.StatusActive, EndDate: future()}},
			},
			want: true,
		},
		{
			name: "preparation subscription active without end date",
			snapshot: &models.UserSnapshot{
				PreparationSubscriptions: []models.RawSubscription{{Status: models.StatusActive}},
			},
			want: true,
		},
		{
			name: "generic list entry active",
			snapshot: &models.UserSnapshot{
				ActiveSubscriptions: []models.RawSubscription{{Status: models.StatusActive, EndDate: future()}},
			},
			want: true,
		},
		{
			name: "legacy field active without end date",
			snapshot: &models.UserSnapshot{
				LegacySubscription: &models.RawSubscription{Status: models.StatusActive},
			},
			want: true,
		},
		{
			name: "legacy field active but end date passed",
			snapshot: &models.UserSnapshot{
				LegacySubscription: &models.RawSubscription{Status: models.StatusActive, EndDate: past()},
			},
			want: false,
		},
		{
			name: "only expired records",
			snapshot: &models.UserSnapshot{
				ClassSubscriptions: []models.RawSubscription{{Status: models.StatusExpired}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasActiveSubscription(tt.snapshot, now))
		})
	}
}

func TestIsClassSubscriptionExpired_AllVsAny(t *testing.T) {
	tests := []struct {
		name string
		subs []models.RawSubscription
		want bool
	}{
		{
			name: "empty list is not expired",
			subs: nil,
			want: false,
		},
		{
			name: "all entries expired",
			subs: []models.RawSubscription{
				{Status: models.StatusExpired},
				{Status: models.StatusActive, EndDate: past()},
			},
			want: true,
		},
		{
			name: "single active entry among expired makes it false",
			subs: []models.RawSubscription{
				{Status: models.StatusExpired},
				{Status: models.StatusActive, EndDate: future()},
				{Status: models.StatusActive, EndDate: past()},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := &models.UserSnapshot{ClassSubscriptions: tt.subs}
			assert.Equal(t, tt.want, IsClassSubscriptionExpired(snapshot, now))
		})
	}
}

func TestIsPreparationSubscriptionExpired_IgnoresOtherKinds(t *testing.T) {
	// Истекшие подписки на классы не делают "истекшей" подготовку.
	snapshot := &models.UserSnapshot{
		ClassSubscriptions: []models.RawSubscription{{Status: models.StatusExpired}},
	}

	assert.False(t, IsPreparationSubscriptionExpired(snapshot, now))
	assert.True(t, IsClassSubscriptionExpired(snapshot, now))
}

func TestEvaluate_RecomputesFromScratch(t *testing.T) {
	// Удаление подписок на бэкенде сбрасывает "истёк" до "никогда не подписывался".
	withExpired := &models.UserSnapshot{
		ClassSubscriptions: []models.RawSubscription{{Status: models.StatusExpired}},
	}
	assert.True(t, Evaluate(withExpired, now).IsSubscriptionExpired)

	withoutAny := &models.UserSnapshot{UID: withExpired.UID}
	assert.False(t, Evaluate(withoutAny, now).IsSubscriptionExpired)
}
