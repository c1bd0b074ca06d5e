package paymentflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/session-guard/internal/lib/clock"
	"github.com/studyhub/session-guard/internal/models"
)

type FlagStoreMock struct{ mock.Mock }

func (m *FlagStoreMock) SaveFlag(ctx context.Context, uid string, flag models.PaymentFlag) error {
	return m.Called(ctx, uid, flag).Error(0)
}
func (m *FlagStoreMock) LoadFlag(ctx context.Context, uid string) (models.PaymentFlag, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(models.PaymentFlag), args.Error(1)
}
func (m *FlagStoreMock) ClearFlag(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newGuard(clk clock.Clock) (*Guard, *FlagStoreMock) {
	storeMock := new(FlagStoreMock)
	return New(storeMock, clk, 30*time.Minute, 5*time.Minute), storeMock
}

func TestGuard_Begin_StampsCurrentTime(t *testing.T) {
	clk := clock.NewFake(start)
	g, storeMock := newGuard(clk)

	storeMock.On("SaveFlag", mock.Anything, "u1", models.PaymentFlag{
		InProgress: true,
		OrderID:    "order-1",
		StartedAt:  start,
	}).Return(nil).Once()

	require.NoError(t, g.Begin(context.Background(), "u1", "order-1"))
	storeMock.AssertExpectations(t)
}

func TestGuard_TwoValidityWindows(t *testing.T) {
	tests := []struct {
		name             string
		age              time.Duration
		inProgress       bool
		wantPreservation bool
		wantDuplicate    bool
	}{
		{"fresh flag valid for both", time.Minute, true, true, true},
		{"ten minutes old preserves session but allows retry", 10 * time.Minute, true, true, false},
		{"just under duplicate window", 4*time.Minute + 59*time.Second, true, true, true},
		{"over preservation window is stale for both", 31 * time.Minute, true, false, false},
		{"flag not in progress", time.Minute, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewFake(start.Add(tt.age))
			g, _ := newGuard(clk)

			flag := models.PaymentFlag{InProgress: tt.inProgress, OrderID: "o", StartedAt: start}
			assert.Equal(t, tt.wantPreservation, g.ValidForSessionPreservation(flag))
			assert.Equal(t, tt.wantDuplicate, g.ValidForDuplicateGuard(flag))
		})
	}
}

func TestGuard_End_ClearsFlag(t *testing.T) {
	g, storeMock := newGuard(clock.NewFake(start))
	storeMock.On("ClearFlag", mock.Anything, "u1").Return(nil).Once()

	require.NoError(t, g.End(context.Background(), "u1"))
	storeMock.AssertExpectations(t)
}

func TestGuard_StaleFlagIsIgnoredNotDeleted(t *testing.T) {
	clk := clock.NewFake(start.Add(time.Hour))
	g, storeMock := newGuard(clk)

	stale := models.PaymentFlag{InProgress: true, OrderID: "o", StartedAt: start}
	storeMock.On("LoadFlag", mock.Anything, "u1").Return(stale, nil).Once()

	flag, err := g.Flag(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, flag.InProgress)
	assert.False(t, g.ValidForSessionPreservation(flag))
	storeMock.AssertNotCalled(t, "ClearFlag", mock.Anything, mock.Anything)
}
