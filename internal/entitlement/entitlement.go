// Package entitlement содержит чистые функции вычисления прав доступа
// по снимку пользователя. Функции детерминированы, не делают I/O
// и пересчитываются заново при каждом изменении снимка — никакого
// кеширования производных значений между снимками.
package entitlement

import (
	"time"

	"github.com/studyhub/session-guard/internal/models"
)

// State — производное состояние прав доступа пользователя.
type State struct {
	HasActiveSubscription            bool `json:"has_active_subscription"`
	IsSubscriptionExpired            bool `json:"is_subscription_expired"`
	IsClassSubscriptionExpired       bool `json:"is_class_subscription_expired"`
	IsPreparationSubscriptionExpired bool `json:"is_preparation_subscription_expired"`
}

// expired сообщает, истекла ли запись подписки на момент now.
// Если дата окончания задана, она имеет приоритет над полем Status:
// запись со status=active, но с прошедшим end_date считается истекшей.
func expired(sub models.Subscription, now time.Time) bool {
	if sub.EndDate != nil {
		return !sub.EndDate.After(now)
	}
	return sub.Status == models.StatusExpired
}

// active сообщает, действует ли запись подписки на момент now.
func active(sub models.Subscription, now time.Time) bool {
	if sub.EndDate != nil {
		return sub.EndDate.After(now)
	}
	return sub.Status == models.StatusActive
}

// HasActiveSubscription возвращает true, если хотя бы одна подписка
// любого вида действует, либо бэкенд выставил явный признак активной
// подписки на класс.
func HasActiveSubscription(snapshot *models.UserSnapshot, now time.Time) bool {
	if snapshot == nil {
		return false
	}
	if snapshot.HasActiveClassSubscription {
		return true
	}
	for _, sub := range snapshot.Normalize() {
		if active(sub, now) {
			return true
		}
	}
	return false
}

// IsSubscriptionExpired возвращает true, если хотя бы одна из когда-либо
// существовавших подписок истекла. Пользователь без единой записи
// подписки — "никогда не подписывался", а не "истёк": для него всегда false.
func IsSubscriptionExpired(snapshot *models.UserSnapshot, now time.Time) bool {
	if snapshot == nil {
		return false
	}
	for _, sub := range snapshot.Normalize() {
		if expired(sub, now) {
			return true
		}
	}
	return false
}

// IsClassSubscriptionExpired возвращает true, только если список подписок
// на классы непуст и истекла каждая его запись.
func IsClassSubscriptionExpired(snapshot *models.UserSnapshot, now time.Time) bool {
	return kindExpired(snapshot, models.KindClass, now)
}

// IsPreparationSubscriptionExpired возвращает true, только если список
// подписок на подготовку непуст и истекла каждая его запись.
func IsPreparationSubscriptionExpired(snapshot *models.UserSnapshot, now time.Time) bool {
	return kindExpired(snapshot, models.KindPreparation, now)
}

func kindExpired(snapshot *models.UserSnapshot, kind models.SubscriptionKind, now time.Time) bool {
	if snapshot == nil {
		return false
	}
	var seen bool
	for _, sub := range snapshot.Normalize() {
		if sub.Kind != kind {
			continue
		}
		seen = true
		if !expired(sub, now) {
			return false
		}
	}
	return seen
}

// Evaluate вычисляет все четыре признака за один проход по снимку.
func Evaluate(snapshot *models.UserSnapshot, now time.Time) State {
	return State{
		HasActiveSubscription:            HasActiveSubscription(snapshot, now),
		IsSubscriptionExpired:            IsSubscriptionExpired(snapshot, now),
		IsClassSubscriptionExpired:       IsClassSubscriptionExpired(snapshot, now),
		IsPreparationSubscriptionExpired: IsPreparationSubscriptionExpired(snapshot, now),
	}
}
