// Package models содержит доменную модель пользовательского снимка (snapshot),
// включающую данные учётной записи и все формы хранения подписок,
// которые отдаёт бэкенд платформы. Структуры используются в бизнес‑логике,
// в хранилище учётных данных и при вычислении прав доступа.
package models

import "time"

// SubscriptionKind дискриминатор вида подписки в нормализованном списке.
type SubscriptionKind string

const (
	// KindClass — подписка на класс.
	KindClass SubscriptionKind = "class"
	// KindPreparation — подписка на подготовку к экзамену.
	KindPreparation SubscriptionKind = "preparation"
	// KindLegacy — устаревшее одиночное поле подписки.
	KindLegacy SubscriptionKind = "legacy"
	// KindGeneric — запись из общего списка активных подписок.
	KindGeneric SubscriptionKind = "generic"
)

// Статусы подписки, приходящие от бэкенда.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// RawSubscription представляет запись подписки в том виде, в котором её
// отдаёт бэкенд. Поле EndDate может быть nil — это означает отсутствие
// даты окончания, и тогда решающим является поле Status.
type RawSubscription struct {
	PlanName string     `json:"plan_name"` // Название тарифа
	Status   string     `json:"status"`    // Статус: active или expired
	EndDate  *time.Time `json:"end_date"`  // Дата окончания, имеет приоритет над Status
}

// Subscription — нормализованная запись подписки с явным видом.
// Оценщик прав доступа работает только с этой формой.
type Subscription struct {
	Kind    SubscriptionKind
	Status  string
	EndDate *time.Time
}

// UserSnapshot представляет последний полученный снимок профиля пользователя.
// Бэкенд исторически хранит подписки в нескольких пересекающихся формах:
// типизированные списки, общий список активных и устаревшее одиночное поле.
type UserSnapshot struct {
	UID   string `json:"uid"`   // Уникальный идентификатор пользователя
	Name  string `json:"name"`  // Имя пользователя
	Phone string `json:"phone"` // Телефон (логин для OTP)
	Email string `json:"email"` // Электронная почта

	HasActiveClassSubscription bool              `json:"has_active_class_subscription"`
	ClassSubscriptions         []RawSubscription `json:"class_subscriptions"`
	PreparationSubscriptions   []RawSubscription `json:"preparation_subscriptions"`
	ActiveSubscriptions        []RawSubscription `json:"active_subscriptions"`
	LegacySubscription         *RawSubscription  `json:"subscription"`
}

// Normalize приводит все формы хранения подписок к единому списку
// с дискриминатором вида. Вызывается один раз при загрузке снимка,
// дальше все вычисления идут только по нормализованному списку.
func (u *UserSnapshot) Normalize() []Subscription {
	if u == nil {
		return nil
	}
	var subs []Subscription
	for _, r := range u.ClassSubscriptions {
		subs = append(subs, Subscription{Kind: KindClass, Status: r.Status, EndDate: r.EndDate})
	}
	for _, r := range u.PreparationSubscriptions {
		subs = append(subs, Subscription{Kind: KindPreparation, Status: r.Status, EndDate: r.EndDate})
	}
	for _, r := range u.ActiveSubscriptions {
		subs = append(subs, Subscription{Kind: KindGeneric, Status: r.Status, EndDate: r.EndDate})
	}
	if u.LegacySubscription != nil {
		subs = append(subs, Subscription{
			Kind:    KindLegacy,
			Status:  u.LegacySubscription.Status,
			EndDate: u.LegacySubscription.EndDate,
		})
	}
	return subs
}
