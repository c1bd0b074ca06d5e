// Package models содержит доменные структуры сессии: сохранённые учётные
// данные, флаг платёжного потока и единый формат результата операций.
package models

import "time"

// Session представляет сохранённые учётные данные пользователя.
// Token и Snapshot записываются и очищаются как единое целое;
// Snapshot может быть nil, если сохранённый снимок не удалось разобрать —
// в этом случае токен всё ещё подлежит проверке.
type Session struct {
	Token    string
	Snapshot *UserSnapshot
}

// PaymentFlag — ограниченный по времени маркер того, что пользователь
// был перенаправлен на внешний платёжный шлюз. Пока маркер валиден,
// логика инвалидации сессии не должна очищать учётные данные.
type PaymentFlag struct {
	InProgress bool
	OrderID    string
	StartedAt  time.Time
}

// PaymentOrder — запись журнала платёжных заказов пользователя.
type PaymentOrder struct {
	ID        int
	UserUID   string
	OrderID   string // Идентификатор заказа на стороне шлюза
	PlanID    string
	Amount    string
	Currency  string
	Status    string
	CreatedAt time.Time
}

// Result — единый формат результата публичных операций сервиса.
// Операции не выбрасывают ошибки наружу: вызывающая сторона всегда
// получает признак успеха и, при неуспехе, сообщение для пользователя.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK возвращает успешный Result.
func OK() Result {
	return Result{Success: true}
}

// Fail возвращает Result с сообщением об ошибке.
func Fail(msg string) Result {
	return Result{Success: false, Message: msg}
}
