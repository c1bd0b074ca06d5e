// Package paymentprovider реализует клиент внешнего платёжного шлюза
// с размещённой страницей оплаты (hosted checkout).
package paymentprovider

import "time"

// Amount представляет денежную сумму.
type Amount struct {
	Value    string `json:"value"`    // сумма, например "499.00"
	Currency string `json:"currency"` // валюта, например "INR"
}

// Confirmation описывает способ подтверждения платежа.
// Для hosted checkout используется type=redirect с URL возврата.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// CreateOrderRequest представляет запрос на создание платёжного заказа.
type CreateOrderRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"` // user_uid, plan_id и др.
}

// CreateOrderResponse представляет ответ шлюза на создание заказа.
type CreateOrderResponse struct {
	ID           string       `json:"id"`     // ID заказа на стороне шлюза
	Status       string       `json:"status"` // статус, например "pending"
	Amount       Amount       `json:"amount"`
	Confirmation Confirmation `json:"confirmation"`
	CreatedAt    time.Time    `json:"created_at"`
}
