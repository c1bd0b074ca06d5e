// Package payment содержит бизнес-логику платёжного потока: создание
// заказа на шлюзе с локальной защитой от повторной отправки, ведение
// журнала заказов и обработку колбэка шлюза.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/studyhub/session-guard/internal/lib/sl"
	"github.com/studyhub/session-guard/internal/models"
	"github.com/studyhub/session-guard/internal/paymentprovider"
)

// ErrDuplicateSubmission означает повторную попытку оплаты внутри окна
// защиты от дублей. Отклоняется локально, до какого-либо сетевого вызова.
var ErrDuplicateSubmission = errors.New("payment already in progress")

// Provider описывает контракт клиента платёжного шлюза.
type Provider interface {
	CreateOrder(ctx context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.CreateOrderResponse, error)
}

// OrderRepository описывает контракт журнала платёжных заказов.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order models.PaymentOrder) (int, error)
	MarkOrderStatus(ctx context.Context, orderID, status string) (int, error)
	GetOrderByID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	ListOrders(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentOrder, error)
}

// Flow описывает операции платёжного маркера, нужные сервису платежей.
type Flow interface {
	Begin(ctx context.Context, uid, orderID string) error
	End(ctx context.Context, uid string) error
	Flag(ctx context.Context, uid string) (models.PaymentFlag, error)
	ValidForDuplicateGuard(flag models.PaymentFlag) bool
}

// Notifier описывает публикацию событий уведомлений.
type Notifier interface {
	Publish(routingkey string, message any) error
}

// Service реализует платёжный поток.
type Service struct {
	provider Provider
	orders   OrderRepository
	flow     Flow
	notifier Notifier
	log      *slog.Logger
}

// New создает новый Service.
func New(provider Provider, orders OrderRepository, flow Flow, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		provider: provider,
		orders:   orders,
		flow:     flow,
		notifier: notifier,
		log:      log,
	}
}

// Checkout — результат успешного создания заказа: куда редиректить
// пользователя и какой заказ числится за ним в журнале.
type Checkout struct {
	OrderID         string `json:"order_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

// CreatePayment создает платёжный заказ. Сначала локально проверяется
// окно защиты от дублей; повторная попытка внутри окна отклоняется
// без обращения к шлюзу. При успехе заказ пишется в журнал и взводится
// платёжный маркер.
func (s *Service) CreatePayment(ctx context.Context, uid, planID, amount, currency, returnURL string) (*Checkout, error) {
	const op = "payment.CreatePayment"
	log := s.log.With(slog.String("op", op), slog.String("uid", uid))

	flag, err := s.flow.Flag(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.flow.ValidForDuplicateGuard(flag) {
		log.Info("duplicate payment submission rejected", slog.String("order_id", flag.OrderID))
		return nil, ErrDuplicateSubmission
	}

	resp, err := s.provider.CreateOrder(ctx, paymentprovider.CreateOrderRequest{
		Amount: paymentprovider.Amount{Value: amount, Currency: currency},
		Confirmation: paymentprovider.Confirmation{
			Type:      "redirect",
			ReturnURL: returnURL,
		},
		Description: "subscription plan " + planID,
		Metadata: map[string]string{
			"user_uid":   uid,
			"plan_id":    planID,
			"request_id": uuid.New().String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order := models.PaymentOrder{
		UserUID:  uid,
		OrderID:  resp.ID,
		PlanID:   planID,
		Amount:   amount,
		Currency: currency,
		Status:   resp.Status,
	}
	if _, err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.flow.Begin(ctx, uid, resp.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("payment order created", slog.String("order_id", resp.ID))

	return &Checkout{
		OrderID:         resp.ID,
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
	}, nil
}

// CallbackEvent — событие колбэка шлюза после разбора вебхука.
type CallbackEvent struct {
	OrderID string
	Status  string
	UserUID string
}

// HandleCallback обрабатывает колбэк шлюза: обновляет журнал, снимает
// платёжный маркер и публикует событие уведомления. Маркер снимается
// и при успехе, и при неуспехе платежа.
func (s *Service) HandleCallback(ctx context.Context, event CallbackEvent) error {
	const op = "payment.HandleCallback"
	log := s.log.With(slog.String("op", op), slog.String("order_id", event.OrderID))

	uid := event.UserUID
	if uid == "" {
		order, err := s.orders.GetOrderByID(ctx, event.OrderID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		uid = order.UserUID
	}

	if _, err := s.orders.MarkOrderStatus(ctx, event.OrderID, event.Status); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.flow.End(ctx, uid); err != nil {
		log.Warn("failed to clear payment flag", sl.Err(err))
	}

	if err := s.notifier.Publish("payment."+event.Status, map[string]string{
		"user_uid": uid,
		"order_id": event.OrderID,
		"status":   event.Status,
	}); err != nil {
		log.Warn("failed to publish payment event", sl.Err(err))
	}

	log.Info("payment callback processed", slog.String("status", event.Status))
	return nil
}

// ListOrders возвращает журнал заказов пользователя.
func (s *Service) ListOrders(ctx context.Context, uid string, limit, offset int) ([]*models.PaymentOrder, error) {
	return s.orders.ListOrders(ctx, uid, limit, offset)
}
