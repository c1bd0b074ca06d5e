package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/session-guard/internal/lib/clock"
	"github.com/studyhub/session-guard/internal/models"
	"github.com/studyhub/session-guard/internal/paymentflow"
	"github.com/studyhub/session-guard/internal/paymentprovider"
)

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) CreateOrder(ctx context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.CreateOrderResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*paymentprovider.CreateOrderResponse)
	return resp, args.Error(1)
}

type OrderRepositoryMock struct{ mock.Mock }

func (m *OrderRepositoryMock) CreateOrder(ctx context.Context, order models.PaymentOrder) (int, error) {
	args := m.Called(ctx, order)
	return args.Int(0), args.Error(1)
}
func (m *OrderRepositoryMock) MarkOrderStatus(ctx context.Context, orderID, status string) (int, error) {
	args := m.Called(ctx, orderID, status)
	return args.Int(0), args.Error(1)
}
func (m *OrderRepositoryMock) GetOrderByID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*models.PaymentOrder)
	return order, args.Error(1)
}
func (m *OrderRepositoryMock) ListOrders(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentOrder, error) {
	args := m.Called(ctx, userUID, limit, offset)
	orders, _ := args.Get(0).([]*models.PaymentOrder)
	return orders, args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Publish(routingkey string, message any) error {
	return m.Called(routingkey, message).Error(0)
}

type flagMemory struct {
	flags map[string]models.PaymentFlag
}

func (f *flagMemory) SaveFlag(_ context.Context, uid string, flag models.PaymentFlag) error {
	f.flags[uid] = flag
	return nil
}
func (f *flagMemory) LoadFlag(_ context.Context, uid string) (models.PaymentFlag, error) {
	return f.flags[uid], nil
}
func (f *flagMemory) ClearFlag(_ context.Context, uid string) error {
	delete(f.flags, uid)
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(clk clock.Clock) (*Service, *ProviderMock, *OrderRepositoryMock, *NotifierMock) {
	providerMock := new(ProviderMock)
	ordersMock := new(OrderRepositoryMock)
	notifierMock := new(NotifierMock)
	flow := paymentflow.New(&flagMemory{flags: make(map[string]models.PaymentFlag)}, clk,
		30*time.Minute, 5*time.Minute)
	return New(providerMock, ordersMock, flow, notifierMock, newNoopLogger()),
		providerMock, ordersMock, notifierMock
}

func gatewayResponse(id string) *paymentprovider.CreateOrderResponse {
	return &paymentprovider.CreateOrderResponse{
		ID:     id,
		Status: "pending",
		Confirmation: paymentprovider.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://gateway.example/confirm/" + id,
		},
	}
}

func TestCreatePayment_HappyPath(t *testing.T) {
	svc, providerMock, ordersMock, _ := newTestService(clock.NewFake(start))

	providerMock.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req paymentprovider.CreateOrderRequest) bool {
		return req.Amount.Value == "990.00" &&
			req.Confirmation.ReturnURL == "https://app.example/payment/return" &&
			req.Metadata["plan_id"] == "plan-1"
	})).Return(gatewayResponse("gw-1"), nil).Once()
	ordersMock.On("CreateOrder", mock.Anything, mock.MatchedBy(func(order models.PaymentOrder) bool {
		return order.UserUID == "u1" && order.OrderID == "gw-1" && order.Status == "pending"
	})).Return(1, nil).Once()

	checkout, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")

	require.NoError(t, err)
	assert.Equal(t, "gw-1", checkout.OrderID)
	assert.Equal(t, "https://gateway.example/confirm/gw-1", checkout.ConfirmationURL)
	providerMock.AssertExpectations(t)
	ordersMock.AssertExpectations(t)
}

func TestCreatePayment_DuplicateWithinWindowRejectedLocally(t *testing.T) {
	clk := clock.NewFake(start)
	svc, providerMock, ordersMock, _ := newTestService(clk)

	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(gatewayResponse("gw-1"), nil).Once()
	ordersMock.On("CreateOrder", mock.Anything, mock.Anything).Return(1, nil).Once()

	_, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.NoError(t, err)

	clk.Advance(time.Minute)

	_, err = svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.ErrorIs(t, err, ErrDuplicateSubmission)

	// Повтор отклонён до обращения к шлюзу.
	providerMock.AssertNumberOfCalls(t, "CreateOrder", 1)
	ordersMock.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCreatePayment_RetryAfterDuplicateWindowProceeds(t *testing.T) {
	clk := clock.NewFake(start)
	svc, providerMock, ordersMock, _ := newTestService(clk)

	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(gatewayResponse("gw-1"), nil).Once()
	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(gatewayResponse("gw-2"), nil).Once()
	ordersMock.On("CreateOrder", mock.Anything, mock.Anything).Return(1, nil).Twice()

	_, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.NoError(t, err)

	clk.Advance(6 * time.Minute)

	checkout, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.NoError(t, err)
	assert.Equal(t, "gw-2", checkout.OrderID)
	providerMock.AssertNumberOfCalls(t, "CreateOrder", 2)
}

func TestCreatePayment_GatewayErrorDoesNotArmFlag(t *testing.T) {
	clk := clock.NewFake(start)
	svc, providerMock, ordersMock, _ := newTestService(clk)

	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway timeout")).Once()
	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(gatewayResponse("gw-2"), nil).Once()
	ordersMock.On("CreateOrder", mock.Anything, mock.Anything).Return(1, nil).Once()

	_, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.Error(t, err)

	// Маркер не взведён, немедленный повтор проходит.
	checkout, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.NoError(t, err)
	assert.Equal(t, "gw-2", checkout.OrderID)
}

func TestHandleCallback_ClearsFlagAndPublishes(t *testing.T) {
	clk := clock.NewFake(start)
	svc, providerMock, ordersMock, notifierMock := newTestService(clk)

	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(gatewayResponse("gw-1"), nil).Once()
	ordersMock.On("CreateOrder", mock.Anything, mock.Anything).Return(1, nil).Once()

	_, err := svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.NoError(t, err)

	ordersMock.On("MarkOrderStatus", mock.Anything, "gw-1", "succeeded").Return(1, nil).Once()
	notifierMock.On("Publish", "payment.succeeded", map[string]string{
		"user_uid": "u1",
		"order_id": "gw-1",
		"status":   "succeeded",
	}).Return(nil).Once()

	err = svc.HandleCallback(context.Background(), CallbackEvent{
		OrderID: "gw-1", Status: "succeeded", UserUID: "u1",
	})
	require.NoError(t, err)

	// Маркер снят: немедленная новая оплата не считается дублем.
	providerMock.On("CreateOrder", mock.Anything, mock.Anything).
		Return(gatewayResponse("gw-2"), nil).Once()
	ordersMock.On("CreateOrder", mock.Anything, mock.Anything).Return(2, nil).Once()

	_, err = svc.CreatePayment(context.Background(), "u1", "plan-1",
		"990.00", "RUB", "https://app.example/payment/return")
	require.NoError(t, err)
	notifierMock.AssertExpectations(t)
}

func TestHandleCallback_ResolvesUserFromLedger(t *testing.T) {
	svc, _, ordersMock, notifierMock := newTestService(clock.NewFake(start))

	ordersMock.On("GetOrderByID", mock.Anything, "gw-1").
		Return(&models.PaymentOrder{UserUID: "u1", OrderID: "gw-1"}, nil).Once()
	ordersMock.On("MarkOrderStatus", mock.Anything, "gw-1", "canceled").Return(1, nil).Once()
	notifierMock.On("Publish", "payment.canceled", mock.Anything).Return(nil).Once()

	err := svc.HandleCallback(context.Background(), CallbackEvent{
		OrderID: "gw-1", Status: "canceled",
	})
	require.NoError(t, err)
	ordersMock.AssertExpectations(t)
}

func TestHandleCallback_PublishFailureIsNotFatal(t *testing.T) {
	svc, _, ordersMock, notifierMock := newTestService(clock.NewFake(start))

	ordersMock.On("MarkOrderStatus", mock.Anything, "gw-1", "succeeded").Return(1, nil).Once()
	notifierMock.On("Publish", "payment.succeeded", mock.Anything).
		Return(errors.New("broker down")).Once()

	err := svc.HandleCallback(context.Background(), CallbackEvent{
		OrderID: "gw-1", Status: "succeeded", UserUID: "u1",
	})
	assert.NoError(t, err)
}
