// Package paymentcreate реализует HTTP-обработчик создания платёжного заказа.
//
// Повторная попытка оплаты внутри окна защиты от дублей отклоняется
// локально, с явным сообщением пользователю, без обращения к шлюзу.
package paymentcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/studyhub/session-guard/internal/http/middlewarectx"
	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/lib/sl"
	paymentservice "github.com/studyhub/session-guard/internal/services/payment"
)

// Request — структура входных данных для создания заказа.
type Request struct {
	PlanID   string `json:"plan_id" validate:"required"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

// Service описывает интерфейс создания платежа.
type Service interface {
	CreatePayment(ctx context.Context, uid, planID, amount, currency, returnURL string) (*paymentservice.Checkout, error)
}

// Handler обрабатывает HTTP-запросы создания платежа.
type Handler struct {
	log       *slog.Logger
	service   Service
	returnURL string
	validate  *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, returnURL string) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		returnURL: returnURL,
		validate:  validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создание платёжного заказа
// @Description Создаёт заказ на платёжном шлюзе и возвращает URL страницы оплаты. Повторная попытка в течение пяти минут отклоняется.
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body Request true "Параметры заказа"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Платёж уже выполняется"
// @Router /payments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || uid == "" {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	checkout, err := h.service.CreatePayment(r.Context(), uid, req.PlanID, req.Amount, req.Currency, h.returnURL)
	if errors.Is(err, paymentservice.ErrDuplicateSubmission) {
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("payment already in progress, please wait before retrying"))
		return
	}
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("failed to create payment"))
		return
	}

	log.Info("payment order created", slog.String("order_id", checkout.OrderID))
	render.JSON(w, r, response.OKWithData(checkout))
}
