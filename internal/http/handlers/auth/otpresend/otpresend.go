// Package otpresend реализует HTTP-обработчик повторной отправки кода.
package otpresend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/lib/sl"
	"github.com/studyhub/session-guard/internal/models"
)

// Request — структура входных данных для повторной отправки кода.
type Request struct {
	Phone string `json:"phone" validate:"required,e164"`
}

// Service описывает интерфейс повторной отправки одноразового кода.
type Service interface {
	ResendOTP(ctx context.Context, phone string) models.Result
}

// Handler обрабатывает HTTP-запросы повторной отправки кода.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.otpresend"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	res := h.service.ResendOTP(r.Context(), req.Phone)
	if !res.Success {
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error(res.Message))
		return
	}

	render.JSON(w, r, response.OK())
}
