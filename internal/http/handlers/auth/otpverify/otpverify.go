// Package otpverify реализует HTTP-обработчик проверки одноразового кода.
//
// При успешной проверке создаётся сессия и выпускается сессионный JWT;
// в ответ также попадает признак нового пользователя для онбординга.
package otpverify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/lib/jwt"
	"github.com/studyhub/session-guard/internal/lib/sl"
	"github.com/studyhub/session-guard/internal/models"
)

// Request — структура входных данных для проверки кода.
type Request struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

// Service описывает интерфейс проверки одноразового кода.
type Service interface {
	VerifyOTP(ctx context.Context, phone, code string) (*models.UserSnapshot, bool, models.Result)
}

// Handler обрабатывает HTTP-запросы проверки кода.
type Handler struct {
	log      *slog.Logger
	service  Service
	jwtMaker jwt.Maker
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, jwtMaker jwt.Maker) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		jwtMaker: jwtMaker,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.otpverify"

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

	snapshot, isNew, res := h.service.VerifyOTP(r.Context(), req.Phone, req.Code)
	if !res.Success {
		log.Info("otp verification rejected", slog.String("reason", res.Message))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error(res.Message))
		return
	}

	sessionToken, err := h.jwtMaker.GenerateToken(snapshot.Name, snapshot.UID)
	if err != nil {
		log.Error("failed to issue session token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("otp verified", slog.Bool("is_new_user", isNew))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_token": sessionToken,
		"user":          snapshot,
		"is_new_user":   isNew,
	}))
}
