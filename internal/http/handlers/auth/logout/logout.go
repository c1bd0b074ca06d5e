// Package logout реализует HTTP-обработчик выхода: уничтожение
// сохранённых учётных данных пользователя.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/studyhub/session-guard/internal/http/middlewarectx"
	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/models"
)

// Service описывает интерфейс бизнес-логики выхода.
type Service interface {
	Logout(ctx context.Context, uid string) models.Result
}

// Handler обрабатывает HTTP-запросы выхода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

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

	res := h.service.Logout(r.Context(), uid)
	if !res.Success {
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(res.Message))
		return
	}

	log.Info("logout success", slog.String("uid", uid))
	render.JSON(w, r, response.OK())
}
