// Package me реализует HTTP-обработчик получения текущего пользователя:
// повторную загрузку сессии по требованию с пересчётом прав доступа.
package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/studyhub/session-guard/internal/http/middlewarectx"
	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/models"
	"github.com/studyhub/session-guard/internal/services/session"
)

// Service описывает интерфейс загрузки текущего пользователя.
type Service interface {
	GetCurrentUser(ctx context.Context, uid, path string) (session.State, models.Result)
}

// Handler обрабатывает HTTP-запросы текущего пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Description Сверяет сессию с бэкендом и возвращает снимок пользователя с правами доступа.
// @Tags Session
// @Produce json
// @Param path query string false "Текущий путь навигации клиента"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.me"

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

	path := r.URL.Query().Get("path")
	st, res := h.service.GetCurrentUser(r.Context(), uid, path)
	if !res.Success {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error(res.Message))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"user":         st.Snapshot,
		"entitlements": st.Entitlements,
	}))
}
