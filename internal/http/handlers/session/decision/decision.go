// Package decision реализует HTTP-обработчик решения охранника маршрутов:
// по текущей сессии и запрошенному пути возвращает одно из терминальных
// решений — allow, redirect-login, redirect-plans или expiry-modal.
package decision

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/studyhub/session-guard/internal/guard"
	"github.com/studyhub/session-guard/internal/http/middlewarectx"
	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/services/session"
)

// Service описывает интерфейс загрузчика сессии.
type Service interface {
	Load(ctx context.Context, uid, path string) session.State
}

// Handler обрабатывает HTTP-запросы решения о доступе.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.decision"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	path := r.URL.Query().Get("path")
	if path == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("query parameter path is required"))
		return
	}

	// Для неаутентифицированного запроса uid пуст: загрузчик вернёт
	// состояние "unauthenticated", а охранник — редирект на вход.
	uid, _ := r.Context().Value(middlewarectx.UserUID).(string)

	st := h.service.Load(r.Context(), uid, path)
	d := guard.Decide(guard.State{
		Loading:       st.Loading,
		Authenticated: st.Authenticated,
		Entitlements:  st.Entitlements,
	}, path)

	log.Info("guard decision", slog.String("path", path), slog.String("decision", string(d)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"decision":     d,
		"redirect_to":  guard.RedirectTarget(d),
		"entitlements": st.Entitlements,
	}))
}
