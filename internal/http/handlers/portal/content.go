// Package portal реализует обработчик защищённых страниц портала.
//
// Сам контент страниц отдаёт бэкенд платформы; этот обработчик —
// точка, через которую клиент узнаёт итог решения охранника для
// конкретного пути: доступ разрешён или контент под модалкой истечения.
package portal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/studyhub/session-guard/internal/http/middlewarectx"
	"github.com/studyhub/session-guard/internal/http/response"
)

// Handler отдаёт решение по защищённому пути портала.
type Handler struct {
	log *slog.Logger
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	modal, _ := r.Context().Value(middlewarectx.ExpiryModal).(bool)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"path":         r.URL.Path,
		"expiry_modal": modal,
	}))
}
