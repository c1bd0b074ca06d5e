package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/studyhub/session-guard/internal/guard"
	"github.com/studyhub/session-guard/internal/http/response"
	"github.com/studyhub/session-guard/internal/services/session"
)

// ExpiryModal — ключ контекста: контент отдан под модалкой истечения.
const ExpiryModal Key = "expiry_modal"

// HeaderExpiryModal выставляется в ответ, когда контент должен быть
// показан под неснимаемой модалкой истечения подписки.
const HeaderExpiryModal = "X-Subscription-Expiry-Modal"

var guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "session_guard_decisions_total",
	Help: "Terminal access guard decisions by kind.",
}, []string{"decision"})

// SessionLoader описывает контракт загрузчика сессии для охранника маршрутов.
type SessionLoader interface {
	Load(ctx context.Context, uid, path string) session.State
}

// GuardMiddleware создает middleware, который гонит каждый запрос через
// решение охранника маршрутов. pathPrefix отрезается от URL, чтобы
// сверять с allow-list путь навигации портала, а не путь API.
// Редиректы отдаются как JSON с целевым путём; решение о модалке
// истечения не прерывает запрос — контент отдаётся с заголовком
// HeaderExpiryModal, и клиент рендерит его инертным под модалкой,
// не теряя локального состояния страницы.
func GuardMiddleware(loader SessionLoader, pathPrefix string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, _ := r.Context().Value(UserUID).(string)
			path := strings.TrimPrefix(r.URL.Path, pathPrefix)
			if path == "" {
				path = "/"
			}

			st := loader.Load(r.Context(), uid, path)
			decision := guard.Decide(guard.State{
				Loading:       st.Loading,
				Authenticated: st.Authenticated,
				Entitlements:  st.Entitlements,
			}, path)
			guardDecisions.WithLabelValues(string(decision)).Inc()

			switch decision {
			case guard.DecisionRedirectLogin:
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.OKWithData(map[string]string{
					"decision":    string(decision),
					"redirect_to": guard.RedirectTarget(decision),
				}))
			case guard.DecisionRedirectPlans:
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.OKWithData(map[string]string{
					"decision":    string(decision),
					"redirect_to": guard.RedirectTarget(decision),
				}))
			case guard.DecisionExpiryModal:
				w.Header().Set(HeaderExpiryModal, "true")
				ctx := context.WithValue(r.Context(), ExpiryModal, true)
				next.ServeHTTP(w, r.WithContext(ctx))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
