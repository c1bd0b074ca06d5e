// Package sessionguard предоставляет маршруты приложения.
package sessionguard

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/studyhub/session-guard/internal/config"
	"github.com/studyhub/session-guard/internal/http/handlers/auth/login"
	"github.com/studyhub/session-guard/internal/http/handlers/auth/logout"
	"github.com/studyhub/session-guard/internal/http/handlers/auth/otpresend"
	"github.com/studyhub/session-guard/internal/http/handlers/auth/otpsend"
	"github.com/studyhub/session-guard/internal/http/handlers/auth/otpverify"
	"github.com/studyhub/session-guard/internal/http/handlers/payment/paymentcreate"
	"github.com/studyhub/session-guard/internal/http/handlers/payment/paymentlist"
	"github.com/studyhub/session-guard/internal/http/handlers/payment/paymentwebhook"
	"github.com/studyhub/session-guard/internal/http/handlers/portal"
	"github.com/studyhub/session-guard/internal/http/handlers/profile/update"
	"github.com/studyhub/session-guard/internal/http/handlers/session/decision"
	"github.com/studyhub/session-guard/internal/http/handlers/session/me"
	"github.com/studyhub/session-guard/internal/http/middlewarectx"
	"github.com/studyhub/session-guard/internal/lib/jwt"
	paymentservice "github.com/studyhub/session-guard/internal/services/payment"
	sessionservice "github.com/studyhub/session-guard/internal/services/session"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, jwtMaker jwt.Maker,
	sessionSvc *sessionservice.Service, paymentSvc *paymentservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	returnURL := cfg.Backend.BaseURL + cfg.Backend.PaymentReturnPath

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/login", login.New(logger, sessionSvc, jwtMaker).ServeHTTP)
		r.Post("/otp/send", otpsend.New(logger, sessionSvc).ServeHTTP)
		r.Post("/otp/verify", otpverify.New(logger, sessionSvc, jwtMaker).ServeHTTP)
		r.Post("/otp/resend", otpresend.New(logger, sessionSvc).ServeHTTP)

		// Группа с сессионной аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.SessionMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/logout", logout.New(logger, sessionSvc).ServeHTTP)
			r.Get("/me", me.New(logger, sessionSvc).ServeHTTP)
			r.Get("/session/decision", decision.New(logger, sessionSvc).ServeHTTP)
			r.Patch("/profile", update.New(logger, sessionSvc).ServeHTTP)
			r.Post("/payments", paymentcreate.New(logger, paymentSvc, returnURL).ServeHTTP)
			r.Get("/payments/list", paymentlist.New(logger, paymentSvc).ServeHTTP)

			// Страницы портала под охранником маршрутов
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.GuardMiddleware(sessionSvc, "/api/v1/portal", logger))
				r.Get("/portal/*", portal.New(logger).ServeHTTP)
			})
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentSvc, cfg.PaymentProvider.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
