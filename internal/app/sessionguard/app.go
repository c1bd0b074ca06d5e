// Package sessionguard собирает приложение: подключения к хранилищам,
// клиенты внешних систем, сервисы и HTTP-сервер.
package sessionguard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/studyhub/session-guard/internal/backend"
	"github.com/studyhub/session-guard/internal/config"
	"github.com/studyhub/session-guard/internal/lib/clock"
	"github.com/studyhub/session-guard/internal/lib/jwt"
	"github.com/studyhub/session-guard/internal/migrations"
	"github.com/studyhub/session-guard/internal/paymentflow"
	"github.com/studyhub/session-guard/internal/paymentprovider"
	"github.com/studyhub/session-guard/internal/rabbitmq"
	paymentservice "github.com/studyhub/session-guard/internal/services/payment"
	sessionservice "github.com/studyhub/session-guard/internal/services/session"
	"github.com/studyhub/session-guard/internal/storage"
	"github.com/studyhub/session-guard/internal/store"
)

// App инкапсулирует HTTP-сервер и ресурсы приложения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	creds  *store.Store
}

// New собирает приложение по конфигу.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	creds, err := store.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	notifier, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQ.Exchange)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	backendClient := backend.New(cfg.Backend.BaseURL)
	providerClient := paymentprovider.NewClient(cfg.PaymentProvider.ShopID,
		cfg.PaymentProvider.SecretKey, cfg.PaymentProvider.APIURL)
	jwtMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	flow := paymentflow.New(creds, clk, cfg.PaymentFlow.PreservationWindow, cfg.PaymentFlow.DuplicateWindow)
	sessionSvc := sessionservice.New(backendClient, creds, flow, clk, logger, cfg.Backend.PaymentReturnPath)
	paymentSvc := paymentservice.New(providerClient, db, flow, notifier, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, jwtMaker, sessionSvc, paymentSvc)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		creds:  creds,
	}, nil
}

// Run запускает сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
