// Package api собирает HTTP-приложение управления аккаунтами: хранилище,
// кеш, сервисы и маршруты.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/marketplace-analytics/internal/cache"
	"github.com/magabrotheeeer/marketplace-analytics/internal/config"
	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-analytics/internal/migrations"
	accountservice "github.com/magabrotheeeer/marketplace-analytics/internal/services/account"
	trackerservice "github.com/magabrotheeeer/marketplace-analytics/internal/services/tracker"
	"github.com/magabrotheeeer/marketplace-analytics/internal/storage/repository"
)

// App приложение HTTP API.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New создает новый экземпляр приложения HTTP API.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	accountService := accountservice.New(db, cacheRedis, logger)
	// Fetcher и канал публикации не нужны: опрос выполняет отдельный
	// процесс, API использует только операции реестра.
	trackerService := trackerservice.New(db, nil, cacheRedis, logger,
		cfg.Tracker.PollInterval, cfg.Tracker.FetchTimeout)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, accountService, trackerService, jwtMaker, cfg.PaymentWebhookSecret)

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
	}, nil
}

// Run запускает HTTP сервер и останавливает его при отмене контекста.
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
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		return err
	}
}
