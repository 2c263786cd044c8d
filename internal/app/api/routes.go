// Package api предоставляет маршруты приложения управления аккаунтами.
package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/account/consume"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/account/stats"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/health"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/payment/webhook"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/subscription/renew"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/tracking/add"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/tracking/list"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/handlers/tracking/remove"
	"github.com/magabrotheeeer/marketplace-analytics/internal/http/middlewarectx"
	accountservice "github.com/magabrotheeeer/marketplace-analytics/internal/services/account"
	trackerservice "github.com/magabrotheeeer/marketplace-analytics/internal/services/tracker"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	accountService *accountservice.Service, trackerService *trackerservice.Service,
	tokenParser middlewarectx.TokenParser, webhookSecret string) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией вызывающих сервисов
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenParser, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/accounts/{userID}/stats", stats.New(logger, accountService).ServeHTTP)
			r.Post("/accounts/{userID}/consume", consume.New(logger, accountService).ServeHTTP)
			r.Post("/accounts/{userID}/subscription/renew", renew.New(logger, accountService).ServeHTTP)
			r.Get("/accounts/{userID}/tracking", list.New(logger, trackerService).ServeHTTP)
			r.Post("/accounts/{userID}/tracking", add.New(logger, trackerService).ServeHTTP)
			r.Delete("/accounts/{userID}/tracking/{itemID}", remove.New(logger, trackerService).ServeHTTP)
		})

		// Webhook endpoint (подпись проверяется по общему секрету)
		r.Post("/payments/webhook", webhook.New(logger, accountService, webhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
