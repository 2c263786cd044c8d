// Package tracker собирает приложение фонового опроса маркетплейса.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/marketplace-analytics/internal/cache"
	"github.com/magabrotheeeer/marketplace-analytics/internal/config"
	"github.com/magabrotheeeer/marketplace-analytics/internal/marketprovider"
	"github.com/magabrotheeeer/marketplace-analytics/internal/rabbitmq"
	trackerservice "github.com/magabrotheeeer/marketplace-analytics/internal/services/tracker"
	"github.com/magabrotheeeer/marketplace-analytics/internal/storage/repository"
)

// App приложение трекера товаров.
type App struct {
	trackerService *trackerservice.Service
	conn           *amqp.Connection
	ch             *amqp.Channel
	logger         *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения трекера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	fetcher := marketprovider.NewClient(cfg.Wildberries.CardAPIURL, cfg.Tracker.FetchTimeout)
	trackerService := trackerservice.New(db, fetcher, cacheRedis, logger,
		cfg.Tracker.PollInterval, cfg.Tracker.FetchTimeout)

	return &App{
		trackerService: trackerService,
		conn:           conn,
		ch:             ch,
		logger:         logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает цикл опроса.
func (a *App) Run(ctx context.Context) error {
	go a.trackerService.Run(ctx, a.ch)

	<-ctx.Done()

	a.logger.Info("shutting down tracker service")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
