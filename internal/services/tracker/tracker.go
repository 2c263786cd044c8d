// Package tracker реализует реестр отслеживаемых товаров и фоновый
// опрос маркетплейса. Добавление и удаление товара выполняются как
// атомарные переходы состояния аккаунта, опрос сравнивает свежие
// снапшоты с сохранёнными и публикует события об изменениях.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-analytics/internal/metrics"
	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
	"github.com/magabrotheeeer/marketplace-analytics/internal/rabbitmq"
)

// Store определяет контракт хранилища аккаунтов.
type Store interface {
	Get(ctx context.Context, userID int64) (*models.Account, error)
	Mutate(ctx context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error)
	// FindActiveTrackingUsers возвращает пользователей с действующей
	// подпиской и хотя бы одним отслеживаемым товаром.
	FindActiveTrackingUsers(ctx context.Context) ([]int64, error)
}

// Fetcher получает актуальный снапшот товара с маркетплейса.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, itemID string) (models.Snapshot, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Invalidate(key string) error
}

// Service реализует реестр отслеживания и цикл опроса.
type Service struct {
	store        Store
	fetcher      Fetcher
	cache        Cache
	log          *slog.Logger
	pollInterval time.Duration
	fetchTimeout time.Duration
}

// New создает новый экземпляр Service.
func New(store Store, fetcher Fetcher, cache Cache, log *slog.Logger,
	pollInterval, fetchTimeout time.Duration) *Service {
	return &Service{
		store:        store,
		fetcher:      fetcher,
		cache:        cache,
		log:          log,
		pollInterval: pollInterval,
		fetchTimeout: fetchTimeout,
	}
}

// Track добавляет товар в список отслеживания пользователя. Проверка
// подписки, проверка свободного слота и запись товара — один переход:
// два конкурентных Track на последний слот не превысят лимит тарифа.
// Начальный снапшот сохраняется как база для первого сравнения.
func (s *Service) Track(ctx context.Context, userID int64, itemID, name string, snapshot models.Snapshot) error {
	_, err := s.store.Mutate(ctx, userID, func(a *models.Account) error {
		now := time.Now()
		if a.Tier == models.TierNone || a.ExpiresAt == nil {
			return models.ErrNoSubscription
		}
		if !a.ExpiresAt.After(now) {
			return models.ErrSubscriptionExpired
		}
		if a.FindTrackedItem(itemID) >= 0 {
			return models.ErrAlreadyTracked
		}
		limit := a.Quotas[models.ActionTrackingSlots].Limit
		if limit != models.Unlimited && len(a.TrackedItems) >= limit {
			return models.ErrSlotLimitReached
		}
		if snapshot.CapturedAt.IsZero() {
			snapshot.CapturedAt = now
		}
		a.TrackedItems = append(a.TrackedItems, models.TrackedItem{
			ItemID:       itemID,
			Name:         name,
			LastSnapshot: snapshot,
			AddedAt:      now,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("item tracked",
		slog.Int64("user_id", userID), slog.String("item_id", itemID))
	s.invalidateStats(userID)
	return nil
}

// Untrack убирает товар из списка отслеживания, освобождая слот.
// Работает и после окончания подписки: пользователь может чистить
// список, даже когда новые добавления запрещены.
func (s *Service) Untrack(ctx context.Context, userID int64, itemID string) error {
	_, err := s.store.Mutate(ctx, userID, func(a *models.Account) error {
		i := a.FindTrackedItem(itemID)
		if i < 0 {
			return models.ErrNotTracked
		}
		a.TrackedItems = append(a.TrackedItems[:i], a.TrackedItems[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("item untracked",
		slog.Int64("user_id", userID), slog.String("item_id", itemID))
	s.invalidateStats(userID)
	return nil
}

// List возвращает отслеживаемые товары пользователя с последними
// известными снапшотами.
func (s *Service) List(ctx context.Context, userID int64) ([]models.TrackedItem, error) {
	account, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return account.TrackedItems, nil
}

// Run запускает цикл опроса маркетплейса: первый проход сразу, затем
// каждые pollInterval. Возвращается при отмене контекста.
func (s *Service) Run(ctx context.Context, ch rabbitmq.Channel) {
	s.log.Info("tracker started", slog.Duration("poll_interval", s.pollInterval))
	s.runPollCycle(ctx, ch)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runPollCycle(ctx, ch)
		case <-ctx.Done():
			s.log.Info("tracker stopped")
			return
		}
	}
}

// runPollCycle обходит всех пользователей с активной подпиской и
// проверяет каждый их товар. Ошибка по одному товару или пользователю
// логируется и не прерывает проход.
func (s *Service) runPollCycle(ctx context.Context, ch rabbitmq.Channel) {
	users, err := s.store.FindActiveTrackingUsers(ctx)
	if err != nil {
		s.log.Error("failed to list tracking users", sl.Err(err))
		return
	}

	checked := 0
	for _, userID := range users {
		select {
		case <-ctx.Done():
			return
		default:
		}

		account, err := s.store.Get(ctx, userID)
		if err != nil {
			s.log.Error("failed to load account",
				slog.Int64("user_id", userID), sl.Err(err))
			continue
		}
		for _, item := range account.TrackedItems {
			s.pollItem(ctx, ch, userID, item.ItemID)
			checked++
		}
	}

	metrics.PollCyclesTotal.Inc()
	s.log.Info("poll cycle finished",
		slog.Int("users", len(users)), slog.Int("items", checked))
}

// pollItem проверяет один товар: получает свежий снапшот вне блокировки
// аккаунта, затем под блокировкой сравнивает его с сохранённым и
// записывает новый. Событие публикуется после фиксации снапшота, так
// что повторный проход по тем же данным события не даст. Сбой
// публикации теряет уведомление, но не ломает состояние.
func (s *Service) pollItem(ctx context.Context, ch rabbitmq.Channel, userID int64, itemID string) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	snapshot, err := s.fetcher.FetchSnapshot(fetchCtx, itemID)
	cancel()
	if err != nil {
		metrics.SnapshotFetchesTotal.WithLabelValues("error").Inc()
		s.log.Warn("failed to fetch snapshot",
			slog.Int64("user_id", userID), slog.String("item_id", itemID), sl.Err(err))
		return
	}
	metrics.SnapshotFetchesTotal.WithLabelValues("ok").Inc()
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}

	var event *models.ChangeEvent
	_, err = s.store.Mutate(ctx, userID, func(a *models.Account) error {
		i := a.FindTrackedItem(itemID)
		if i < 0 {
			return models.ErrNotTracked
		}
		item := &a.TrackedItems[i]
		event = classifyChange(userID, itemID, item.Name, item.LastSnapshot, snapshot)
		item.LastSnapshot = snapshot
		return nil
	})
	if err != nil {
		// Товар могли убрать между чтением списка и записью снапшота.
		if errors.Is(err, models.ErrNotTracked) {
			s.log.Debug("item untracked during poll",
				slog.Int64("user_id", userID), slog.String("item_id", itemID))
			return
		}
		s.log.Error("failed to store snapshot",
			slog.Int64("user_id", userID), slog.String("item_id", itemID), sl.Err(err))
		return
	}
	if event == nil {
		return
	}

	if err := rabbitmq.PublishMessage(ch, "notifications", "changes", event); err != nil {
		s.log.Error("failed to publish change event",
			slog.Int64("user_id", userID), slog.String("item_id", itemID), sl.Err(err))
		return
	}
	metrics.ChangeEventsTotal.WithLabelValues(string(event.Kind)).Inc()
	s.log.Info("change event published",
		slog.Int64("user_id", userID), slog.String("item_id", itemID),
		slog.String("kind", string(event.Kind)),
		slog.Int("old", event.OldValue), slog.Int("new", event.NewValue))
}

func (s *Service) invalidateStats(userID int64) {
	key := fmt.Sprintf("account:stats:%d", userID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate stats cache",
			slog.String("key", key), sl.Err(err))
	}
}
