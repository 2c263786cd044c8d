// Package account содержит бизнес-логику состояния аккаунта: квоты
// платных действий, жизненный цикл подписки и баланс. Каждая операция —
// одна transition-функция, выполняемая хранилищем под блокировкой строки
// пользователя, поэтому проверка и изменение никогда не расходятся.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-analytics/internal/metrics"
	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Store определяет контракт хранилища аккаунтов.
type Store interface {
	// Get возвращает аккаунт, создавая его при первом обращении.
	Get(ctx context.Context, userID int64) (*models.Account, error)
	// Mutate применяет fn к аккаунту атомарно для данного пользователя.
	Mutate(ctx context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует операции над состоянием аккаунта.
type Service struct {
	store Store
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(store Store, cache Cache, log *slog.Logger) *Service {
	return &Service{
		store: store,
		cache: cache,
		log:   log,
	}
}

func statsKey(userID int64) string {
	return fmt.Sprintf("account:stats:%d", userID)
}

// TryConsume проверяет и списывает одну единицу лимита действия.
// Проверка подписки, проверка лимита и инкремент счётчика — один переход
// под блокировкой пользователя: при одном оставшемся слоте из N
// конкурентных запросов пройдёт ровно один. Отказ окончателен для
// данной попытки, повторов нет.
func (s *Service) TryConsume(ctx context.Context, userID int64, action models.ActionType) error {
	_, err := s.store.Mutate(ctx, userID, func(a *models.Account) error {
		now := time.Now()
		if a.Tier == models.TierNone || a.ExpiresAt == nil {
			return models.ErrNoSubscription
		}
		if !a.ExpiresAt.After(now) {
			return models.ErrSubscriptionExpired
		}
		quota, ok := a.Quotas[action]
		if !ok {
			return models.ErrUnknownAction
		}
		if quota.Exhausted() {
			return models.ErrQuotaExceeded
		}
		quota.Used++
		a.Quotas[action] = quota
		return nil
	})
	if err != nil {
		metrics.ActionsTotal.WithLabelValues(string(action), "denied").Inc()
		return err
	}
	metrics.ActionsTotal.WithLabelValues(string(action), "allowed").Inc()
	s.invalidateStats(userID)
	return nil
}

// Renew продлевает подписку: списывает стоимость тарифа с баланса,
// назначает тариф со сроком 30 дней и сбрасывает лимиты к значениям
// тарифа. Списание и назначение — один переход: при нехватке средств
// тариф не меняется, при сбое назначения деньги не списываются.
// Счётчики used обнуляются только здесь (сброса по календарю нет).
func (s *Service) Renew(ctx context.Context, userID int64, tier models.Tier) (*models.Account, error) {
	limits, ok := models.TierLimits[tier]
	if !ok {
		return nil, models.ErrUnknownTier
	}
	price := models.TierPrices[tier]

	account, err := s.store.Mutate(ctx, userID, func(a *models.Account) error {
		if a.Balance < price {
			return models.ErrInsufficientBalance
		}
		a.Balance -= price
		a.Tier = tier
		expiresAt := time.Now().AddDate(0, 0, models.SubscriptionTermDays)
		a.ExpiresAt = &expiresAt
		for _, action := range models.Actions {
			a.Quotas[action] = models.Quota{Used: 0, Limit: limits[action]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription renewed",
		slog.Int64("user_id", userID), slog.String("tier", string(tier)))
	s.invalidateStats(userID)
	return account, nil
}

// CreditBalance пополняет баланс пользователя. Вызывается вебхуком
// платёжного провайдера после подтверждения оплаты.
func (s *Service) CreditBalance(ctx context.Context, userID int64, amount int) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	account, err := s.store.Mutate(ctx, userID, func(a *models.Account) error {
		a.Balance += amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("balance credited",
		slog.Int64("user_id", userID), slog.Int("amount", amount),
		slog.Int("balance", account.Balance))
	s.invalidateStats(userID)
	return account, nil
}

// Stats возвращает состояние аккаунта для экрана профиля, используя кеш.
func (s *Service) Stats(ctx context.Context, userID int64) (*models.Account, error) {
	var cached models.Account
	found, err := s.cache.Get(statsKey(userID), &cached)
	if err != nil {
		s.log.Warn("failed to read stats cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	account, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(statsKey(userID), account, time.Hour); err != nil {
		s.log.Warn("failed to cache stats", slog.String("key", statsKey(userID)), sl.Err(err))
	}
	return account, nil
}

func (s *Service) invalidateStats(userID int64) {
	if err := s.cache.Invalidate(statsKey(userID)); err != nil {
		s.log.Warn("failed to invalidate stats cache",
			slog.String("key", statsKey(userID)), sl.Err(err))
	}
}
