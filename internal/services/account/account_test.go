package account

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore хранит аккаунты в памяти и сериализует Mutate мьютексом,
// повторяя гарантию линеаризации переходов одного пользователя.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[int64]*models.Account)}
}

func cloneAccount(a *models.Account) *models.Account {
	clone := *a
	clone.Quotas = make(map[models.ActionType]models.Quota, len(a.Quotas))
	for action, quota := range a.Quotas {
		clone.Quotas[action] = quota
	}
	clone.TrackedItems = append([]models.TrackedItem(nil), a.TrackedItems...)
	if a.ExpiresAt != nil {
		expiresAt := *a.ExpiresAt
		clone.ExpiresAt = &expiresAt
	}
	return &clone
}

func (s *fakeStore) Get(_ context.Context, userID int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		account = models.NewAccount(userID)
		s.accounts[userID] = account
	}
	return cloneAccount(account), nil
}

func (s *fakeStore) Mutate(_ context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		account = models.NewAccount(userID)
		s.accounts[userID] = account
	}
	draft := cloneAccount(account)
	if err := fn(draft); err != nil {
		return nil, err
	}
	s.accounts[userID] = draft
	return cloneAccount(draft), nil
}

type noopCache struct{}

func (noopCache) Get(string, any) (bool, error)            { return false, nil }
func (noopCache) Set(string, any, time.Duration) error     { return nil }
func (noopCache) Invalidate(string) error                  { return nil }

func activateTier(t *testing.T, store *fakeStore, userID int64, tier models.Tier, expiresIn time.Duration) {
	t.Helper()
	_, err := store.Mutate(context.Background(), userID, func(a *models.Account) error {
		expiresAt := time.Now().Add(expiresIn)
		a.Tier = tier
		a.ExpiresAt = &expiresAt
		for _, action := range models.Actions {
			a.Quotas[action] = models.Quota{Limit: models.TierLimits[tier][action]}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTryConsume(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T, store *fakeStore)
		action  models.ActionType
		wantErr error
	}{
		{
			name:    "нет подписки",
			setup:   func(*testing.T, *fakeStore) {},
			action:  models.ActionProductAnalysis,
			wantErr: models.ErrNoSubscription,
		},
		{
			name: "подписка истекла",
			setup: func(t *testing.T, store *fakeStore) {
				activateTier(t, store, 1, models.TierBasic, -time.Hour)
			},
			action:  models.ActionProductAnalysis,
			wantErr: models.ErrSubscriptionExpired,
		},
		{
			name: "лимит исчерпан",
			setup: func(t *testing.T, store *fakeStore) {
				activateTier(t, store, 1, models.TierBasic, time.Hour)
				_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
					a.Quotas[models.ActionNicheAnalysis] = models.Quota{Used: 5, Limit: 5}
					return nil
				})
				require.NoError(t, err)
			},
			action:  models.ActionNicheAnalysis,
			wantErr: models.ErrQuotaExceeded,
		},
		{
			name: "безлимитное действие всегда разрешено",
			setup: func(t *testing.T, store *fakeStore) {
				activateTier(t, store, 1, models.TierBusiness, time.Hour)
				_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
					a.Quotas[models.ActionGlobalSearch] = models.Quota{Used: 100000, Limit: models.Unlimited}
					return nil
				})
				require.NoError(t, err)
			},
			action:  models.ActionGlobalSearch,
			wantErr: nil,
		},
		{
			name: "успешное списание",
			setup: func(t *testing.T, store *fakeStore) {
				activateTier(t, store, 1, models.TierBasic, time.Hour)
			},
			action:  models.ActionProductAnalysis,
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			tt.setup(t, store)
			service := New(store, noopCache{}, newNoopLogger())

			err := service.TryConsume(ctx, 1, tt.action)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTryConsumeIncrementsCounter(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic, time.Hour)
	service := New(store, noopCache{}, newNoopLogger())

	require.NoError(t, service.TryConsume(ctx, 1, models.ActionProductAnalysis))
	require.NoError(t, service.TryConsume(ctx, 1, models.ActionProductAnalysis))

	account, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, account.Quotas[models.ActionProductAnalysis].Used)
}

// При одном свободном слоте из множества конкурентных запросов должен
// пройти ровно один, остальные получают отказ по лимиту.
func TestTryConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic, time.Hour)
	service := New(store, noopCache{}, newNoopLogger())

	const workers = 50
	limit := models.TierLimits[models.TierBasic][models.ActionProductAnalysis]

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- service.TryConsume(ctx, 1, models.ActionProductAnalysis)
		}()
	}
	wg.Wait()
	close(results)

	allowed, denied := 0, 0
	for err := range results {
		if err == nil {
			allowed++
		} else {
			assert.ErrorIs(t, err, models.ErrQuotaExceeded)
			denied++
		}
	}
	assert.Equal(t, limit, allowed)
	assert.Equal(t, workers-limit, denied)

	account, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, limit, account.Quotas[models.ActionProductAnalysis].Used)
}

func TestRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("недостаточно средств, состояние не меняется", func(t *testing.T) {
		store := newFakeStore()
		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			a.Balance = 500
			return nil
		})
		require.NoError(t, err)
		service := New(store, noopCache{}, newNoopLogger())

		_, err = service.Renew(ctx, 1, models.TierBasic)
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)

		account, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 500, account.Balance)
		assert.Equal(t, models.TierNone, account.Tier)
		assert.Nil(t, account.ExpiresAt)
	})

	t.Run("успешное продление списывает цену и ставит срок", func(t *testing.T) {
		store := newFakeStore()
		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			a.Balance = 1500
			return nil
		})
		require.NoError(t, err)
		service := New(store, noopCache{}, newNoopLogger())

		account, err := service.Renew(ctx, 1, models.TierBasic)
		require.NoError(t, err)

		assert.Equal(t, 500, account.Balance)
		assert.Equal(t, models.TierBasic, account.Tier)
		require.NotNil(t, account.ExpiresAt)
		wantExpiry := time.Now().AddDate(0, 0, models.SubscriptionTermDays)
		assert.WithinDuration(t, wantExpiry, *account.ExpiresAt, time.Minute)
		assert.Equal(t, models.Quota{Used: 0, Limit: 10}, account.Quotas[models.ActionProductAnalysis])
	})

	t.Run("смена тарифа сбрасывает счётчики и ставит новые лимиты", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic, time.Hour)
		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			a.Balance = 3000
			a.Quotas[models.ActionProductAnalysis] = models.Quota{Used: 7, Limit: 10}
			a.TrackedItems = []models.TrackedItem{{ItemID: "100", Name: "item"}}
			return nil
		})
		require.NoError(t, err)
		service := New(store, noopCache{}, newNoopLogger())

		account, err := service.Renew(ctx, 1, models.TierPro)
		require.NoError(t, err)

		assert.Equal(t, 500, account.Balance)
		assert.Equal(t, models.TierPro, account.Tier)
		assert.Equal(t, models.Quota{Used: 0, Limit: 50}, account.Quotas[models.ActionProductAnalysis])
		assert.Equal(t, models.Quota{Used: 0, Limit: 50}, account.Quotas[models.ActionTrackingSlots])
		// Отслеживаемые товары переживают продление
		assert.Len(t, account.TrackedItems, 1)
	})

	t.Run("неизвестный тариф", func(t *testing.T) {
		store := newFakeStore()
		service := New(store, noopCache{}, newNoopLogger())

		_, err := service.Renew(ctx, 1, models.Tier("platinum"))
		assert.ErrorIs(t, err, models.ErrUnknownTier)
	})
}

func TestCreditBalance(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := New(store, noopCache{}, newNoopLogger())

	account, err := service.CreditBalance(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, account.Balance)

	account, err = service.CreditBalance(ctx, 1, 250)
	require.NoError(t, err)
	assert.Equal(t, 1250, account.Balance)

	_, err = service.CreditBalance(ctx, 1, 0)
	assert.Error(t, err)
	_, err = service.CreditBalance(ctx, 1, -10)
	assert.Error(t, err)
}
