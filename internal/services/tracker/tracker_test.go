package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore хранит аккаунты в памяти и сериализует Mutate мьютексом.
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

func (s *fakeStore) FindActiveTrackingUsers(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []int64
	now := time.Now()
	for userID, account := range s.accounts {
		if account.SubscriptionActive(now) && len(account.TrackedItems) > 0 {
			users = append(users, userID)
		}
	}
	return users, nil
}

// fakeFetcher возвращает заранее заданные снапшоты или ошибки по артикулу.
type fakeFetcher struct {
	mu        sync.Mutex
	snapshots map[string]models.Snapshot
	failures  map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		snapshots: make(map[string]models.Snapshot),
		failures:  make(map[string]error),
	}
}

func (f *fakeFetcher) FetchSnapshot(_ context.Context, itemID string) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[itemID]; ok {
		return models.Snapshot{}, err
	}
	snapshot, ok := f.snapshots[itemID]
	if !ok {
		return models.Snapshot{}, models.ErrFetchFailed
	}
	return snapshot, nil
}

// fakeChannel записывает опубликованные сообщения.
type fakeChannel struct {
	mu       sync.Mutex
	messages []amqp.Publishing
}

func (c *fakeChannel) Publish(_, _ string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeChannel) events(t *testing.T) []models.ChangeEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]models.ChangeEvent, 0, len(c.messages))
	for _, msg := range c.messages {
		var event models.ChangeEvent
		require.NoError(t, json.Unmarshal(msg.Body, &event))
		events = append(events, event)
	}
	return events
}

type noopCache struct{}

func (noopCache) Invalidate(string) error { return nil }

func activateTier(t *testing.T, store *fakeStore, userID int64, tier models.Tier) {
	t.Helper()
	_, err := store.Mutate(context.Background(), userID, func(a *models.Account) error {
		expiresAt := time.Now().Add(24 * time.Hour)
		a.Tier = tier
		a.ExpiresAt = &expiresAt
		for _, action := range models.Actions {
			a.Quotas[action] = models.Quota{Limit: models.TierLimits[tier][action]}
		}
		return nil
	})
	require.NoError(t, err)
}

func newTestService(store *fakeStore, fetcher Fetcher) *Service {
	return New(store, fetcher, noopCache{}, newNoopLogger(), time.Hour, time.Second)
}

func TestTrack(t *testing.T) {
	ctx := context.Background()
	snapshot := models.Snapshot{Price: 1000, Stock: 10, Rating: 4.5}

	t.Run("нет подписки", func(t *testing.T) {
		store := newFakeStore()
		service := newTestService(store, newFakeFetcher())

		err := service.Track(ctx, 1, "100500", "Кроссовки", snapshot)
		assert.ErrorIs(t, err, models.ErrNoSubscription)
	})

	t.Run("подписка истекла", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic)
		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			expiresAt := time.Now().Add(-time.Hour)
			a.ExpiresAt = &expiresAt
			return nil
		})
		require.NoError(t, err)
		service := newTestService(store, newFakeFetcher())

		err = service.Track(ctx, 1, "100500", "Кроссовки", snapshot)
		assert.ErrorIs(t, err, models.ErrSubscriptionExpired)
	})

	t.Run("повторное добавление того же товара", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic)
		service := newTestService(store, newFakeFetcher())

		require.NoError(t, service.Track(ctx, 1, "100500", "Кроссовки", snapshot))
		err := service.Track(ctx, 1, "100500", "Кроссовки", snapshot)
		assert.ErrorIs(t, err, models.ErrAlreadyTracked)
	})

	t.Run("слоты тарифа закончились", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic)
		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			a.Quotas[models.ActionTrackingSlots] = models.Quota{Limit: 1}
			return nil
		})
		require.NoError(t, err)
		service := newTestService(store, newFakeFetcher())

		require.NoError(t, service.Track(ctx, 1, "1", "Первый", snapshot))
		err = service.Track(ctx, 1, "2", "Второй", snapshot)
		assert.ErrorIs(t, err, models.ErrSlotLimitReached)
	})

	t.Run("успех сохраняет начальный снапшот", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic)
		service := newTestService(store, newFakeFetcher())

		require.NoError(t, service.Track(ctx, 1, "100500", "Кроссовки", snapshot))

		account, err := store.Get(ctx, 1)
		require.NoError(t, err)
		require.Len(t, account.TrackedItems, 1)
		item := account.TrackedItems[0]
		assert.Equal(t, "100500", item.ItemID)
		assert.Equal(t, "Кроссовки", item.Name)
		assert.Equal(t, 1000, item.LastSnapshot.Price)
		assert.False(t, item.LastSnapshot.CapturedAt.IsZero())
		assert.False(t, item.AddedAt.IsZero())
	})
}

// Конкурентные добавления не должны превышать лимит слотов тарифа.
func TestTrackConcurrentSlotLimit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic)
	_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
		a.Quotas[models.ActionTrackingSlots] = models.Quota{Limit: 3}
		return nil
	})
	require.NoError(t, err)
	service := newTestService(store, newFakeFetcher())

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			itemID := string(rune('a' + n))
			results <- service.Track(ctx, 1, itemID, "item", models.Snapshot{Price: 100, Stock: 1})
		}(i)
	}
	wg.Wait()
	close(results)

	allowed := 0
	for err := range results {
		if err == nil {
			allowed++
		} else {
			assert.ErrorIs(t, err, models.ErrSlotLimitReached)
		}
	}
	assert.Equal(t, 3, allowed)

	account, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, account.TrackedItems, 3)
}

func TestUntrack(t *testing.T) {
	ctx := context.Background()
	snapshot := models.Snapshot{Price: 1000, Stock: 10}

	t.Run("товар не отслеживается", func(t *testing.T) {
		store := newFakeStore()
		service := newTestService(store, newFakeFetcher())

		err := service.Untrack(ctx, 1, "100500")
		assert.ErrorIs(t, err, models.ErrNotTracked)
	})

	t.Run("удаление освобождает слот", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic)
		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			a.Quotas[models.ActionTrackingSlots] = models.Quota{Limit: 1}
			return nil
		})
		require.NoError(t, err)
		service := newTestService(store, newFakeFetcher())

		require.NoError(t, service.Track(ctx, 1, "1", "Первый", snapshot))
		require.ErrorIs(t, service.Track(ctx, 1, "2", "Второй", snapshot), models.ErrSlotLimitReached)

		require.NoError(t, service.Untrack(ctx, 1, "1"))
		assert.NoError(t, service.Track(ctx, 1, "2", "Второй", snapshot))
	})

	t.Run("удаление работает после окончания подписки", func(t *testing.T) {
		store := newFakeStore()
		activateTier(t, store, 1, models.TierBasic)
		service := newTestService(store, newFakeFetcher())
		require.NoError(t, service.Track(ctx, 1, "1", "Первый", snapshot))

		_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
			expiresAt := time.Now().Add(-time.Hour)
			a.ExpiresAt = &expiresAt
			return nil
		})
		require.NoError(t, err)

		assert.NoError(t, service.Untrack(ctx, 1, "1"))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic)
	service := newTestService(store, newFakeFetcher())

	items, err := service.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, service.Track(ctx, 1, "1", "Первый", models.Snapshot{Price: 100, Stock: 1}))
	require.NoError(t, service.Track(ctx, 1, "2", "Второй", models.Snapshot{Price: 200, Stock: 2}))

	items, err = service.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestPollCyclePublishesChange(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic)
	fetcher := newFakeFetcher()
	service := newTestService(store, fetcher)

	require.NoError(t, service.Track(ctx, 1, "100500", "Кроссовки", models.Snapshot{Price: 1000, Stock: 10}))
	fetcher.snapshots["100500"] = models.Snapshot{Price: 800, Stock: 10, CapturedAt: time.Now()}

	ch := &fakeChannel{}
	service.runPollCycle(ctx, ch)

	events := ch.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPriceChanged, events[0].Kind)
	assert.Equal(t, 1000, events[0].OldValue)
	assert.Equal(t, 800, events[0].NewValue)

	// Снапшот записан, второй проход по тем же данным события не даёт
	service.runPollCycle(ctx, ch)
	assert.Len(t, ch.events(t), 1)

	account, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 800, account.TrackedItems[0].LastSnapshot.Price)
}

// Сбой получения снапшота одного товара не мешает проверить остальные
// и не затирает его сохранённое состояние.
func TestPollCycleFailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic)
	fetcher := newFakeFetcher()
	service := newTestService(store, fetcher)

	require.NoError(t, service.Track(ctx, 1, "1", "Первый", models.Snapshot{Price: 1000, Stock: 10}))
	require.NoError(t, service.Track(ctx, 1, "2", "Второй", models.Snapshot{Price: 500, Stock: 5}))
	fetcher.failures["1"] = errors.New("marketplace down")
	fetcher.snapshots["2"] = models.Snapshot{Price: 500, Stock: 0, CapturedAt: time.Now()}

	ch := &fakeChannel{}
	service.runPollCycle(ctx, ch)

	events := ch.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventStockDepleted, events[0].Kind)
	assert.Equal(t, "2", events[0].ItemID)

	account, err := store.Get(ctx, 1)
	require.NoError(t, err)
	first := account.TrackedItems[account.FindTrackedItem("1")]
	assert.Equal(t, 1000, first.LastSnapshot.Price)
	assert.Equal(t, 10, first.LastSnapshot.Stock)
}

func TestPollCycleSkipsInactiveUsers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	activateTier(t, store, 1, models.TierBasic)
	fetcher := newFakeFetcher()
	service := newTestService(store, fetcher)

	require.NoError(t, service.Track(ctx, 1, "1", "Первый", models.Snapshot{Price: 1000, Stock: 10}))
	fetcher.snapshots["1"] = models.Snapshot{Price: 1, Stock: 10, CapturedAt: time.Now()}

	_, err := store.Mutate(ctx, 1, func(a *models.Account) error {
		expiresAt := time.Now().Add(-time.Hour)
		a.ExpiresAt = &expiresAt
		return nil
	})
	require.NoError(t, err)

	ch := &fakeChannel{}
	service.runPollCycle(ctx, ch)
	assert.Empty(t, ch.events(t))
}
