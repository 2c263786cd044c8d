package models

import "errors"

// Доменные ошибки аккаунта. Возвращаются синхронно вызывающей стороне
// для пользовательских сообщений и никогда не приводят к повторным
// попыткам внутри сервиса.
var (
	// ErrNoSubscription у пользователя нет подписки.
	ErrNoSubscription = errors.New("no subscription")
	// ErrSubscriptionExpired срок действия подписки истёк.
	ErrSubscriptionExpired = errors.New("subscription expired")
	// ErrQuotaExceeded лимит действий текущей подписки исчерпан.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrSlotLimitReached заняты все слоты отслеживания.
	ErrSlotLimitReached = errors.New("tracking slot limit reached")
	// ErrAlreadyTracked товар уже есть в списке отслеживаемых.
	ErrAlreadyTracked = errors.New("item already tracked")
	// ErrNotTracked товара нет в списке отслеживаемых.
	ErrNotTracked = errors.New("item not tracked")
	// ErrInsufficientBalance на балансе не хватает средств.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownTier неизвестный тип подписки.
	ErrUnknownTier = errors.New("unknown subscription tier")
	// ErrUnknownAction неизвестный тип действия.
	ErrUnknownAction = errors.New("unknown action type")
	// ErrFetchFailed не удалось получить снапшот товара; трекер
	// повторит запрос на следующем тике, состояние не меняется.
	ErrFetchFailed = errors.New("snapshot fetch failed")
	// ErrStoreUnavailable хранилище недоступно; операция не выполнена.
	ErrStoreUnavailable = errors.New("store unavailable")
)
