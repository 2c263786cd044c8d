package models

import "time"

// EventKind вид изменения состояния товара.
type EventKind string

// Виды событий, публикуемых трекером.
const (
	EventPriceChanged     EventKind = "price_changed"
	EventStockDepleted    EventKind = "stock_depleted"
	EventStockReplenished EventKind = "stock_replenished"
	EventStockLow         EventKind = "stock_low"
)

// ChangeEvent уведомление об изменении отслеживаемого товара.
// Событие не сохраняется в хранилище: публикуется в очередь сразу после
// записи нового снапшота и потребляется сервисом отправки один раз.
type ChangeEvent struct {
	UserID   int64     `json:"user_id"`
	ItemID   string    `json:"item_id"`
	ItemName string    `json:"item_name"`
	Kind     EventKind `json:"kind"`
	OldValue int       `json:"old_value"` // Цена или остаток до изменения
	NewValue int       `json:"new_value"` // Цена или остаток после изменения
}

// ExpiryReminder уведомление о скором окончании подписки.
type ExpiryReminder struct {
	UserID    int64     `json:"user_id"`
	Tier      Tier      `json:"tier"`
	ExpiresAt time.Time `json:"expires_at"`
	DaysLeft  int       `json:"days_left"`
}
