package models

import "time"

// Snapshot последнее известное состояние товара на маркетплейсе.
type Snapshot struct {
	Price      int       `json:"price"` // Цена в рублях
	Stock      int       `json:"stock"` // Суммарный остаток на складах
	Rating     float64   `json:"rating"`
	CapturedAt time.Time `json:"captured_at"`
}

// TrackedItem товар, за изменениями которого следит пользователь.
// Уникален в паре (UserID аккаунта, ItemID).
type TrackedItem struct {
	ItemID       string    `json:"item_id"` // Артикул товара на маркетплейсе
	Name         string    `json:"name"`
	LastSnapshot Snapshot  `json:"last_snapshot"`
	AddedAt      time.Time `json:"added_at"`
}

// DummySnapshot используется для приёма снапшота из JSON-запроса.
type DummySnapshot struct {
	Price  int     `json:"price" validate:"required,gt=0"`
	Stock  int     `json:"stock" validate:"gte=0"`
	Rating float64 `json:"rating" validate:"gte=0,lte=5"`
}
