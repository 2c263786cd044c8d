// Package models содержит доменные структуры аккаунта пользователя:
// баланс, подписку, лимиты действий и отслеживаемые товары.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Tier тип подписки пользователя.
type Tier string

// Поддерживаемые типы подписок.
const (
	TierNone     Tier = "none"
	TierBasic    Tier = "basic"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// ActionType тип платного действия, ограниченного лимитом подписки.
type ActionType string

// Поддерживаемые типы действий.
const (
	ActionProductAnalysis ActionType = "product_analysis"
	ActionNicheAnalysis   ActionType = "niche_analysis"
	ActionTrackingSlots   ActionType = "tracking_slots"
	ActionGlobalSearch    ActionType = "global_search"
)

// Actions перечисляет все типы действий в фиксированном порядке.
var Actions = []ActionType{
	ActionProductAnalysis,
	ActionNicheAnalysis,
	ActionTrackingSlots,
	ActionGlobalSearch,
}

// Unlimited значение лимита "без ограничений".
const Unlimited = -1

// SubscriptionTermDays срок действия подписки после продления.
const SubscriptionTermDays = 30

// Quota счётчик использования одного типа действия.
// Limit равный Unlimited означает отсутствие ограничения.
type Quota struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Exhausted сообщает, исчерпан ли лимит.
func (q Quota) Exhausted() bool {
	return q.Limit != Unlimited && q.Used >= q.Limit
}

// Account представляет состояние пользователя сервиса: баланс в рублях,
// подписку со сроком действия, лимиты действий и отслеживаемые товары.
// Все изменения проходят через Store.Mutate, прямых записей полей
// за пределами transition-функции быть не должно.
type Account struct {
	UserID       int64                `json:"user_id"` // Внешний идентификатор пользователя в чате
	Balance      int                  `json:"balance"` // Баланс в рублях
	Tier         Tier                 `json:"tier"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"` // nil — подписки не было
	Quotas       map[ActionType]Quota `json:"quotas"`
	TrackedItems []TrackedItem        `json:"tracked_items"`
}

// NewAccount возвращает аккаунт с настройками по умолчанию:
// тип подписки none, нулевой баланс и нулевые лимиты.
func NewAccount(userID int64) *Account {
	quotas := make(map[ActionType]Quota, len(Actions))
	for _, action := range Actions {
		quotas[action] = Quota{}
	}
	return &Account{
		UserID: userID,
		Tier:   TierNone,
		Quotas: quotas,
	}
}

// SubscriptionActive сообщает, действует ли подписка на момент now.
func (a *Account) SubscriptionActive(now time.Time) bool {
	if a.Tier == TierNone || a.ExpiresAt == nil {
		return false
	}
	return a.ExpiresAt.After(now)
}

// FindTrackedItem возвращает индекс товара в списке отслеживаемых или -1.
func (a *Account) FindTrackedItem(itemID string) int {
	for i := range a.TrackedItems {
		if a.TrackedItems[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// TierLimits лимиты действий для каждого типа подписки.
var TierLimits = map[Tier]map[ActionType]int{
	TierBasic: {
		ActionProductAnalysis: 10,
		ActionNicheAnalysis:   5,
		ActionTrackingSlots:   10,
		ActionGlobalSearch:    20,
	},
	TierPro: {
		ActionProductAnalysis: 50,
		ActionNicheAnalysis:   20,
		ActionTrackingSlots:   50,
		ActionGlobalSearch:    100,
	},
	TierBusiness: {
		ActionProductAnalysis: Unlimited,
		ActionNicheAnalysis:   Unlimited,
		ActionTrackingSlots:   200,
		ActionGlobalSearch:    Unlimited,
	},
}

// TierPrices стоимость подписок в рублях за 30 дней.
var TierPrices = map[Tier]int{
	TierBasic:    1000,
	TierPro:      2500,
	TierBusiness: 5000,
}

// ParseTier преобразует строку в Tier, только для платных типов подписки.
func ParseTier(s string) (Tier, error) {
	tier := Tier(s)
	if _, ok := TierPrices[tier]; !ok {
		return "", ErrUnknownTier
	}
	return tier, nil
}

// ParseAction преобразует строку в ActionType.
func ParseAction(s string) (ActionType, error) {
	action := ActionType(s)
	for _, known := range Actions {
		if action == known {
			return action, nil
		}
	}
	return "", ErrUnknownAction
}
