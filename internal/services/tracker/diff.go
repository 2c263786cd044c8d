package tracker

import "github.com/magabrotheeeer/marketplace-analytics/internal/models"

// Пороги классификации изменений.
const (
	priceChangeThreshold  = 0.05 // доля изменения цены
	stockLowDropThreshold = 0.5  // доля падения остатков
)

// classifyChange сравнивает два снапшота товара и возвращает событие,
// если пересечён один из порогов, иначе nil. Не больше одного события
// на сравнение: переходы остатков в ноль и обратно важнее изменения
// цены, падение остатков без обнуления проверяется последним.
func classifyChange(userID int64, itemID, itemName string, old, next models.Snapshot) *models.ChangeEvent {
	event := func(kind models.EventKind, oldValue, newValue int) *models.ChangeEvent {
		return &models.ChangeEvent{
			UserID:   userID,
			ItemID:   itemID,
			ItemName: itemName,
			Kind:     kind,
			OldValue: oldValue,
			NewValue: newValue,
		}
	}

	if old.Stock > 0 && next.Stock == 0 {
		return event(models.EventStockDepleted, old.Stock, next.Stock)
	}
	if old.Stock == 0 && next.Stock > 0 {
		return event(models.EventStockReplenished, old.Stock, next.Stock)
	}

	if old.Price > 0 {
		diff := float64(next.Price - old.Price)
		if diff < 0 {
			diff = -diff
		}
		if diff/float64(old.Price) > priceChangeThreshold {
			return event(models.EventPriceChanged, old.Price, next.Price)
		}
	}

	if old.Stock > 0 && next.Stock > 0 {
		drop := float64(old.Stock - next.Stock)
		if drop/float64(old.Stock) > stockLowDropThreshold {
			return event(models.EventStockLow, old.Stock, next.Stock)
		}
	}
	return nil
}
