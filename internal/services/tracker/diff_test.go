package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		name     string
		old      models.Snapshot
		next     models.Snapshot
		wantKind models.EventKind
		wantNone bool
	}{
		{
			name:     "падение цены выше порога",
			old:      models.Snapshot{Price: 1000, Stock: 10},
			next:     models.Snapshot{Price: 949, Stock: 10},
			wantKind: models.EventPriceChanged,
		},
		{
			name:     "рост цены выше порога",
			old:      models.Snapshot{Price: 1000, Stock: 10},
			next:     models.Snapshot{Price: 1051, Stock: 10},
			wantKind: models.EventPriceChanged,
		},
		{
			name:     "изменение цены в пределах порога",
			old:      models.Snapshot{Price: 1000, Stock: 10},
			next:     models.Snapshot{Price: 970, Stock: 10},
			wantNone: true,
		},
		{
			name:     "изменение цены ровно на пороге не событие",
			old:      models.Snapshot{Price: 1000, Stock: 10},
			next:     models.Snapshot{Price: 950, Stock: 10},
			wantNone: true,
		},
		{
			name:     "товар закончился",
			old:      models.Snapshot{Price: 1000, Stock: 5},
			next:     models.Snapshot{Price: 1000, Stock: 0},
			wantKind: models.EventStockDepleted,
		},
		{
			name:     "товар снова в наличии",
			old:      models.Snapshot{Price: 1000, Stock: 0},
			next:     models.Snapshot{Price: 1000, Stock: 12},
			wantKind: models.EventStockReplenished,
		},
		{
			name:     "остатки резко упали",
			old:      models.Snapshot{Price: 1000, Stock: 100},
			next:     models.Snapshot{Price: 1000, Stock: 40},
			wantKind: models.EventStockLow,
		},
		{
			name:     "падение остатков наполовину не событие",
			old:      models.Snapshot{Price: 1000, Stock: 100},
			next:     models.Snapshot{Price: 1000, Stock: 50},
			wantNone: true,
		},
		{
			name:     "обнуление важнее изменения цены",
			old:      models.Snapshot{Price: 1000, Stock: 5},
			next:     models.Snapshot{Price: 500, Stock: 0},
			wantKind: models.EventStockDepleted,
		},
		{
			name:     "без изменений",
			old:      models.Snapshot{Price: 1000, Stock: 10},
			next:     models.Snapshot{Price: 1000, Stock: 10},
			wantNone: true,
		},
		{
			name:     "нулевая старая цена не даёт деления на ноль",
			old:      models.Snapshot{Price: 0, Stock: 10},
			next:     models.Snapshot{Price: 500, Stock: 10},
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := classifyChange(1, "100500", "Кроссовки", tt.old, tt.next)
			if tt.wantNone {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, tt.wantKind, event.Kind)
			assert.Equal(t, int64(1), event.UserID)
			assert.Equal(t, "100500", event.ItemID)
		})
	}
}

// Повторное сравнение одинаковых снапшотов не должно давать событие:
// каждое изменение уведомляет не больше одного раза.
func TestClassifyChangeIdempotent(t *testing.T) {
	old := models.Snapshot{Price: 1000, Stock: 10}
	next := models.Snapshot{Price: 800, Stock: 10}

	event := classifyChange(1, "100500", "Кроссовки", old, next)
	require.NotNil(t, event)
	assert.Equal(t, models.EventPriceChanged, event.Kind)

	assert.Nil(t, classifyChange(1, "100500", "Кроссовки", next, next))
}
