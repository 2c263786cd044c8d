// Package sender превращает сообщения из очередей уведомлений в текст
// для пользователя и отправляет его в чат.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Notifier доставляет текст сообщения пользователю.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Service обрабатывает сообщения очередей changes и expiring.
type Service struct {
	notifier Notifier
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		notifier: notifier,
		log:      log,
	}
}

// SendChangeNotification обрабатывает событие изменения товара.
func (s *Service) SendChangeNotification(ctx context.Context, body []byte) error {
	const op = "sender.SendChangeNotification"
	var event models.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := formatChangeEvent(event)
	if err := s.notifier.Notify(ctx, event.UserID, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("change notification sent",
		slog.Int64("user_id", event.UserID), slog.String("item_id", event.ItemID),
		slog.String("kind", string(event.Kind)))
	return nil
}

// SendExpiryReminder обрабатывает напоминание об окончании подписки.
func (s *Service) SendExpiryReminder(ctx context.Context, body []byte) error {
	const op = "sender.SendExpiryReminder"
	var reminder models.ExpiryReminder
	if err := json.Unmarshal(body, &reminder); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := formatExpiryReminder(reminder)
	if err := s.notifier.Notify(ctx, reminder.UserID, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("expiry reminder sent", slog.Int64("user_id", reminder.UserID))
	return nil
}

func formatChangeEvent(event models.ChangeEvent) string {
	switch event.Kind {
	case models.EventPriceChanged:
		return fmt.Sprintf("💰 Цена товара «%s» (арт. %s) изменилась: %d ₽ → %d ₽",
			event.ItemName, event.ItemID, event.OldValue, event.NewValue)
	case models.EventStockDepleted:
		return fmt.Sprintf("📦 Товар «%s» (арт. %s) закончился на складе",
			event.ItemName, event.ItemID)
	case models.EventStockReplenished:
		return fmt.Sprintf("📦 Товар «%s» (арт. %s) снова в наличии: %d шт.",
			event.ItemName, event.ItemID, event.NewValue)
	case models.EventStockLow:
		return fmt.Sprintf("📦 Остатки товара «%s» (арт. %s) заканчиваются: %d шт. (было %d)",
			event.ItemName, event.ItemID, event.NewValue, event.OldValue)
	default:
		return fmt.Sprintf("Товар «%s» (арт. %s) изменился: %d → %d",
			event.ItemName, event.ItemID, event.OldValue, event.NewValue)
	}
}

func formatExpiryReminder(reminder models.ExpiryReminder) string {
	days := declineDays(reminder.DaysLeft)
	return fmt.Sprintf(
		"⚠️ Ваша подписка «%s» истекает через %d %s (%s).\nПродлите подписку, чтобы сохранить доступ ко всем функциям.",
		reminder.Tier, reminder.DaysLeft, days,
		reminder.ExpiresAt.Format("02.01.2006"))
}

// declineDays склоняет слово "день" по числу дней.
func declineDays(n int) string {
	if n < 0 {
		n = -n
	}
	switch {
	case n%100 >= 11 && n%100 <= 14:
		return "дней"
	case n%10 == 1:
		return "день"
	case n%10 >= 2 && n%10 <= 4:
		return "дня"
	default:
		return "дней"
	}
}
