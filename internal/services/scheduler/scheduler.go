// Package scheduler реализует фоновую проверку подписок, срок которых
// скоро закончится, и публикацию напоминаний в очередь уведомлений.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
	"github.com/magabrotheeeer/marketplace-analytics/internal/rabbitmq"
)

// Repository определяет доступ к аккаунтам с истекающей подпиской.
type Repository interface {
	FindExpiringAccounts(ctx context.Context, withinDays int) ([]*models.ExpiryReminder, error)
}

// Dedup хранит отметки об уже отправленных напоминаниях.
type Dedup interface {
	SetNX(key string, value any, expiration time.Duration) (bool, error)
}

// Service публикует напоминания об окончании подписки.
type Service struct {
	repo       Repository
	dedup      Dedup
	log        *slog.Logger
	interval   time.Duration
	withinDays int
}

// New создает новый экземпляр Service.
func New(repo Repository, dedup Dedup, log *slog.Logger,
	interval time.Duration, withinDays int) *Service {
	return &Service{
		repo:       repo,
		dedup:      dedup,
		log:        log,
		interval:   interval,
		withinDays: withinDays,
	}
}

// Run запускает периодическую проверку: первый проход сразу, затем
// каждые interval. Возвращается при отмене контекста.
func (s *Service) Run(ctx context.Context, ch rabbitmq.Channel) {
	s.log.Info("expiry scheduler started",
		slog.Duration("interval", s.interval), slog.Int("within_days", s.withinDays))
	s.runCheck(ctx, ch)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runCheck(ctx, ch)
		case <-ctx.Done():
			s.log.Info("expiry scheduler stopped")
			return
		}
	}
}

// runCheck находит подписки, истекающие в ближайшие withinDays дней,
// и публикует напоминание не чаще раза в сутки на пользователя.
// Проверка идёт каждый час, поэтому без отметки в Redis пользователь
// получал бы одно и то же напоминание каждый проход.
func (s *Service) runCheck(ctx context.Context, ch rabbitmq.Channel) {
	reminders, err := s.repo.FindExpiringAccounts(ctx, s.withinDays)
	if err != nil {
		s.log.Error("failed to find expiring accounts", sl.Err(err))
		return
	}

	sent := 0
	for _, reminder := range reminders {
		key := fmt.Sprintf("notify:expiring:%d:%s",
			reminder.UserID, time.Now().Format("2006-01-02"))
		firstToday, err := s.dedup.SetNX(key, reminder.ExpiresAt, 24*time.Hour)
		if err != nil {
			s.log.Warn("failed to check reminder dedup",
				slog.Int64("user_id", reminder.UserID), sl.Err(err))
			continue
		}
		if !firstToday {
			continue
		}

		if err := rabbitmq.PublishMessage(ch, "notifications", "expiring", reminder); err != nil {
			s.log.Error("failed to publish expiry reminder",
				slog.Int64("user_id", reminder.UserID), sl.Err(err))
			continue
		}
		sent++
	}

	s.log.Info("expiry check finished",
		slog.Int("expiring", len(reminders)), slog.Int("sent", sent))
}
