package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// FindExpiringAccounts возвращает аккаунты, чья подписка истекает в окне
// [now, now + withinDays]. Чтение без блокировок: результат согласован
// построчно, но не как общий снимок, чего достаточно для напоминаний.
func (s *Storage) FindExpiringAccounts(ctx context.Context, withinDays int) ([]*models.ExpiryReminder, error) {
	const op = "storage.FindExpiringAccounts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, tier, expires_at,
			      GREATEST(0, EXTRACT(DAY FROM expires_at - now())::INT)
			  FROM accounts
			  WHERE tier <> 'none'
			    AND expires_at IS NOT NULL
			    AND expires_at > now()
			    AND expires_at <= now() + make_interval(days => $1)`
	rows, err := s.DB.QueryContext(ctx, query, withinDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiryReminder
	for rows.Next() {
		var r models.ExpiryReminder
		var tier string
		if err = rows.Scan(&r.UserID, &tier, &r.ExpiresAt, &r.DaysLeft); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.Tier = models.Tier(tier)
		result = append(result, &r)
	}
	return result, nil
}

// FindActiveTrackingUsers возвращает идентификаторы пользователей с активной
// подпиской и непустым списком отслеживаемых товаров. Неактивные аккаунты
// отфильтровываются на стороне базы, полного скана по ним не происходит.
func (s *Storage) FindActiveTrackingUsers(ctx context.Context) ([]int64, error) {
	const op = "storage.FindActiveTrackingUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT DISTINCT a.user_id
			  FROM accounts a
			  JOIN tracked_items t ON t.user_id = a.user_id
			  WHERE a.tier <> 'none'
			    AND a.expires_at IS NOT NULL
			    AND a.expires_at > now()
			  ORDER BY a.user_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var userID int64
		if err = rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, userID)
	}
	return result, nil
}
