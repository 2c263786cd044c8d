package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Get возвращает аккаунт пользователя вместе с отслеживаемыми товарами,
// создавая запись с настройками по умолчанию при первом обращении.
func (s *Storage) Get(ctx context.Context, userID int64) (*models.Account, error) {
	const op = "storage.Get"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := s.ensureAccount(ctx, s.DB, userID); err != nil {
		return nil, storeErr(op, err)
	}
	account, err := loadAccount(ctx, s.DB, userID, false)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return account, nil
}

// Mutate применяет transition-функцию fn к аккаунту пользователя внутри
// одной транзакции. Строка аккаунта блокируется через SELECT ... FOR UPDATE:
// два конкурентных Mutate для одного userID никогда не чередуются, вызовы
// для разных пользователей выполняются независимо. Ошибка из fn откатывает
// транзакцию и возвращается вызывающей стороне без изменений состояния.
func (s *Storage) Mutate(ctx context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error) {
	const op = "storage.Mutate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := s.ensureAccount(ctx, s.DB, userID); err != nil {
		return nil, storeErr(op, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	account, err := loadAccount(ctx, tx, userID, true)
	if err != nil {
		return nil, storeErr(op, err)
	}

	before := make(map[string]struct{}, len(account.TrackedItems))
	for _, item := range account.TrackedItems {
		before[item.ItemID] = struct{}{}
	}

	if err = fn(account); err != nil {
		return nil, err
	}

	if err = saveAccount(ctx, tx, account, before); err != nil {
		return nil, storeErr(op, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, storeErr(op, err)
	}
	return account, nil
}

// ensureAccount вставляет запись аккаунта и строки лимитов, если их ещё нет.
// Выполняется вне транзакции Mutate, чтобы не эскалировать блокировки
// при первом обращении.
func (s *Storage) ensureAccount(ctx context.Context, db dbtx, userID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return err
	}
	for _, action := range models.Actions {
		_, err = db.ExecContext(ctx,
			`INSERT INTO quotas (user_id, action) VALUES ($1, $2)
			 ON CONFLICT (user_id, action) DO NOTHING`, userID, string(action))
		if err != nil {
			return err
		}
	}
	return nil
}

func loadAccount(ctx context.Context, db dbtx, userID int64, forUpdate bool) (*models.Account, error) {
	query := `SELECT balance, tier, expires_at FROM accounts WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	account := models.NewAccount(userID)
	var expiresAt sql.NullTime
	if err := db.QueryRowContext(ctx, query, userID).Scan(
		&account.Balance, &account.Tier, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		account.ExpiresAt = &expiresAt.Time
	}

	rows, err := db.QueryContext(ctx,
		`SELECT action, used, limit_value FROM quotas WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var action string
		var quota models.Quota
		if err = rows.Scan(&action, &quota.Used, &quota.Limit); err != nil {
			_ = rows.Close()
			return nil, err
		}
		account.Quotas[models.ActionType(action)] = quota
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx,
		`SELECT item_id, name, price, stock, rating, captured_at, added_at
		 FROM tracked_items
		 WHERE user_id = $1
		 ORDER BY added_at, item_id`, userID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var item models.TrackedItem
		if err = rows.Scan(&item.ItemID, &item.Name, &item.LastSnapshot.Price,
			&item.LastSnapshot.Stock, &item.LastSnapshot.Rating,
			&item.LastSnapshot.CapturedAt, &item.AddedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		account.TrackedItems = append(account.TrackedItems, item)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	return account, nil
}

func saveAccount(ctx context.Context, tx *sql.Tx, account *models.Account, before map[string]struct{}) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, tier = $2, expires_at = $3 WHERE user_id = $4`,
		account.Balance, string(account.Tier), account.ExpiresAt, account.UserID)
	if err != nil {
		return err
	}

	for action, quota := range account.Quotas {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quotas (user_id, action, used, limit_value)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, action)
			 DO UPDATE SET used = EXCLUDED.used, limit_value = EXCLUDED.limit_value`,
			account.UserID, string(action), quota.Used, quota.Limit)
		if err != nil {
			return err
		}
	}

	after := make(map[string]struct{}, len(account.TrackedItems))
	for _, item := range account.TrackedItems {
		after[item.ItemID] = struct{}{}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tracked_items (user_id, item_id, name, price, stock, rating, captured_at, added_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id, item_id)
			 DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			     stock = EXCLUDED.stock, rating = EXCLUDED.rating,
			     captured_at = EXCLUDED.captured_at`,
			account.UserID, item.ItemID, item.Name, item.LastSnapshot.Price,
			item.LastSnapshot.Stock, item.LastSnapshot.Rating,
			item.LastSnapshot.CapturedAt, item.AddedAt)
		if err != nil {
			return err
		}
	}
	for itemID := range before {
		if _, ok := after[itemID]; ok {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM tracked_items WHERE user_id = $1 AND item_id = $2`,
			account.UserID, itemID)
		if err != nil {
			return err
		}
	}
	return nil
}
