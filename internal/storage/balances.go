package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/service"
)

// UpsertAccountBalance records or replaces the reported balance snapshot for
// an (account, period) pair.
func (s *SQLiteStorage) UpsertAccountBalance(ctx context.Context, balance *model.AccountBalance) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.upsertAccountBalance(ctx, s.db, balance)
}

func (s *SQLiteStorage) upsertAccountBalance(ctx context.Context, q querier, balance *model.AccountBalance) error {
	if err := validateBalance(balance); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, period_id, balance)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, period_id) DO UPDATE SET balance = excluded.balance`,
		balance.AccountID, balance.PeriodID, balance.Balance.String())
	if err != nil {
		return fmt.Errorf("failed to upsert account balance: %w", err)
	}
	return nil
}

// GetBalanceRows returns a user's reported balances for a period, each
// joined with the account's type and currency. No rows is a valid result.
func (s *SQLiteStorage) GetBalanceRows(ctx context.Context, userID string, periodID int64) ([]service.BalanceRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getBalanceRows(ctx, s.db, userID, periodID)
}

func (s *SQLiteStorage) getBalanceRows(ctx context.Context, q querier, userID string, periodID int64) ([]service.BalanceRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.account_type, a.currency, b.balance
		FROM account_balances b
		JOIN accounts a ON a.id = b.account_id
		WHERE a.user_id = ? AND b.period_id = ?
		ORDER BY a.id`,
		userID, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query account balances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []service.BalanceRow
	for rows.Next() {
		var row service.BalanceRow
		var balance string
		if err := rows.Scan(&row.AccountType, &row.Currency, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account balance: %w", err)
		}
		row.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance %q: %w", balance, err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account balances: %w", err)
	}
	return result, nil
}
