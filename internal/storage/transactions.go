package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/service"
)

// SaveTransaction inserts a transaction. A violation of the single-estimate
// index maps to common.ErrEstimateConflict so callers can retry.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveTransaction(ctx, s.db, txn)
}

func (s *SQLiteStorage) saveTransaction(ctx context.Context, q querier, txn *model.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}

	var categoryID any
	if txn.CategoryID != 0 {
		categoryID = txn.CategoryID
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, date, amount, type,
			category_id, account_id, period_id, is_estimated, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID, txn.UserID, txn.Date, txn.Amount.String(), string(txn.Type),
		categoryID, txn.AccountID, txn.PeriodID, boolToInt(txn.IsEstimated), txn.Notes)
	if err != nil {
		// SQLite reports a unique violation by the column list, so the
		// partial single-estimate index surfaces as its three columns
		// rather than the index name.
		if txn.IsEstimated && strings.Contains(err.Error(), "transactions.user_id, transactions.period_id, transactions.type") {
			return fmt.Errorf("%w: user %s period %d type %s", common.ErrEstimateConflict, txn.UserID, txn.PeriodID, txn.Type)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: transaction %s", common.ErrDuplicateEntry, txn.ID)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	slog.Debug("saved transaction",
		"id", txn.ID,
		"type", txn.Type,
		"amount", txn.Amount.String(),
		"estimated", txn.IsEstimated)
	return nil
}

// DeleteTransaction removes a transaction by ID.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteTransaction(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteTransaction(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

// GetTransactionByID fetches a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByID(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByID(ctx context.Context, q querier, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, date, amount, type,
		       COALESCE(category_id, 0), account_id, period_id, is_estimated,
		       COALESCE(notes, ''), created_at
		FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetTransactionRows returns a user's transactions for a period filtered by
// the is_estimated flag, each joined with its account currency.
func (s *SQLiteStorage) GetTransactionRows(ctx context.Context, userID string, periodID int64, estimated bool) ([]service.TransactionRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getTransactionRows(ctx, s.db, userID, periodID, estimated)
}

func (s *SQLiteStorage) getTransactionRows(ctx context.Context, q querier, userID string, periodID int64, estimated bool) ([]service.TransactionRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.date, t.amount, t.type,
		       COALESCE(t.category_id, 0), t.account_id, t.period_id, t.is_estimated,
		       COALESCE(t.notes, ''), t.created_at, a.currency
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.user_id = ? AND t.period_id = ? AND t.is_estimated = ?
		ORDER BY t.date, t.id`,
		userID, periodID, boolToInt(estimated))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []service.TransactionRow
	for rows.Next() {
		var tr service.TransactionRow
		var amount, txnType string
		var isEstimated int
		if err := rows.Scan(
			&tr.ID, &tr.UserID, &tr.Date, &amount, &txnType,
			&tr.CategoryID, &tr.AccountID, &tr.PeriodID, &isEstimated,
			&tr.Notes, &tr.CreatedAt, &tr.Currency,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tr.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q for transaction %s: %w", amount, tr.ID, err)
		}
		tr.Type = model.TransactionType(txnType)
		tr.IsEstimated = isEstimated == 1
		result = append(result, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return result, nil
}

// GetEstimatedTransactions returns all estimated transactions for a
// (user, period) pair. A healthy ledger holds at most one per type.
func (s *SQLiteStorage) GetEstimatedTransactions(ctx context.Context, userID string, periodID int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getEstimatedTransactions(ctx, s.db, userID, periodID)
}

func (s *SQLiteStorage) getEstimatedTransactions(ctx context.Context, q querier, userID string, periodID int64) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, date, amount, type,
		       COALESCE(category_id, 0), account_id, period_id, is_estimated,
		       COALESCE(notes, ''), created_at
		FROM transactions
		WHERE user_id = ? AND period_id = ? AND is_estimated = 1
		ORDER BY id`,
		userID, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimated transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating estimated transactions: %w", err)
	}
	return result, nil
}

// DeleteEstimatedTransactions removes every estimated transaction for a
// (user, period) pair and reports how many rows went away. Deleting the
// whole filtered set self-heals any duplicates.
func (s *SQLiteStorage) DeleteEstimatedTransactions(ctx context.Context, userID string, periodID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	return s.deleteEstimatedTransactions(ctx, s.db, userID, periodID)
}

func (s *SQLiteStorage) deleteEstimatedTransactions(ctx context.Context, q querier, userID string, periodID int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND period_id = ? AND is_estimated = 1`,
		userID, periodID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete estimated transactions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted estimates: %w", err)
	}
	if affected > 0 {
		slog.Debug("deleted estimated transactions",
			"user", userID,
			"period", periodID,
			"count", affected)
	}
	return affected, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var amount, txnType string
	var isEstimated int
	if err := row.Scan(
		&txn.ID, &txn.UserID, &txn.Date, &amount, &txnType,
		&txn.CategoryID, &txn.AccountID, &txn.PeriodID, &isEstimated,
		&txn.Notes, &txn.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q for transaction %s: %w", amount, txn.ID, err)
	}
	txn.Amount = parsed
	txn.Type = model.TransactionType(txnType)
	txn.IsEstimated = isEstimated == 1
	return &txn, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
