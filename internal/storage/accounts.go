package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/model"
)

// CreateAccount persists a new account and returns it with its assigned ID.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.createAccount(ctx, s.db, account)
}

func (s *SQLiteStorage) createAccount(ctx context.Context, q querier, account *model.Account) (*model.Account, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, currency, account_type) VALUES (?, ?, ?, ?)`,
		account.UserID, account.Name, strings.ToUpper(account.Currency), account.AccountType)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: account %q for user %s", common.ErrDuplicateEntry, account.Name, account.UserID)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account ID: %w", err)
	}

	created := *account
	created.ID = id
	created.Currency = strings.ToUpper(account.Currency)
	return &created, nil
}

// GetAccounts returns all accounts owned by a user, ordered by creation.
func (s *SQLiteStorage) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getAccounts(ctx, s.db, userID)
}

func (s *SQLiteStorage) getAccounts(ctx context.Context, q querier, userID string) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, name, currency, account_type, created_at
		 FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.AccountType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountByID fetches a single account.
func (s *SQLiteStorage) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccountByID(ctx, s.db, id)
}

func (s *SQLiteStorage) getAccountByID(ctx context.Context, q querier, id int64) (*model.Account, error) {
	var a model.Account
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, name, currency, account_type, created_at
		 FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.AccountType, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &a, nil
}

// ListUserIDs returns the distinct user IDs that own at least one account,
// for batch reconciliation.
func (s *SQLiteStorage) ListUserIDs(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listUserIDs(ctx, s.db)
}

func (s *SQLiteStorage) listUserIDs(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user IDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user IDs: %w", err)
	}
	return ids, nil
}
