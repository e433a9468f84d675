package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mindthegap/mindthegap/internal/model"
)

// GetOrCreateCategory fetches a user's category by name, creating it on
// first use. Creation is idempotent.
func (s *SQLiteStorage) GetOrCreateCategory(ctx context.Context, userID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOrCreateCategory(ctx, s.db, userID, name)
}

func (s *SQLiteStorage) getOrCreateCategory(ctx context.Context, q querier, userID, name string) (*model.Category, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (user_id, name) VALUES (?, ?)`,
		userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	var c model.Category
	var createdAt time.Time
	err = q.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE user_id = ? AND name = ?`,
		userID, name).Scan(&c.ID, &c.UserID, &c.Name, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	c.CreatedAt = createdAt
	return &c, nil
}

// GetCategories returns all of a user's categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getCategories(ctx, s.db, userID)
}

func (s *SQLiteStorage) getCategories(ctx context.Context, q querier, userID string) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE user_id = ? ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}
