package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mindthegap/mindthegap/internal/model"
)

// GetOrCreatePeriod fetches the period for (year, month), creating it with a
// generated label on first reference. Creation is idempotent.
func (s *SQLiteStorage) GetOrCreatePeriod(ctx context.Context, year int, month time.Month) (*model.Period, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOrCreatePeriod(ctx, s.db, year, month)
}

func (s *SQLiteStorage) getOrCreatePeriod(ctx context.Context, q querier, year int, month time.Month) (*model.Period, error) {
	if err := model.ValidatePeriod(year, month); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}

	// INSERT OR IGNORE keeps concurrent first references race-free; the
	// SELECT below always sees exactly one row.
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO periods (year, month, label) VALUES (?, ?, ?)`,
		year, int(month), model.MakeLabel(year, month))
	if err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}

	return s.getPeriod(ctx, q, year, month)
}

// GetPeriod fetches the period for (year, month) without creating it.
func (s *SQLiteStorage) GetPeriod(ctx context.Context, year int, month time.Month) (*model.Period, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getPeriod(ctx, s.db, year, month)
}

func (s *SQLiteStorage) getPeriod(ctx context.Context, q querier, year int, month time.Month) (*model.Period, error) {
	var p model.Period
	var m int
	err := q.QueryRowContext(ctx,
		`SELECT id, year, month, label FROM periods WHERE year = ? AND month = ?`,
		year, int(month)).Scan(&p.ID, &p.Year, &m, &p.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query period: %w", err)
	}
	p.Month = time.Month(m)
	return &p, nil
}

// GetPeriodByLabel fetches a period by its display label, e.g. "March 2024".
func (s *SQLiteStorage) GetPeriodByLabel(ctx context.Context, label string) (*model.Period, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(label, "label"); err != nil {
		return nil, err
	}
	return s.getPeriodByLabel(ctx, s.db, label)
}

func (s *SQLiteStorage) getPeriodByLabel(ctx context.Context, q querier, label string) (*model.Period, error) {
	var p model.Period
	var m int
	err := q.QueryRowContext(ctx,
		`SELECT id, year, month, label FROM periods WHERE label = ?`,
		label).Scan(&p.ID, &p.Year, &m, &p.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query period by label: %w", err)
	}
	p.Month = time.Month(m)
	return &p, nil
}

// NextPeriod returns the calendar successor of p if it exists in storage,
// or nil. It never auto-creates the successor.
func (s *SQLiteStorage) NextPeriod(ctx context.Context, p *model.Period) (*model.Period, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.nextPeriod(ctx, s.db, p)
}

func (s *SQLiteStorage) nextPeriod(ctx context.Context, q querier, p *model.Period) (*model.Period, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: period", ErrNilParameter)
	}
	year, month := p.Next()
	return s.getPeriod(ctx, q, year, month)
}

// ListPeriods returns all periods in calendar order.
func (s *SQLiteStorage) ListPeriods(ctx context.Context) ([]model.Period, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listPeriods(ctx, s.db)
}

func (s *SQLiteStorage) listPeriods(ctx context.Context, q querier) ([]model.Period, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, year, month, label FROM periods ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var periods []model.Period
	for rows.Next() {
		var p model.Period
		var m int
		if err := rows.Scan(&p.ID, &p.Year, &m, &p.Label); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		p.Month = time.Month(m)
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating periods: %w", err)
	}
	return periods, nil
}
