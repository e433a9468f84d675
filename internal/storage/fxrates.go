package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/model"
)

const rateDateLayout = "2006-01-02"

// SaveFxRate stores or replaces the daily rate for a currency pair. The
// external fetch job replays days, so upsert semantics keep it idempotent.
func (s *SQLiteStorage) SaveFxRate(ctx context.Context, rate *model.FxRate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveFxRate(ctx, s.db, rate)
}

func (s *SQLiteStorage) saveFxRate(ctx context.Context, q querier, rate *model.FxRate) error {
	if err := validateFxRate(rate); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO fx_rates (date, base_currency, quote_currency, rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, base_currency, quote_currency) DO UPDATE SET rate = excluded.rate`,
		rate.Date.Format(rateDateLayout), rate.BaseCurrency, rate.QuoteCurrency, rate.Rate.String())
	if err != nil {
		return fmt.Errorf("failed to save exchange rate: %w", err)
	}
	return nil
}

// GetFxRate returns the stored rate converting one unit of base into quote
// on the given date. Missing pairs return common.ErrRateNotFound.
func (s *SQLiteStorage) GetFxRate(ctx context.Context, date time.Time, base, quote string) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}
	return s.getFxRate(ctx, s.db, date, base, quote)
}

func (s *SQLiteStorage) getFxRate(ctx context.Context, q querier, date time.Time, base, quote string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `
		SELECT rate FROM fx_rates
		WHERE date = ? AND base_currency = ? AND quote_currency = ?`,
		date.Format(rateDateLayout), base, quote).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s/%s on %s", common.ErrRateNotFound, base, quote, date.Format(rateDateLayout))
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query exchange rate: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt rate %q for %s/%s: %w", raw, base, quote, err)
	}
	return rate, nil
}
