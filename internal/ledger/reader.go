// Package ledger implements read-only aggregation over transactions and
// reported account balances for one (user, period) pair.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/service"
)

// Store is the slice of the persistence layer the reader depends on. Both
// service.Storage and an open service.Transaction satisfy it, so the same
// reader code runs standalone and inside the maintainer's transaction.
type Store interface {
	GetTransactionRows(ctx context.Context, userID string, periodID int64, estimated bool) ([]service.TransactionRow, error)
	GetBalanceRows(ctx context.Context, userID string, periodID int64) ([]service.BalanceRow, error)
}

// Reader aggregates ledger activity in the reporting currency.
type Reader struct {
	store             Store
	converter         service.Converter
	reportingCurrency string
}

// NewReader creates a reader that reports in reportingCurrency.
func NewReader(store Store, converter service.Converter, reportingCurrency string) *Reader {
	return &Reader{
		store:             store,
		converter:         converter,
		reportingCurrency: reportingCurrency,
	}
}

// RecordedTotals sums the user's non-estimated transactions for a period:
// magnitudes for income and expense, signed amounts for investments. A nil
// or empty period yields zero totals.
func (r *Reader) RecordedTotals(ctx context.Context, userID string, period *model.Period) (service.Totals, error) {
	return r.totals(ctx, userID, period, false)
}

// EstimatedTotals is RecordedTotals over estimated transactions only.
func (r *Reader) EstimatedTotals(ctx context.Context, userID string, period *model.Period) (service.Totals, error) {
	return r.totals(ctx, userID, period, true)
}

func (r *Reader) totals(ctx context.Context, userID string, period *model.Period, estimated bool) (service.Totals, error) {
	var totals service.Totals
	if period == nil {
		return totals, nil
	}

	rows, err := r.store.GetTransactionRows(ctx, userID, period.ID, estimated)
	if err != nil {
		return totals, fmt.Errorf("failed to load transactions for %s: %w", period.Label, err)
	}

	for _, row := range rows {
		switch row.Type {
		case model.TypeIncome:
			amount, err := r.converter.Convert(ctx, row.Magnitude(), row.Currency, r.reportingCurrency, row.Date)
			if err != nil {
				return service.Totals{}, err
			}
			totals.Income = totals.Income.Add(amount)
		case model.TypeExpense:
			amount, err := r.converter.Convert(ctx, row.Magnitude(), row.Currency, r.reportingCurrency, row.Date)
			if err != nil {
				return service.Totals{}, err
			}
			totals.Expenses = totals.Expenses.Add(amount)
		case model.TypeInvestment:
			amount, err := r.converter.Convert(ctx, row.Amount, row.Currency, r.reportingCurrency, row.Date)
			if err != nil {
				return service.Totals{}, err
			}
			totals.Investments = totals.Investments.Add(amount)
		case model.TypeTransfer, model.TypeAdjustment:
			// Internal movements don't change net activity.
		}
	}
	return totals, nil
}

// BalancesByAccountType sums the user's reported balances for a period,
// grouped by account type, converted at the period's last day. A nil period
// or one without snapshots yields an empty map.
func (r *Reader) BalancesByAccountType(ctx context.Context, userID string, period *model.Period) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal)
	if period == nil {
		return result, nil
	}

	rows, err := r.store.GetBalanceRows(ctx, userID, period.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances for %s: %w", period.Label, err)
	}

	asOf := period.LastDay()
	for _, row := range rows {
		amount, err := r.converter.Convert(ctx, row.Balance, row.Currency, r.reportingCurrency, asOf)
		if err != nil {
			return nil, err
		}
		result[row.AccountType] = result[row.AccountType].Add(amount)
	}
	return result, nil
}
