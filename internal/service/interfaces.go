// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/model"
)

// Totals aggregates transaction amounts for one (user, period) pair in the
// reporting currency. Income and expenses are magnitudes; investments are
// signed (negative means a net withdrawal).
type Totals struct {
	Income      decimal.Decimal
	Expenses    decimal.Decimal
	Investments decimal.Decimal
}

// TransactionRow is a transaction joined with the currency of its account,
// which aggregation needs for conversion.
type TransactionRow struct {
	model.Transaction
	Currency string
}

// BalanceRow is an account balance joined with the account's type and
// currency.
type BalanceRow struct {
	AccountType string
	Currency    string
	Balance     decimal.Decimal
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Period operations
	GetOrCreatePeriod(ctx context.Context, year int, month time.Month) (*model.Period, error)
	GetPeriod(ctx context.Context, year int, month time.Month) (*model.Period, error)
	GetPeriodByLabel(ctx context.Context, label string) (*model.Period, error)
	NextPeriod(ctx context.Context, p *model.Period) (*model.Period, error)
	ListPeriods(ctx context.Context) ([]model.Period, error)

	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccounts(ctx context.Context, userID string) ([]model.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)

	// Balance operations
	UpsertAccountBalance(ctx context.Context, balance *model.AccountBalance) error
	GetBalanceRows(ctx context.Context, userID string, periodID int64) ([]BalanceRow, error)

	// Category operations
	GetOrCreateCategory(ctx context.Context, userID, name string) (*model.Category, error)
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)

	// Transaction operations
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionRows(ctx context.Context, userID string, periodID int64, estimated bool) ([]TransactionRow, error)
	GetEstimatedTransactions(ctx context.Context, userID string, periodID int64) ([]model.Transaction, error)
	DeleteEstimatedTransactions(ctx context.Context, userID string, periodID int64) (int64, error)

	// FX rate operations
	SaveFxRate(ctx context.Context, rate *model.FxRate) error
	GetFxRate(ctx context.Context, date time.Time, base, quote string) (decimal.Decimal, error)

	// User enumeration for batch reconciliation
	ListUserIDs(ctx context.Context) ([]string, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RateSource is the slice of Storage the currency converter depends on.
type RateSource interface {
	GetFxRate(ctx context.Context, date time.Time, base, quote string) (decimal.Decimal, error)
}

// Converter converts amounts between currencies for a given date.
type Converter interface {
	Rate(ctx context.Context, date time.Time, from, to string) (decimal.Decimal, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (decimal.Decimal, error)
	// WithSource rebinds rate lookups to another source, typically an open
	// transaction, keeping any cached rates.
	WithSource(rates RateSource) Converter
}

// LedgerReader aggregates recorded activity and reported balances for one
// (user, period) pair.
type LedgerReader interface {
	RecordedTotals(ctx context.Context, userID string, period *model.Period) (Totals, error)
	EstimatedTotals(ctx context.Context, userID string, period *model.Period) (Totals, error)
	BalancesByAccountType(ctx context.Context, userID string, period *model.Period) (map[string]decimal.Decimal, error)
}

// Clock abstracts time for cache-expiry tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
