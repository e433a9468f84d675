package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction's role in the ledger.
type TransactionType string

const (
	// TypeIncome represents money earned.
	TypeIncome TransactionType = "income"
	// TypeExpense represents money spent.
	TypeExpense TransactionType = "expense"
	// TypeInvestment represents money moved into or out of investments;
	// positive amounts are contributions, negative are withdrawals.
	TypeInvestment TransactionType = "investment"
	// TypeTransfer represents money moved between the user's own accounts.
	TypeTransfer TransactionType = "transfer"
	// TypeAdjustment represents a manual correction entry.
	TypeAdjustment TransactionType = "adjustment"
)

// ValidTransactionType reports whether t is one of the known types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeInvestment, TypeTransfer, TypeAdjustment:
		return true
	}
	return false
}

// Transaction represents a single ledger entry, either user-entered or
// synthesized by the estimate maintainer.
type Transaction struct {
	Date        time.Time
	CreatedAt   time.Time
	ID          string
	UserID      string
	Notes       string
	Type        TransactionType
	Amount      decimal.Decimal
	CategoryID  int64
	AccountID   int64
	PeriodID    int64
	IsEstimated bool
}

// Magnitude returns the absolute amount. Income and expense rows are
// aggregated by magnitude regardless of stored sign; investments keep
// their sign.
func (t *Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}
