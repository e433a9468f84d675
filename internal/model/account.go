package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountTypeSavings is the balance classification the default
// reconciliation policy keys on.
const AccountTypeSavings = "Savings"

// Account is a user-owned account used as a dimension for balance
// aggregation and estimated-transaction placement.
type Account struct {
	CreatedAt   time.Time
	Name        string
	UserID      string
	Currency    string
	AccountType string
	ID          int64
}

// AccountBalance is a reported balance snapshot for one account in one
// period. It is the ground truth the reconciliation engine works against.
type AccountBalance struct {
	ID        int64
	AccountID int64
	PeriodID  int64
	Balance   decimal.Decimal
}

// Category groups transactions for reporting. The estimate maintainer owns
// a dedicated per-user category for synthetic entries.
type Category struct {
	CreatedAt time.Time
	Name      string
	UserID    string
	ID        int64
}

// EstimateCategoryName is the category synthetic transactions are filed
// under, auto-created per user on first use.
const EstimateCategoryName = "Estimated Transaction"
