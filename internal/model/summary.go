package model

import "github.com/shopspring/decimal"

// EstimationStatus is the outcome of reconciling one (user, period) pair.
type EstimationStatus string

const (
	// StatusBalanced means recorded activity explains the balance change
	// within the materiality threshold.
	StatusBalanced EstimationStatus = "balanced"
	// StatusMissingExpenses means the balance drop implies unrecorded
	// spending.
	StatusMissingExpenses EstimationStatus = "missing_expenses"
	// StatusMissingIncome means the balance rise implies unrecorded income.
	StatusMissingIncome EstimationStatus = "missing_income"
	// StatusError means reconciliation could not complete; Message explains
	// why. Callers render or skip the period rather than fail.
	StatusError EstimationStatus = "error"
)

// EstimationDetails is the breakdown behind a reconciliation decision.
type EstimationDetails struct {
	IncomeRecorded      decimal.Decimal
	ExpensesRecorded    decimal.Decimal
	InvestmentsRecorded decimal.Decimal
	SavingsCurrent      decimal.Decimal
	SavingsNext         decimal.Decimal
	EstimatedExpenses   decimal.Decimal
	MissingExpenses     decimal.Decimal
	MissingIncome       decimal.Decimal
}

// EstimationSummary is the value object a single reconciliation call
// produces. It is never persisted.
type EstimationSummary struct {
	Message         string
	ExistingID      string
	EstimatedType   TransactionType
	Status          EstimationStatus
	PeriodLabel     string
	EstimatedAmount decimal.Decimal
	Details         EstimationDetails
	HasExisting     bool
}
