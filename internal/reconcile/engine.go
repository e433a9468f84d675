package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/service"
)

// Store is the slice of the persistence layer the engine reads from. Both
// service.Storage and an open service.Transaction satisfy it.
type Store interface {
	NextPeriod(ctx context.Context, p *model.Period) (*model.Period, error)
	GetEstimatedTransactions(ctx context.Context, userID string, periodID int64) ([]model.Transaction, error)
}

// Engine computes the implied missing income or expense for a period by
// reconciling recorded activity against the change in reported balances.
type Engine struct {
	store  Store
	reader service.LedgerReader
	cfg    Config
}

// NewEngine creates a reconciliation engine over the given store and reader.
func NewEngine(store Store, reader service.LedgerReader, cfg Config) *Engine {
	return &Engine{
		store:  store,
		reader: reader,
		cfg:    cfg,
	}
}

// Summarize reconciles one (user, period) pair. Lookup failures become a
// StatusError summary rather than an error, so callers can always render or
// skip the period.
func (e *Engine) Summarize(ctx context.Context, userID string, period *model.Period) *model.EstimationSummary {
	summary := &model.EstimationSummary{
		Status:      model.StatusBalanced,
		PeriodLabel: period.Label,
	}

	nextPeriod, err := e.store.NextPeriod(ctx, period)
	if err != nil {
		return e.fail(summary, fmt.Errorf("failed to resolve next period: %w", err))
	}

	currentBalances, err := e.reader.BalancesByAccountType(ctx, userID, period)
	if err != nil {
		return e.fail(summary, err)
	}
	nextBalances, err := e.reader.BalancesByAccountType(ctx, userID, nextPeriod)
	if err != nil {
		return e.fail(summary, err)
	}

	recorded, err := e.reader.RecordedTotals(ctx, userID, period)
	if err != nil {
		return e.fail(summary, err)
	}
	estimated, err := e.reader.EstimatedTotals(ctx, userID, period)
	if err != nil {
		return e.fail(summary, err)
	}

	savingsCurrent := e.basisBalance(currentBalances)
	savingsNext := e.basisBalance(nextBalances)

	// A savings drop beyond what recorded income and investments explain
	// implies unrecorded spending; a rise implies unrecorded income.
	// Estimated rows only count on the investment side: the income and
	// expense estimates are exactly what this computation re-derives.
	income := recorded.Income
	investments := recorded.Investments.Add(estimated.Investments)
	savingsDiff := savingsNext.Sub(savingsCurrent)
	estimatedExpenses := income.Sub(savingsDiff).Sub(investments)

	missingExpenses := estimatedExpenses.Sub(recorded.Expenses)
	if missingExpenses.IsNegative() {
		missingExpenses = decimal.Zero
	}
	missingIncome := decimal.Zero
	if estimatedExpenses.IsNegative() {
		missingIncome = estimatedExpenses.Neg()
	}

	summary.Details = model.EstimationDetails{
		IncomeRecorded:      recorded.Income,
		ExpensesRecorded:    recorded.Expenses,
		InvestmentsRecorded: recorded.Investments,
		SavingsCurrent:      savingsCurrent,
		SavingsNext:         savingsNext,
		EstimatedExpenses:   estimatedExpenses,
		MissingExpenses:     missingExpenses,
		MissingIncome:       missingIncome,
	}

	existing, err := e.store.GetEstimatedTransactions(ctx, userID, period.ID)
	if err != nil {
		return e.fail(summary, fmt.Errorf("failed to load existing estimates: %w", err))
	}
	if len(existing) > 0 {
		summary.HasExisting = true
		summary.ExistingID = existing[0].ID
	}

	switch {
	case missingExpenses.GreaterThan(e.cfg.Threshold):
		summary.Status = model.StatusMissingExpenses
		summary.EstimatedType = model.TypeExpense
		summary.EstimatedAmount = missingExpenses
	case missingIncome.GreaterThan(e.cfg.Threshold):
		summary.Status = model.StatusMissingIncome
		summary.EstimatedType = model.TypeIncome
		summary.EstimatedAmount = missingIncome
	default:
		summary.Status = model.StatusBalanced
		summary.EstimatedAmount = decimal.Zero
	}

	slog.Debug("reconciled period",
		"user", userID,
		"period", period.Label,
		"status", summary.Status,
		"estimated_amount", summary.EstimatedAmount.String())
	return summary
}

// basisBalance reduces a per-type balance map to the configured basis.
func (e *Engine) basisBalance(balances map[string]decimal.Decimal) decimal.Decimal {
	if e.cfg.Basis == BasisAll {
		total := decimal.Zero
		for _, balance := range balances {
			total = total.Add(balance)
		}
		return total
	}
	return balances[model.AccountTypeSavings]
}

func (e *Engine) fail(summary *model.EstimationSummary, err error) *model.EstimationSummary {
	summary.Status = model.StatusError
	summary.Message = err.Error()
	summary.EstimatedType = ""
	summary.EstimatedAmount = decimal.Zero
	slog.Error("reconciliation failed", "period", summary.PeriodLabel, "error", err)
	return summary
}
