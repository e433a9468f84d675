package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/ledger"
	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/service"
)

// estimateNotes marks synthetic transactions for human readers; the
// is_estimated flag is what the engine keys on.
const estimateNotes = "Estimated from balance reconciliation"

// Maintainer applies reconciliation results to the ledger: it creates,
// replaces or deletes the single synthetic transaction per (user, period)
// so the ledger matches the engine's latest computation.
type Maintainer struct {
	storage   service.Storage
	converter service.Converter
	cfg       Config
}

// NewMaintainer creates a maintainer over the given storage and converter.
func NewMaintainer(storage service.Storage, converter service.Converter, cfg Config) *Maintainer {
	return &Maintainer{
		storage:   storage,
		converter: converter,
		cfg:       cfg,
	}
}

// Preview reconciles without mutating anything: the summary, plus whether an
// apply would replace the existing estimate.
func (m *Maintainer) Preview(ctx context.Context, userID string, period *model.Period) *model.EstimationSummary {
	reader := ledger.NewReader(m.storage, m.converter, m.cfg.ReportingCurrency)
	engine := NewEngine(m.storage, reader, m.cfg)
	return engine.Summarize(ctx, userID, period)
}

// Apply reconciles a (user, period) pair and updates the ledger inside a
// single transaction. It returns the estimated transaction now in place, or
// nil when the period needs none. Repeated calls with unchanged ledger state
// perform zero writes.
func (m *Maintainer) Apply(ctx context.Context, userID string, period *model.Period) (*model.Transaction, error) {
	if period == nil {
		return nil, fmt.Errorf("%w: period", common.ErrPeriodNotFound)
	}

	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Computing the summary inside the transaction means the decision and
	// the writes see the same ledger state. Rate lookups must also go
	// through the transaction: the pool allows a single connection, and the
	// open transaction is holding it.
	converter := m.converter.WithSource(tx)
	reader := ledger.NewReader(tx, converter, m.cfg.ReportingCurrency)
	engine := NewEngine(tx, reader, m.cfg)
	summary := engine.Summarize(ctx, userID, period)

	needsEstimate := summary.Status == model.StatusMissingExpenses || summary.Status == model.StatusMissingIncome

	if !needsEstimate {
		// Balanced, immaterial or errored periods carry no estimate.
		if _, err := tx.DeleteEstimatedTransactions(ctx, userID, period.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
		}
		return nil, nil
	}

	account, err := m.defaultAccount(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	// The estimate is stored in the account's own currency.
	amount, err := converter.Convert(ctx, summary.EstimatedAmount, m.cfg.ReportingCurrency, account.Currency, period.LastDay())
	if err != nil {
		return nil, err
	}

	existing, err := tx.GetEstimatedTransactions(ctx, userID, period.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 1 &&
		existing[0].Type == summary.EstimatedType &&
		existing[0].Amount.Equal(amount) &&
		existing[0].AccountID == account.ID {
		// The ledger already matches the computation.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
		}
		return &existing[0], nil
	}

	// Estimates are replaced wholesale, never patched; deleting the whole
	// filtered set also self-heals duplicates.
	if _, err := tx.DeleteEstimatedTransactions(ctx, userID, period.ID); err != nil {
		return nil, err
	}

	category, err := tx.GetOrCreateCategory(ctx, userID, model.EstimateCategoryName)
	if err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        period.LastDay(),
		Amount:      amount,
		Type:        summary.EstimatedType,
		CategoryID:  category.ID,
		AccountID:   account.ID,
		PeriodID:    period.ID,
		IsEstimated: true,
		Notes:       estimateNotes,
	}
	if err := tx.SaveTransaction(ctx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	slog.Info("applied estimate",
		"user", userID,
		"period", period.Label,
		"type", txn.Type,
		"amount", txn.Amount.String())
	return txn, nil
}

// Summaries reconciles every known period for a user, skipping balanced
// ones. Failing periods surface as StatusError entries rather than aborting
// the run.
func (m *Maintainer) Summaries(ctx context.Context, userID string) ([]*model.EstimationSummary, error) {
	periods, err := m.storage.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}

	var summaries []*model.EstimationSummary
	for i := range periods {
		summary := m.Preview(ctx, userID, &periods[i])
		if summary.Status == model.StatusBalanced {
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// defaultAccount picks where synthetic transactions land: an account whose
// name suggests day-to-day money, else the user's first account. No
// accounts at all is a data setup problem and fails loudly.
func (m *Maintainer) defaultAccount(ctx context.Context, store service.Transaction, userID string) (*model.Account, error) {
	accounts, err := store.GetAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: user %s", common.ErrNoAccountAvailable, userID)
	}

	for _, keyword := range []string{"checking", "savings"} {
		for i := range accounts {
			if strings.Contains(strings.ToLower(accounts[i].Name), keyword) {
				return &accounts[i], nil
			}
		}
	}
	return &accounts[0], nil
}
