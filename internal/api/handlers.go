package api

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/model"
)

// estimateResponse is the wire shape for preview and summary rows.
type estimateResponse struct {
	Status          string           `json:"status"`
	Period          string           `json:"period"`
	EstimatedType   string           `json:"estimated_type,omitempty"`
	EstimatedAmount decimal.Decimal  `json:"estimated_amount"`
	CurrentEstimate *string          `json:"current_estimate"`
	WillReplace     bool             `json:"will_replace"`
	Message         string           `json:"message,omitempty"`
	Details         *detailsResponse `json:"details,omitempty"`
}

type detailsResponse struct {
	IncomeRecorded      decimal.Decimal `json:"income_recorded"`
	ExpensesRecorded    decimal.Decimal `json:"expenses_recorded"`
	InvestmentsRecorded decimal.Decimal `json:"investments_recorded"`
	SavingsCurrent      decimal.Decimal `json:"savings_current"`
	SavingsNext         decimal.Decimal `json:"savings_next"`
	EstimatedExpenses   decimal.Decimal `json:"estimated_expenses"`
	MissingExpenses     decimal.Decimal `json:"missing_expenses"`
	MissingIncome       decimal.Decimal `json:"missing_income"`
}

type applyResponse struct {
	TransactionID *string `json:"transaction_id"`
	Status        string  `json:"status"`
}

func summaryToResponse(summary *model.EstimationSummary, withDetails bool) estimateResponse {
	resp := estimateResponse{
		Status:          string(summary.Status),
		Period:          summary.PeriodLabel,
		EstimatedType:   string(summary.EstimatedType),
		EstimatedAmount: summary.EstimatedAmount.Round(2),
		Message:         summary.Message,
	}
	if summary.HasExisting {
		id := summary.ExistingID
		resp.CurrentEstimate = &id
	}
	resp.WillReplace = summary.HasExisting &&
		(summary.Status == model.StatusMissingExpenses || summary.Status == model.StatusMissingIncome)
	if withDetails {
		resp.Details = &detailsResponse{
			IncomeRecorded:      summary.Details.IncomeRecorded,
			ExpensesRecorded:    summary.Details.ExpensesRecorded,
			InvestmentsRecorded: summary.Details.InvestmentsRecorded,
			SavingsCurrent:      summary.Details.SavingsCurrent,
			SavingsNext:         summary.Details.SavingsNext,
			EstimatedExpenses:   summary.Details.EstimatedExpenses,
			MissingExpenses:     summary.Details.MissingExpenses,
			MissingIncome:       summary.Details.MissingIncome,
		}
	}
	return resp
}

// resolvePeriod turns the :label path parameter into a stored period.
func (s *Server) resolvePeriod(c *fiber.Ctx) (*model.Period, error) {
	label, err := url.PathUnescape(c.Params("label"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid period label")
	}

	period, err := s.storage.GetPeriodByLabel(c.Context(), label)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to look up period")
	}
	if period == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown period: "+label)
	}
	return period, nil
}

// previewEstimate dry-runs reconciliation for one period without mutating
// anything. Engine-level failures come back as HTTP 200 with status "error".
func (s *Server) previewEstimate(c *fiber.Ctx) error {
	period, err := s.resolvePeriod(c)
	if err != nil {
		return err
	}

	summary := s.maintainer.Preview(c.Context(), c.Params("userID"), period)
	return c.JSON(summaryToResponse(summary, true))
}

// applyEstimate reconciles and updates the ledger. Only mutation-layer
// fatal errors map to HTTP error codes.
func (s *Server) applyEstimate(c *fiber.Ctx) error {
	period, err := s.resolvePeriod(c)
	if err != nil {
		return err
	}
	userID := c.Params("userID")

	var txn *model.Transaction
	applyErr := common.WithRetry(c.Context(), func() error {
		var err error
		txn, err = s.maintainer.Apply(c.Context(), userID, period)
		return err
	}, common.RetryOptions{MaxAttempts: 2})

	switch {
	case applyErr == nil:
	case errors.Is(applyErr, common.ErrNoAccountAvailable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, applyErr.Error())
	case errors.Is(applyErr, common.ErrEstimateConflict):
		return fiber.NewError(fiber.StatusConflict, applyErr.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, applyErr.Error())
	}

	if txn == nil {
		return c.Status(fiber.StatusOK).JSON(applyResponse{Status: string(model.StatusBalanced)})
	}
	id := txn.ID
	return c.Status(fiber.StatusCreated).JSON(applyResponse{
		TransactionID: &id,
		Status:        "applied",
	})
}

// listSummaries returns reconciliation summaries for every unbalanced
// period, for dashboard display.
func (s *Server) listSummaries(c *fiber.Ctx) error {
	summaries, err := s.maintainer.Summaries(c.Context(), c.Params("userID"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	// Empty result renders as [], not null.
	rows := make([]estimateResponse, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, summaryToResponse(summary, false))
	}
	return c.JSON(rows)
}
