// Package storage provides the data persistence layer for the application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mindthegap/mindthegap/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrInvalidBalance     = errors.New("invalid account balance")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRate        = errors.New("invalid exchange rate")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAccount validates an account before persistence.
func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if strings.TrimSpace(account.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidAccount)
	}
	if strings.TrimSpace(account.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidAccount)
	}
	if strings.TrimSpace(account.Currency) == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidAccount)
	}
	if strings.TrimSpace(account.AccountType) == "" {
		return fmt.Errorf("%w: missing account type", ErrInvalidAccount)
	}
	return nil
}

// validateBalance validates a balance snapshot.
func validateBalance(balance *model.AccountBalance) error {
	if balance == nil {
		return fmt.Errorf("%w: balance", ErrNilParameter)
	}
	if balance.AccountID == 0 {
		return fmt.Errorf("%w: missing account ID", ErrInvalidBalance)
	}
	if balance.PeriodID == 0 {
		return fmt.Errorf("%w: missing period ID", ErrInvalidBalance)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if !model.ValidTransactionType(txn.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.AccountID == 0 {
		return fmt.Errorf("%w: missing account ID", ErrInvalidTransaction)
	}
	if txn.PeriodID == 0 {
		return fmt.Errorf("%w: missing period ID", ErrInvalidTransaction)
	}
	return nil
}

// validateFxRate validates an exchange rate row.
func validateFxRate(rate *model.FxRate) error {
	if rate == nil {
		return fmt.Errorf("%w: rate", ErrNilParameter)
	}
	if rate.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRate)
	}
	if strings.TrimSpace(rate.BaseCurrency) == "" || strings.TrimSpace(rate.QuoteCurrency) == "" {
		return fmt.Errorf("%w: missing currency code", ErrInvalidRate)
	}
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidRate)
	}
	return nil
}
