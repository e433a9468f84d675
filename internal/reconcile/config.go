// Package reconcile implements the balance-reconciliation engine and the
// estimate maintainer that keeps synthetic transactions consistent with it.
package reconcile

import "github.com/shopspring/decimal"

// BalanceBasis selects which reported balances drive the savings diff.
type BalanceBasis string

const (
	// BasisSavings reconciles against the "Savings" account type only.
	BasisSavings BalanceBasis = "savings"
	// BasisAll reconciles against the sum of every account type.
	BasisAll BalanceBasis = "all"
)

// Config holds the reconciliation policy. Exactly one policy applies to the
// whole system; the knobs exist so deployments can choose, not so code paths
// can diverge.
type Config struct {
	Basis             BalanceBasis
	ReportingCurrency string
	Threshold         decimal.Decimal
}

// DefaultConfig returns the default policy: savings-driven reconciliation
// with a materiality threshold of one reporting-currency unit.
func DefaultConfig() Config {
	return Config{
		Basis:             BasisSavings,
		ReportingCurrency: "EUR",
		Threshold:         decimal.NewFromInt(1),
	}
}
