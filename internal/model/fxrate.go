package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FxRate is a stored daily conversion rate: one unit of BaseCurrency is
// worth Rate units of QuoteCurrency on Date.
type FxRate struct {
	Date          time.Time
	BaseCurrency  string
	QuoteCurrency string
	Rate          decimal.Decimal
	ID            int64
}
