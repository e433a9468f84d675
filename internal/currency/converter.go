// Package currency converts amounts between currencies using stored daily
// rates, hopping through a configured base currency when no direct pair
// exists.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/common"
	"github.com/mindthegap/mindthegap/internal/service"
)

// DefaultCacheTTL is how long a resolved rate stays cached. Rate updates
// inside this window are not observed until the entry expires.
const DefaultCacheTTL = 24 * time.Hour

// minorUnitPlaces is the rounding precision for converted amounts.
const minorUnitPlaces = 2

type cacheEntry struct {
	expires time.Time
	rate    decimal.Decimal
}

// rateCache holds resolved rates behind its own lock so converters derived
// via WithSource share one cache.
type rateCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// Converter resolves and caches exchange rates.
type Converter struct {
	rates        service.RateSource
	clock        service.Clock
	cache        *rateCache
	baseCurrency string
	ttl          time.Duration
}

// Option configures a Converter.
type Option func(*Converter)

// WithClock injects a clock, letting tests control cache expiry.
func WithClock(clock service.Clock) Option {
	return func(c *Converter) { c.clock = clock }
}

// WithCacheTTL overrides the cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Converter) { c.ttl = ttl }
}

// NewConverter creates a converter that resolves missing pairs through
// baseCurrency (typically "EUR").
func NewConverter(rates service.RateSource, baseCurrency string, opts ...Option) *Converter {
	c := &Converter{
		rates:        rates,
		baseCurrency: strings.ToUpper(baseCurrency),
		cache:        &rateCache{entries: make(map[string]cacheEntry)},
		ttl:          DefaultCacheTTL,
		clock:        service.SystemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSource returns a converter reading rates from a different source while
// sharing this converter's cache and settings. Callers holding an open
// storage transaction pass the transaction here so rate lookups run on its
// connection instead of blocking on the pool.
func (c *Converter) WithSource(rates service.RateSource) service.Converter {
	derived := *c
	derived.rates = rates
	return &derived
}

// Rate returns the multiplier converting one unit of from into to on the
// given date. Identical currencies yield 1. Missing hops surface
// common.ErrRateNotFound.
func (c *Converter) Rate(ctx context.Context, date time.Time, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if rate, ok := c.cached(date, from, to); ok {
		return rate, nil
	}

	rate, err := c.resolve(ctx, date, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	c.store(date, from, to, rate)
	return rate, nil
}

// Convert converts amount from one currency to another at the given date,
// rounded to minor-unit precision. Zero amounts and identical currencies
// pass through unchanged.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) || amount.IsZero() {
		return amount, nil
	}

	rate, err := c.Rate(ctx, date, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(minorUnitPlaces), nil
}

// resolve finds a rate without consulting the cache: direct pair first,
// then two hops through the base currency.
func (c *Converter) resolve(ctx context.Context, date time.Time, from, to string) (decimal.Decimal, error) {
	rate, err := c.pairRate(ctx, date, from, to)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, common.ErrRateNotFound) {
		return decimal.Zero, err
	}

	if from == c.baseCurrency || to == c.baseCurrency {
		return decimal.Zero, err
	}

	toBase, err := c.pairRate(ctx, date, from, c.baseCurrency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("no path %s->%s: %w", from, to, err)
	}
	fromBase, err := c.pairRate(ctx, date, c.baseCurrency, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("no path %s->%s: %w", from, to, err)
	}
	return toBase.Mul(fromBase), nil
}

// pairRate resolves a single hop: the stored pair, or the reciprocal of the
// opposite direction.
func (c *Converter) pairRate(ctx context.Context, date time.Time, from, to string) (decimal.Decimal, error) {
	rate, err := c.rates.GetFxRate(ctx, date, from, to)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, common.ErrRateNotFound) {
		return decimal.Zero, err
	}

	inverse, invErr := c.rates.GetFxRate(ctx, date, to, from)
	if invErr != nil {
		return decimal.Zero, err
	}
	if inverse.IsZero() {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(1).Div(inverse), nil
}

func (c *Converter) cacheKey(date time.Time, from, to string) string {
	return date.Format("2006-01-02") + "|" + from + "|" + to
}

func (c *Converter) cached(date time.Time, from, to string) (decimal.Decimal, bool) {
	c.cache.mu.RLock()
	defer c.cache.mu.RUnlock()

	entry, ok := c.cache.entries[c.cacheKey(date, from, to)]
	if !ok || c.clock.Now().After(entry.expires) {
		return decimal.Zero, false
	}
	return entry.rate, true
}

func (c *Converter) store(date time.Time, from, to string, rate decimal.Decimal) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	c.cache.entries[c.cacheKey(date, from, to)] = cacheEntry{
		rate:    rate,
		expires: c.clock.Now().Add(c.ttl),
	}
}
