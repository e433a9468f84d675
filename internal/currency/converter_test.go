package currency

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindthegap/mindthegap/internal/common"
)

// fakeRates is an in-memory rate table.
type fakeRates struct {
	mu      sync.Mutex
	rates   map[string]decimal.Decimal
	lookups int
}

func newFakeRates() *fakeRates {
	return &fakeRates{rates: make(map[string]decimal.Decimal)}
}

func (f *fakeRates) set(date time.Time, base, quote, rate string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates[f.key(date, base, quote)] = decimal.RequireFromString(rate)
}

func (f *fakeRates) key(date time.Time, base, quote string) string {
	return fmt.Sprintf("%s|%s|%s", date.Format("2006-01-02"), base, quote)
}

func (f *fakeRates) GetFxRate(_ context.Context, date time.Time, base, quote string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	rate, ok := f.rates[f.key(date, base, quote)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", common.ErrRateNotFound, base, quote)
	}
	return rate, nil
}

// fakeClock lets tests advance time past the cache TTL.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestConverter_Rate_Identity(t *testing.T) {
	conv := NewConverter(newFakeRates(), "EUR")

	rate, err := conv.Rate(context.Background(), testDate, "USD", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestConverter_Rate_Direct(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.10")
	conv := NewConverter(rates, "EUR")

	rate, err := conv.Rate(context.Background(), testDate, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
}

func TestConverter_Rate_Reciprocal(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.25")
	conv := NewConverter(rates, "EUR")

	// Only EUR->USD is stored; USD->EUR derives from the reciprocal
	rate, err := conv.Rate(context.Background(), testDate, "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.8")), "got %s", rate)
}

func TestConverter_Rate_TwoHops(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "GBP", "EUR", "1.20")
	rates.set(testDate, "EUR", "USD", "1.10")
	conv := NewConverter(rates, "EUR")

	// GBP->USD has no direct pair and routes through the base currency
	rate, err := conv.Rate(context.Background(), testDate, "GBP", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.32")), "got %s", rate)
}

func TestConverter_Rate_MissingHop(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "GBP", "EUR", "1.20")
	conv := NewConverter(rates, "EUR")

	_, err := conv.Rate(context.Background(), testDate, "GBP", "USD")
	assert.ErrorIs(t, err, common.ErrRateNotFound)
}

func TestConverter_Convert(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.0937")
	conv := NewConverter(rates, "EUR")
	ctx := context.Background()

	// Rounded to minor units
	got, err := conv.Convert(ctx, decimal.RequireFromString("100"), "EUR", "USD", testDate)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("109.37")), "got %s", got)

	// Zero passes through without a lookup
	got, err = conv.Convert(ctx, decimal.Zero, "EUR", "JPY", testDate)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	// Identical currencies pass through unchanged
	amount := decimal.RequireFromString("12.345")
	got, err = conv.Convert(ctx, amount, "EUR", "EUR", testDate)
	require.NoError(t, err)
	assert.True(t, got.Equal(amount))
}

func TestConverter_Convert_RoundTrip(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.0937")
	conv := NewConverter(rates, "EUR")
	ctx := context.Background()

	original := decimal.RequireFromString("250.00")
	there, err := conv.Convert(ctx, original, "EUR", "USD", testDate)
	require.NoError(t, err)
	back, err := conv.Convert(ctx, there, "USD", "EUR", testDate)
	require.NoError(t, err)

	// Round trip holds within minor-unit rounding tolerance
	diff := back.Sub(original).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")),
		"round trip drifted by %s", diff)
}

func TestConverter_CacheStaleness(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.10")
	clock := &fakeClock{now: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	conv := NewConverter(rates, "EUR", WithClock(clock))
	ctx := context.Background()

	rate, err := conv.Rate(ctx, testDate, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	lookupsAfterFirst := rates.lookups

	// A rate change inside the TTL window is not observed: the cached value
	// is served without touching the store.
	rates.set(testDate, "EUR", "USD", "1.50")
	rate, err = conv.Rate(ctx, testDate, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")), "expected stale cached rate, got %s", rate)
	assert.Equal(t, lookupsAfterFirst, rates.lookups)

	// Past the TTL the entry expires and the new rate surfaces
	clock.advance(DefaultCacheTTL + time.Minute)
	rate, err = conv.Rate(ctx, testDate, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.50")))
}

func TestConverter_WithSource_SharesCache(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.10")
	conv := NewConverter(rates, "EUR")
	ctx := context.Background()

	_, err := conv.Rate(ctx, testDate, "EUR", "USD")
	require.NoError(t, err)
	lookupsAfterFirst := rates.lookups

	// A derived converter over an empty source still resolves the pair
	// from the shared cache without any lookup.
	empty := newFakeRates()
	derived := conv.WithSource(empty)
	rate, err := derived.Rate(ctx, testDate, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	assert.Zero(t, empty.lookups)
	assert.Equal(t, lookupsAfterFirst, rates.lookups)

	// Uncached pairs resolve against the derived source only
	empty.set(testDate, "EUR", "GBP", "0.85")
	rate, err = derived.Rate(ctx, testDate, "EUR", "GBP")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.85")))
	assert.Equal(t, lookupsAfterFirst, rates.lookups)
}

func TestConverter_CacheConcurrentAccess(t *testing.T) {
	rates := newFakeRates()
	rates.set(testDate, "EUR", "USD", "1.10")
	conv := NewConverter(rates, "EUR")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := conv.Rate(context.Background(), testDate, "EUR", "USD")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
