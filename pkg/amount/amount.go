package amount

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPlaces is the number of fractional digits kept on generated amounts.
const DefaultPlaces = 4

var ErrInvalidRange = errors.New("invalid range")

// Range is a half-open interval [Min, Max) of human-readable amounts.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// NewRange parses a range from decimal strings. It panics on malformed input, so it should only be used with
// constants.
func NewRange(min, max string) Range {
	return Range{
		Min: decimal.RequireFromString(min),
		Max: decimal.RequireFromString(max),
	}
}

func (r Range) String() string {
	return fmt.Sprintf("[%v, %v)", r.Min, r.Max)
}

// Generator produces random swap amounts and random delays between iterations. It is not safe for concurrent use.
type Generator struct {
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

// NewGenerator returns a Generator reading from src, producing delays in [minDelay, maxDelay).
func NewGenerator(src rand.Source, minDelay, maxDelay time.Duration) (*Generator, error) {
	if minDelay < 0 || minDelay >= maxDelay {
		return nil, fmt.Errorf("%w: delay [%v, %v)", ErrInvalidRange, minDelay, maxDelay)
	}
	return &Generator{
		rng:      rand.New(src),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}, nil
}

// Default returns a time-seeded Generator with delays between 10 and 20 seconds.
func Default() *Generator {
	return &Generator{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		minDelay: 10 * time.Second,
		maxDelay: 20 * time.Second,
	}
}

// Amount samples uniformly from [min, max) and rounds the result to the given number of fractional digits. A min with
// more digits is rounded up first. The result never reaches max; when rounding would push it there the sample is
// truncated instead.
func (g *Generator) Amount(min, max decimal.Decimal, places int32) (decimal.Decimal, error) {
	if !min.LessThan(max) {
		return decimal.Zero, fmt.Errorf("%w: [%v, %v)", ErrInvalidRange, min, max)
	}
	// The smallest value with the requested precision that is still in range.
	low := min.RoundCeil(places)
	if !low.LessThan(max) {
		return decimal.Zero, fmt.Errorf("%w: no %d-decimal value in [%v, %v)", ErrInvalidRange, places, min, max)
	}

	span := max.Sub(low)
	value := low.Add(span.Mul(decimal.NewFromFloat(g.rng.Float64())))
	rounded := value.Round(places)
	if rounded.GreaterThanOrEqual(max) {
		rounded = value.Truncate(places)
	}
	return rounded, nil
}

// Sample draws an amount from the range with DefaultPlaces fractional digits.
func (g *Generator) Sample(r Range) (decimal.Decimal, error) {
	return g.Amount(r.Min, r.Max, DefaultPlaces)
}

// DelayMillis returns a random number of milliseconds in [minDelay, maxDelay).
func (g *Generator) DelayMillis() int64 {
	min, max := g.minDelay.Milliseconds(), g.maxDelay.Milliseconds()
	if max <= min {
		return min
	}
	return min + g.rng.Int63n(max-min)
}

// Delay is DelayMillis as a duration.
func (g *Generator) Delay() time.Duration {
	return time.Duration(g.DelayMillis()) * time.Millisecond
}

// ToUnits converts a human amount into base units of a token with the given decimals. Digits beyond the token
// precision are dropped.
func ToUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// FromUnits converts base units back into a human amount.
func FromUnits(units *big.Int, decimals uint8) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -int32(decimals))
}
