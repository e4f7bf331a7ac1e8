// Package oracle resolves ticker symbols to current prices.
package oracle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"unicode/utf16"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/shopspring/decimal"
)

// Oracle returns a strictly positive current price for a symbol. When no
// price can be produced the error wraps models.ErrPriceUnavailable.
type Oracle interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f Func) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}

func unavailable(symbol string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", models.ErrPriceUnavailable, symbol, fmt.Sprintf(format, args...))
}

func checkPrice(symbol string, p decimal.Decimal) (decimal.Decimal, error) {
	if !p.IsPositive() {
		return decimal.Zero, unavailable(symbol, "non-positive price %s", p)
	}
	return p, nil
}

// Mock derives a stable base price from the symbol, between 50 and 1049,
// optionally perturbed by up to ±5. It makes no claim about freshness.
type Mock struct {
	Noise bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock returns a Mock; with noise enabled each quote jitters around the
// symbol's base price.
func NewMock(noise bool) *Mock {
	return &Mock{Noise: noise, rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// BasePrice is the deterministic part of the mock price:
// |stringHash(symbol) % 1000| + 50.
func BasePrice(symbol string) decimal.Decimal {
	v := int64(stringHash(symbol) % 1000)
	if v < 0 {
		v = -v
	}
	return decimal.NewFromInt(v + 50)
}

// stringHash is the 31-multiplier polynomial hash over UTF-16 code units,
// wrapping at 32 bits, so mock prices stay stable across implementations.
func stringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}

func (m *Mock) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, unavailable(symbol, "%v", err)
	}
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return decimal.Zero, unavailable(symbol, "empty symbol")
	}

	price := BasePrice(symbol)
	if m.Noise {
		m.mu.Lock()
		if m.rng == nil {
			m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		jitter := m.rng.Float64()*10 - 5
		m.mu.Unlock()
		price = price.Add(decimal.NewFromFloat(jitter))
	}
	return checkPrice(symbol, price.Round(2))
}

// Static serves fixed prices; unknown symbols are unavailable.
type Static map[string]decimal.Decimal

func (s Static) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := s[models.NormalizeSymbol(symbol)]
	if !ok {
		return decimal.Zero, unavailable(symbol, "no price")
	}
	return checkPrice(symbol, p)
}
