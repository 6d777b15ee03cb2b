package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
)

// DepthGenerator generates seeded synthetic book snapshots
type DepthGenerator struct {
	rand      *rand.Rand
	basePrice float64
	tickSize  float64
	minVolume int64
	maxVolume int64
}

// NewDepthGenerator creates a seeded depth generator
func NewDepthGenerator(seed int64) *DepthGenerator {
	return &DepthGenerator{
		rand:      rand.New(rand.NewSource(seed)),
		basePrice: 100,
		tickSize:  0.01,
		minVolume: 100,
		maxVolume: 5000,
	}
}

// BasePrice returns the mid price books are built around
func (g *DepthGenerator) BasePrice() float64 {
	return g.basePrice
}

// TickSize returns the minimum price step
func (g *DepthGenerator) TickSize() float64 {
	return g.tickSize
}

// SetBasePrice sets the mid price the book is built around
func (g *DepthGenerator) SetBasePrice(price float64) {
	g.basePrice = price
}

// SetVolumeRange sets the per-level size bounds
func (g *DepthGenerator) SetVolumeRange(min, max int64) {
	g.minVolume = min
	g.maxVolume = max
}

// GenerateDepth builds a book with levels price levels per side. Prices
// move at least one tick per level, outward from the mid.
func (g *DepthGenerator) GenerateDepth(symbol string, levels int) *types.MarketDepth {
	depth := &types.MarketDepth{
		Symbol:    symbol,
		Bids:      make([]types.PriceLevel, levels),
		Asks:      make([]types.PriceLevel, levels),
		Timestamp: time.Now(),
	}

	halfSpread := g.tickSize * float64(1+g.rand.Intn(3))
	bid := g.basePrice - halfSpread
	ask := g.basePrice + halfSpread

	for i := 0; i < levels; i++ {
		depth.Bids[i] = types.PriceLevel{
			Price:  g.price(bid),
			Volume: g.volume(i),
		}
		depth.Asks[i] = types.PriceLevel{
			Price:  g.price(ask),
			Volume: g.volume(i),
		}

		step := g.tickSize * float64(1+g.rand.Intn(5))
		bid -= step
		ask += step
	}

	return depth
}

// GenerateLadder builds a one-sided ask ladder with fixed size per level,
// useful for deterministic slippage checks.
func (g *DepthGenerator) GenerateLadder(symbol string, levels int, volume int64) *types.MarketDepth {
	depth := &types.MarketDepth{
		Symbol:    symbol,
		Asks:      make([]types.PriceLevel, levels),
		Timestamp: time.Now(),
	}
	price := g.basePrice
	for i := 0; i < levels; i++ {
		depth.Asks[i] = types.PriceLevel{Price: g.price(price), Volume: volume}
		price += g.tickSize * float64(g.rand.Intn(4))
	}
	return depth
}

func (g *DepthGenerator) price(p float64) decimal.Decimal {
	if p < g.tickSize {
		p = g.tickSize
	}
	return decimal.NewFromFloat(p).Round(2)
}

func (g *DepthGenerator) volume(level int) int64 {
	span := g.maxVolume - g.minVolume
	v := g.minVolume
	if span > 0 {
		v += g.rand.Int63n(span)
	}
	// More liquidity rests deeper in the book
	return v + int64(level)*g.minVolume/2
}

// SyntheticSource serves generated books. Each call draws a fresh book from
// one seeded generator, so a run is reproducible for a given seed.
type SyntheticSource struct {
	mu     sync.Mutex
	gen    *DepthGenerator
	levels int
}

// NewSyntheticSource creates a source of levels-deep books
func NewSyntheticSource(seed int64, levels int) *SyntheticSource {
	return &SyntheticSource{
		gen:    NewDepthGenerator(seed),
		levels: levels,
	}
}

// Depth implements DepthSource
func (s *SyntheticSource) Depth(ctx context.Context, symbol string) (*types.MarketDepth, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.GenerateDepth(symbol, s.levels), nil
}
