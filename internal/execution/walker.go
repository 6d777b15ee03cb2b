package execution

import (
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
)

// Fill is the quantity taken at one price level
type Fill struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// WalkResult is the outcome of consuming one side of a book
type WalkResult struct {
	Side           types.OrderSide `json:"side"`
	Requested      int64           `json:"requested"`
	Filled         int64           `json:"filled"`
	Notional       decimal.Decimal `json:"notional"`
	Fills          []Fill          `json:"fills"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

// AveragePrice returns the volume-weighted fill price, zero when nothing filled
func (r WalkResult) AveragePrice() decimal.Decimal {
	if r.Filled == 0 {
		return decimal.Zero
	}
	return r.Notional.Div(decimal.NewFromInt(r.Filled))
}

// Shortfall is the requested quantity the book could not absorb
func (r WalkResult) Shortfall() int64 {
	if r.Requested <= r.Filled {
		return 0
	}
	return r.Requested - r.Filled
}

// IsPartial reports whether the book ran out before the request was met
func (r WalkResult) IsPartial() bool {
	return r.Shortfall() > 0
}

// Slippage is the signed fractional distance of the average fill from the
// reference price, positive when unfavourable for either side.
func (r WalkResult) Slippage() float64 {
	return signedSlippage(r.Side, r.AveragePrice(), r.ReferencePrice, r.Filled)
}

func signedSlippage(side types.OrderSide, avg, ref decimal.Decimal, filled int64) float64 {
	if filled <= 0 || !ref.IsPositive() {
		return 0
	}
	raw := avg.Sub(ref).Div(ref).InexactFloat64()
	if side == types.OrderSideSell {
		return -raw
	}
	return raw
}

// PeekCost walks the book without modifying it
func PeekCost(side types.OrderSide, quantity int64, depth *types.MarketDepth) WalkResult {
	result := WalkResult{Side: side, Requested: quantity, Notional: decimal.Zero}
	if depth == nil {
		return result
	}
	result.ReferencePrice, _ = depth.BestPrice(side)
	if quantity <= 0 {
		return result
	}

	// Levels is a view onto depth; walkLevels only writes when consume is set.
	result.Filled, result.Notional, result.Fills = walkLevels(depth.Levels(side), quantity, false)
	return result
}

// WorkingBook is a private, mutable copy of a depth snapshot.
// Consumed volume stays consumed for every later walk on the same book.
type WorkingBook struct {
	depth *types.MarketDepth
}

// NewWorkingBook clones depth so the caller's snapshot is never touched
func NewWorkingBook(depth *types.MarketDepth) *WorkingBook {
	if depth == nil {
		return &WorkingBook{depth: &types.MarketDepth{}}
	}
	return &WorkingBook{depth: depth.Clone()}
}

// ApplyAndConsume walks the book and decrements every level it fills against
func (b *WorkingBook) ApplyAndConsume(side types.OrderSide, quantity int64) WalkResult {
	result := WalkResult{Side: side, Requested: quantity, Notional: decimal.Zero}
	result.ReferencePrice, _ = b.depth.BestPrice(side)
	if quantity <= 0 {
		return result
	}

	result.Filled, result.Notional, result.Fills = walkLevels(b.depth.Levels(side), quantity, true)
	return result
}

// BestPrice returns the best remaining price on the side side consumes
func (b *WorkingBook) BestPrice(side types.OrderSide) (decimal.Decimal, bool) {
	return b.depth.BestPrice(side)
}

// Remaining returns the unconsumed volume on the side side consumes
func (b *WorkingBook) Remaining(side types.OrderSide) int64 {
	return b.depth.TotalVolume(side)
}

// Snapshot returns a copy of the current book state
func (b *WorkingBook) Snapshot() *types.MarketDepth {
	return b.depth.Clone()
}

func walkLevels(levels []types.PriceLevel, quantity int64, consume bool) (int64, decimal.Decimal, []Fill) {
	remaining := quantity
	notional := decimal.Zero
	var fills []Fill

	for i := range levels {
		if remaining == 0 {
			break
		}
		if levels[i].Volume <= 0 {
			continue
		}

		fill := levels[i].Volume
		if remaining < fill {
			fill = remaining
		}

		notional = notional.Add(levels[i].Price.Mul(decimal.NewFromInt(fill)))
		fills = append(fills, Fill{Price: levels[i].Price, Quantity: fill})
		remaining -= fill

		if consume {
			levels[i].Volume -= fill
		}
	}

	return quantity - remaining, notional, fills
}
