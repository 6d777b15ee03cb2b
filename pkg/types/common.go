package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides
const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderSide is the direction of an order
type OrderSide string

// Opposite returns the other side of the book
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// IsValid reports whether s is BUY or SELL
func (s OrderSide) IsValid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// ExecutionMethod is the style used to work an order
type ExecutionMethod string

// Execution methods
const (
	MethodMarket  ExecutionMethod = "MARKET"
	MethodTWAP    ExecutionMethod = "TWAP"
	MethodVWAP    ExecutionMethod = "VWAP"
	MethodIceberg ExecutionMethod = "ICEBERG"
	MethodLimit   ExecutionMethod = "LIMIT"
)

// IsValid reports whether m is a known execution method
func (m ExecutionMethod) IsValid() bool {
	switch m {
	case MethodMarket, MethodTWAP, MethodVWAP, MethodIceberg, MethodLimit:
		return true
	}
	return false
}

// ExecutionCost breaks down the fractional cost of an execution.
// All fields are fractions of the reference price (0.001 = 10 bps).
type ExecutionCost struct {
	Slippage           float64 `json:"slippage"`
	ImpactCost         float64 `json:"impact_cost"`
	TotalCost          float64 `json:"total_cost"`
	PriceImpact        float64 `json:"price_impact"`
	VolumeWeightedCost float64 `json:"volume_weighted_cost"`
}

// NewExecutionCost assembles a cost from its two components.
// PriceImpact and VolumeWeightedCost currently mirror ImpactCost and TotalCost.
func NewExecutionCost(slippage, impact float64) ExecutionCost {
	total := slippage + impact
	return ExecutionCost{
		Slippage:           slippage,
		ImpactCost:         impact,
		TotalCost:          total,
		PriceImpact:        impact,
		VolumeWeightedCost: total,
	}
}

// ExecutionPlanEntry is one slice of a multi-slice plan
type ExecutionPlanEntry struct {
	SliceIndex int             `json:"slice_index"`
	Quantity   int64           `json:"quantity"`
	TargetTime time.Time       `json:"target_time"`
	Method     ExecutionMethod `json:"method"`
	Side       OrderSide       `json:"side"`
}

// Schedule is an ordered list of plan entries
type Schedule []ExecutionPlanEntry

// TotalQuantity sums the quantity of every entry
func (s Schedule) TotalQuantity() int64 {
	var total int64
	for _, entry := range s {
		total += entry.Quantity
	}
	return total
}

// Position is an open holding to be liquidated
type Position struct {
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Quantity     int64           `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// ExitSide is the side that closes the position. Anything other than a short
// is treated as long and closed by selling.
func (p Position) ExitSide() OrderSide {
	if p.Side == OrderSideSell {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Notional returns quantity times current price
func (p Position) Notional() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// MarketConditions carries the per-instrument scalars supplied by the data layer
type MarketConditions struct {
	DailyVolume int64   `json:"daily_volume"`
	Volatility  float64 `json:"volatility"`
	TimeOfDay   float64 `json:"time_of_day"` // 0 = open, 1 = close
}
