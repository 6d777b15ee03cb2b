package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedDepth is returned when a book snapshot violates its structural invariants
var ErrMalformedDepth = errors.New("malformed market depth")

// PriceLevel is the resting size at one price
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// MarketDepth is a snapshot of one instrument's book at one instant.
// Bids are ordered best (highest) first, asks best (lowest) first.
type MarketDepth struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewMarketDepth builds a snapshot from parallel price/volume slices
func NewMarketDepth(symbol string, bidPrices []decimal.Decimal, bidVolumes []int64, askPrices []decimal.Decimal, askVolumes []int64, ts time.Time) (*MarketDepth, error) {
	if len(bidPrices) != len(bidVolumes) {
		return nil, fmt.Errorf("%w: %d bid prices, %d bid volumes", ErrMalformedDepth, len(bidPrices), len(bidVolumes))
	}
	if len(askPrices) != len(askVolumes) {
		return nil, fmt.Errorf("%w: %d ask prices, %d ask volumes", ErrMalformedDepth, len(askPrices), len(askVolumes))
	}

	depth := &MarketDepth{
		Symbol:    symbol,
		Bids:      make([]PriceLevel, len(bidPrices)),
		Asks:      make([]PriceLevel, len(askPrices)),
		Timestamp: ts,
	}
	for i := range bidPrices {
		depth.Bids[i] = PriceLevel{Price: bidPrices[i], Volume: bidVolumes[i]}
	}
	for i := range askPrices {
		depth.Asks[i] = PriceLevel{Price: askPrices[i], Volume: askVolumes[i]}
	}

	if err := depth.Validate(); err != nil {
		return nil, err
	}
	return depth, nil
}

// Validate checks prices are positive and volumes non-negative on both sides
func (d *MarketDepth) Validate() error {
	if err := validateLevels("bid", d.Bids); err != nil {
		return err
	}
	return validateLevels("ask", d.Asks)
}

func validateLevels(side string, levels []PriceLevel) error {
	for i, level := range levels {
		if !level.Price.IsPositive() {
			return fmt.Errorf("%w: %s level %d has non-positive price %s", ErrMalformedDepth, side, i, level.Price)
		}
		if level.Volume < 0 {
			return fmt.Errorf("%w: %s level %d has negative volume %d", ErrMalformedDepth, side, i, level.Volume)
		}
	}
	return nil
}

// Clone returns a deep copy that shares no level storage with d
func (d *MarketDepth) Clone() *MarketDepth {
	clone := &MarketDepth{
		Symbol:    d.Symbol,
		Bids:      make([]PriceLevel, len(d.Bids)),
		Asks:      make([]PriceLevel, len(d.Asks)),
		Timestamp: d.Timestamp,
	}
	copy(clone.Bids, d.Bids)
	copy(clone.Asks, d.Asks)
	return clone
}

// Levels returns the side of the book an order on side consumes:
// asks for a buy, bids for a sell.
func (d *MarketDepth) Levels(side OrderSide) []PriceLevel {
	if side == OrderSideBuy {
		return d.Asks
	}
	return d.Bids
}

// BestPrice returns the first price with resting size on the side an order consumes
func (d *MarketDepth) BestPrice(side OrderSide) (decimal.Decimal, bool) {
	for _, level := range d.Levels(side) {
		if level.Volume > 0 {
			return level.Price, true
		}
	}
	return decimal.Zero, false
}

// BestBid returns the highest bid
func (d *MarketDepth) BestBid() (decimal.Decimal, bool) {
	return d.BestPrice(OrderSideSell)
}

// BestAsk returns the lowest ask
func (d *MarketDepth) BestAsk() (decimal.Decimal, bool) {
	return d.BestPrice(OrderSideBuy)
}

// MidPrice returns the average of best bid and best ask
func (d *MarketDepth) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Spread returns best ask minus best bid
func (d *MarketDepth) Spread() (decimal.Decimal, bool) {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// SpreadBps returns the spread in basis points of the mid price
func (d *MarketDepth) SpreadBps() float64 {
	spread, ok := d.Spread()
	if !ok {
		return 0
	}
	mid, _ := d.MidPrice()
	if mid.IsZero() {
		return 0
	}
	return spread.Div(mid).Mul(decimal.NewFromInt(10000)).InexactFloat64()
}

// TotalVolume sums the resting size on the side an order consumes
func (d *MarketDepth) TotalVolume(side OrderSide) int64 {
	var total int64
	for _, level := range d.Levels(side) {
		total += level.Volume
	}
	return total
}
