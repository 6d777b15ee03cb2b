package execution

import (
	"errors"
	"fmt"

	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrMixedSides is returned when one schedule contains both buy and sell slices
var ErrMixedSides = errors.New("schedule mixes buy and sell slices")

// SliceResult records how one scheduled slice executed
type SliceResult struct {
	SliceIndex int             `json:"slice_index"`
	Requested  int64           `json:"requested"`
	Filled     int64           `json:"filled"`
	Notional   decimal.Decimal `json:"notional"`
	Fills      []Fill          `json:"fills"`
}

// SimulationResult is the outcome of replaying a schedule against a book
type SimulationResult struct {
	Side             types.OrderSide    `json:"side"`
	Depth            *types.MarketDepth `json:"depth"`
	Requested        int64              `json:"requested"`
	Filled           int64              `json:"filled"`
	Notional         decimal.Decimal    `json:"notional"`
	ReferencePrice   decimal.Decimal    `json:"reference_price"`
	AveragePrice     decimal.Decimal    `json:"average_price"`
	RealizedSlippage float64            `json:"realized_slippage"`
	Slices           []SliceResult      `json:"slices"`
}

// Unfilled is the scheduled quantity the book could not absorb
func (r *SimulationResult) Unfilled() int64 {
	if r.Filled >= r.Requested {
		return 0
	}
	return r.Requested - r.Filled
}

// BookSimulator replays schedules against a private copy of a depth snapshot
type BookSimulator struct {
	logger *logrus.Entry
}

// NewBookSimulator creates a book simulator
func NewBookSimulator() *BookSimulator {
	return &BookSimulator{
		logger: logrus.WithField("component", "book-simulator"),
	}
}

// Simulate executes every slice in order against a clone of depth, so each
// slice sees the liquidity earlier slices left behind. Slippage is measured
// against the best price of the original snapshot.
func (bs *BookSimulator) Simulate(schedule types.Schedule, depth *types.MarketDepth) (*SimulationResult, error) {
	if depth == nil {
		return nil, fmt.Errorf("simulate: %w: nil depth", types.ErrMalformedDepth)
	}
	if err := depth.Validate(); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	side, err := scheduleSide(schedule)
	if err != nil {
		return nil, err
	}

	book := NewWorkingBook(depth)
	result := &SimulationResult{
		Side:     side,
		Notional: decimal.Zero,
		Slices:   make([]SliceResult, 0, len(schedule)),
	}
	result.ReferencePrice, _ = depth.BestPrice(side)

	for _, entry := range schedule {
		walk := book.ApplyAndConsume(side, entry.Quantity)

		if entry.Quantity > 0 {
			result.Requested += entry.Quantity
		}
		result.Filled += walk.Filled
		result.Notional = result.Notional.Add(walk.Notional)
		result.Slices = append(result.Slices, SliceResult{
			SliceIndex: entry.SliceIndex,
			Requested:  entry.Quantity,
			Filled:     walk.Filled,
			Notional:   walk.Notional,
			Fills:      walk.Fills,
		})

		if walk.IsPartial() {
			bs.logger.WithFields(logrus.Fields{
				"slice":     entry.SliceIndex,
				"requested": entry.Quantity,
				"filled":    walk.Filled,
			}).Debug("Slice left partially unexecuted")
		}
	}

	if result.Filled > 0 {
		result.AveragePrice = result.Notional.Div(decimal.NewFromInt(result.Filled))
	}
	result.RealizedSlippage = signedSlippage(side, result.AveragePrice, result.ReferencePrice, result.Filled)
	result.Depth = book.Snapshot()

	if result.Unfilled() > 0 {
		bs.logger.WithFields(logrus.Fields{
			"symbol":    depth.Symbol,
			"requested": result.Requested,
			"filled":    result.Filled,
		}).Warn("Schedule exceeded visible depth")
	}

	return result, nil
}

// scheduleSide returns the single side every entry shares. An empty schedule is a buy.
func scheduleSide(schedule types.Schedule) (types.OrderSide, error) {
	if len(schedule) == 0 {
		return types.OrderSideBuy, nil
	}
	side := schedule[0].Side
	if !side.IsValid() {
		return "", fmt.Errorf("slice 0: invalid side %q", side)
	}
	for _, entry := range schedule[1:] {
		if entry.Side != side {
			return "", fmt.Errorf("slice %d: %w", entry.SliceIndex, ErrMixedSides)
		}
	}
	return side, nil
}
