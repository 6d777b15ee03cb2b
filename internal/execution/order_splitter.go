package execution

import (
	"fmt"
	"time"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
)

// SelectorTier is one row of the method table. A tier matches order values
// strictly below UpperBound; an unbounded tier matches everything left.
type SelectorTier struct {
	UpperBound decimal.Decimal
	Unbounded  bool
	Method     types.ExecutionMethod
	MaxSlices  int
	Window     time.Duration
	Rationale  string
}

// MethodDecision is the plan shape chosen for an order
type MethodDecision struct {
	Method        types.ExecutionMethod `json:"method"`
	Slices        int                   `json:"slices"`
	WindowMinutes int                   `json:"window_minutes"`
	Rationale     string                `json:"rationale"`
}

// Window returns the execution window as a duration
func (d MethodDecision) Window() time.Duration {
	return time.Duration(d.WindowMinutes) * time.Minute
}

// OrderSplitter picks an execution method and slice count from order notional
type OrderSplitter struct {
	tiers         []SelectorTier
	unitsPerSlice int64
}

// NewOrderSplitter builds the ordered tier table from config
func NewOrderSplitter(cfg config.SelectorConfig) (*OrderSplitter, error) {
	if cfg.UnitsPerSlice <= 0 {
		return nil, fmt.Errorf("invalid units per slice: %d", cfg.UnitsPerSlice)
	}
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("no selector tiers configured")
	}

	tiers := make([]SelectorTier, 0, len(cfg.Tiers))
	for i, tier := range cfg.Tiers {
		method := types.ExecutionMethod(tier.Method)
		if !method.IsValid() {
			return nil, fmt.Errorf("tier %d: unknown method %q", i, tier.Method)
		}
		tiers = append(tiers, SelectorTier{
			UpperBound: decimal.NewFromFloat(tier.UpperBound),
			Unbounded:  tier.UpperBound <= 0,
			Method:     method,
			MaxSlices:  tier.MaxSlices,
			Window:     time.Duration(tier.WindowMinutes) * time.Minute,
			Rationale:  tier.Rationale,
		})
	}

	// The last tier always catches whatever is left.
	tiers[len(tiers)-1].Unbounded = true

	return &OrderSplitter{
		tiers:         tiers,
		unitsPerSlice: cfg.UnitsPerSlice,
	}, nil
}

// Select evaluates the tier table top-down on orderValue. The slice count is
// quantity/unitsPerSlice capped by the tier, and never below one.
func (s *OrderSplitter) Select(orderValue decimal.Decimal, quantity int64) MethodDecision {
	tier := s.matchTier(orderValue)

	slices := int64(tier.MaxSlices)
	if bySize := quantity / s.unitsPerSlice; bySize < slices {
		slices = bySize
	}
	if slices < 1 {
		slices = 1
	}

	return MethodDecision{
		Method:        tier.Method,
		Slices:        int(slices),
		WindowMinutes: int(tier.Window / time.Minute),
		Rationale:     tier.Rationale,
	}
}

// Tiers returns a copy of the table
func (s *OrderSplitter) Tiers() []SelectorTier {
	out := make([]SelectorTier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

func (s *OrderSplitter) matchTier(orderValue decimal.Decimal) SelectorTier {
	for _, tier := range s.tiers {
		if tier.Unbounded || orderValue.LessThan(tier.UpperBound) {
			return tier
		}
	}
	return s.tiers[len(s.tiers)-1]
}
