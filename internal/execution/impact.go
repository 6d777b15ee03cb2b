package execution

import (
	"math"

	"github.com/mExOms/execsim/internal/config"
)

// UntradeableCost is returned when there is no daily volume to trade against
const UntradeableCost = 1.0

// ImpactModel estimates market impact as a bounded fraction of price:
//
//	impact = gamma * volatility * ratio^beta / max(minLiquidity, 1 - ratio)
//
// clamped to [0, maxCost], where ratio = size / dailyVolume.
type ImpactModel struct {
	gamma        float64
	beta         float64
	minLiquidity float64
	maxCost      float64
}

// NewImpactModel creates an impact model from config
func NewImpactModel(cfg config.ImpactConfig) *ImpactModel {
	return &ImpactModel{
		gamma:        cfg.Gamma,
		beta:         cfg.Beta,
		minLiquidity: cfg.MinLiquidity,
		maxCost:      cfg.MaxCost,
	}
}

// Estimate returns the fractional impact cost of trading size against dailyVolume.
// size and dailyVolume must be in the same units.
func (m *ImpactModel) Estimate(size, dailyVolume, volatility float64) float64 {
	if dailyVolume <= 0 {
		return UntradeableCost
	}
	if size <= 0 {
		return 0
	}

	ratio := size / dailyVolume
	impact := m.gamma * volatility * math.Pow(ratio, m.beta)

	liquidity := math.Max(m.minLiquidity, 1-ratio)
	impact /= liquidity

	if math.IsNaN(impact) || impact < 0 {
		return 0
	}
	return math.Min(impact, m.maxCost)
}
