package generators

import (
	"math/rand"
	"time"

	"github.com/mExOms/execsim/internal/marketdata"
	"github.com/mExOms/execsim/pkg/types"
)

// ScenarioType represents different market scenarios
type ScenarioType string

const (
	ScenarioHighVolatile ScenarioType = "high_volatile"
	ScenarioFlashCrash   ScenarioType = "flash_crash"
	ScenarioSideways     ScenarioType = "sideways"
	ScenarioNormal       ScenarioType = "normal"
)

// MarketUpdate is one step of a generated scenario
type MarketUpdate struct {
	Timestamp  time.Time
	Conditions types.MarketConditions
	Depth      *types.MarketDepth
}

// ScenarioGenerator generates book sequences for market scenarios
type ScenarioGenerator struct {
	depthGen    *marketdata.DepthGenerator
	rand        *rand.Rand
	scenario    ScenarioType
	volatility  float64
	dailyVolume int64
}

// NewScenarioGenerator creates a new scenario generator
func NewScenarioGenerator(seed int64) *ScenarioGenerator {
	g := &ScenarioGenerator{
		depthGen:    marketdata.NewDepthGenerator(seed),
		rand:        rand.New(rand.NewSource(seed + 1)),
		dailyVolume: 1000000,
	}
	g.SetScenario(ScenarioNormal)
	return g
}

// SetScenario sets the current market scenario
func (g *ScenarioGenerator) SetScenario(scenario ScenarioType) {
	g.scenario = scenario

	switch scenario {
	case ScenarioHighVolatile:
		g.volatility = 0.08
	case ScenarioFlashCrash:
		g.volatility = 0.15
	case ScenarioSideways:
		g.volatility = 0.01
	default:
		g.volatility = 0.02
	}
}

// GenerateMarketMovement produces steps books spaced interval apart.
// Prices follow the scenario's drift; a flash crash also drains liquidity.
func (g *ScenarioGenerator) GenerateMarketMovement(symbol string, steps int, interval time.Duration) []MarketUpdate {
	updates := make([]MarketUpdate, 0, steps)
	start := time.Now()
	price := g.depthGen.BasePrice()

	for i := 0; i < steps; i++ {
		price *= 1 + g.calculatePriceChange(i, steps)
		if price <= 0 {
			price = g.depthGen.TickSize()
		}
		g.depthGen.SetBasePrice(price)

		minVol, maxVol := g.volumeRange(i, steps)
		g.depthGen.SetVolumeRange(minVol, maxVol)

		ts := start.Add(interval * time.Duration(i))
		depth := g.depthGen.GenerateDepth(symbol, 20)
		depth.Timestamp = ts

		updates = append(updates, MarketUpdate{
			Timestamp: ts,
			Conditions: types.MarketConditions{
				DailyVolume: g.dailyVolume,
				Volatility:  g.volatility,
				TimeOfDay:   float64(i) / float64(steps),
			},
			Depth: depth,
		})
	}

	return updates
}

func (g *ScenarioGenerator) calculatePriceChange(step, totalSteps int) float64 {
	progress := float64(step) / float64(totalSteps)
	r := g.rand

	switch g.scenario {
	case ScenarioHighVolatile:
		return (r.Float64() - 0.5) * 0.01
	case ScenarioFlashCrash:
		// drop then partial recovery
		if progress < 0.2 {
			return (r.Float64() - 0.5) * 0.002
		} else if progress < 0.3 {
			return -0.05
		}
		return 0.01 * r.Float64()
	case ScenarioSideways:
		return (r.Float64() - 0.5) * 0.001
	default:
		return r.NormFloat64() * 0.002
	}
}

func (g *ScenarioGenerator) volumeRange(step, totalSteps int) (int64, int64) {
	if g.scenario == ScenarioFlashCrash {
		progress := float64(step) / float64(totalSteps)
		if progress >= 0.2 && progress < 0.5 {
			return 10, 200
		}
	}
	return 100, 5000
}
