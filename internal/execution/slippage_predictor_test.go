package execution

import (
	"math"
	"sync"
	"testing"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlippagePredictor_EmptyHistory(t *testing.T) {
	predictor := NewSlippagePredictor(config.Default().Predictor)

	p := predictor.Predict(5000, types.MarketConditions{Volatility: 0.02, TimeOfDay: 0.5})

	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, 0.001, p.HistoricalMean)
	assert.Equal(t, 0.0, p.SizeTerm)
	assert.Equal(t, 0.0, p.TimeTerm)
	assert.InDelta(t, 0.001+0.002, p.Expected, 1e-12)
}

func TestSlippagePredictor_Terms(t *testing.T) {
	predictor := NewSlippagePredictor(config.Default().Predictor)

	p := predictor.Predict(1000000, types.MarketConditions{Volatility: 0.1, TimeOfDay: 0})

	assert.InDelta(t, 0.002, p.SizeTerm, 1e-12) // log10(100) * 0.001
	assert.InDelta(t, 0.01, p.VolatilityTerm, 1e-12)
	assert.InDelta(t, 0.00025, p.TimeTerm, 1e-12)
	assert.InDelta(t, 0.001+0.002+0.01+0.00025, p.Expected, 1e-12)

	// open and close are symmetric
	open := predictor.Predict(1000, types.MarketConditions{TimeOfDay: 0.1})
	closing := predictor.Predict(1000, types.MarketConditions{TimeOfDay: 0.9})
	assert.InDelta(t, open.Expected, closing.Expected, 1e-12)
}

func TestSlippagePredictor_ConfidenceGrows(t *testing.T) {
	predictor := NewSlippagePredictor(config.Default().Predictor)
	conditions := types.MarketConditions{Volatility: 0.01, TimeOfDay: 0.5}

	prev := predictor.Predict(100, conditions).Confidence
	assert.Equal(t, 0.0, prev)

	for i := 1; i <= 50; i++ {
		predictor.Update(Observation{Slippage: 0.002})
		conf := predictor.Predict(100, conditions).Confidence
		assert.Greater(t, conf, prev, "after %d observations", i)
		prev = conf
	}
	assert.Equal(t, 1.0, prev)

	predictor.Update(Observation{Slippage: 0.002})
	assert.Equal(t, 1.0, predictor.Predict(100, conditions).Confidence)
}

func TestSlippagePredictor_MeanUsesRecentWindow(t *testing.T) {
	predictor := NewSlippagePredictor(config.Default().Predictor)

	for i := 0; i < 100; i++ {
		predictor.Update(Observation{Slippage: 0.010})
	}
	for i := 0; i < 50; i++ {
		predictor.Update(Observation{Slippage: 0.002})
	}

	p := predictor.Predict(1, types.MarketConditions{TimeOfDay: 0.5})
	assert.InDelta(t, 0.002, p.HistoricalMean, 1e-12)
}

func TestSlippagePredictor_RingBufferEvictsOldest(t *testing.T) {
	cfg := config.Default().Predictor
	cfg.Capacity = 5
	cfg.Window = 3
	predictor := NewSlippagePredictor(cfg)

	for i := 1; i <= 8; i++ {
		predictor.Update(Observation{Slippage: float64(i)})
	}

	assert.Equal(t, 5, predictor.Len())
	history := predictor.History()
	require.Len(t, history, 5)
	assert.Equal(t, 4.0, history[0].Slippage)
	assert.Equal(t, 8.0, history[4].Slippage)
	assert.False(t, history[0].ObservedAt.IsZero())

	p := predictor.Predict(1, types.MarketConditions{TimeOfDay: 0.5})
	assert.InDelta(t, 7.0, p.HistoricalMean, 1e-12) // mean of 6, 7, 8
}

func TestSlippagePredictor_InstancesAreIndependent(t *testing.T) {
	a := NewSlippagePredictor(config.Default().Predictor)
	b := NewSlippagePredictor(config.Default().Predictor)

	a.Update(Observation{Slippage: 0.5})

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestSlippagePredictor_ConcurrentUpdates(t *testing.T) {
	predictor := NewSlippagePredictor(config.Default().Predictor)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				predictor.Update(Observation{Slippage: 0.001})
				predictor.Predict(100, types.MarketConditions{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, predictor.Len())
}

func TestSlippageModel_Variants(t *testing.T) {
	cfg := config.Default()
	depth := exampleDepth(t)
	impact := NewImpactModel(cfg.Impact)
	conditions := ModelConditions{
		MarketConditions: types.MarketConditions{DailyVolume: 120000, Volatility: 0.2, TimeOfDay: 0.5},
		Depth:            depth,
	}
	price := dec("9.96")

	fixedCfg := cfg.Slippage
	fixedCfg.Model = string(ModelFixed)
	fixed, err := NewSlippageModel(fixedCfg, impact, nil)
	require.NoError(t, err)
	cost := fixed.Estimate(1200, price, types.OrderSideBuy, conditions)
	assert.Equal(t, 0.0005, cost.Slippage)
	assert.Equal(t, 0.0, cost.ImpactCost)

	realisticCfg := cfg.Slippage
	realisticCfg.Model = string(ModelRealistic)
	realistic, err := NewSlippageModel(realisticCfg, impact, nil)
	require.NoError(t, err)
	cost = realistic.Estimate(1200, price, types.OrderSideBuy, conditions)
	assert.InDelta(t, 0.000335, cost.Slippage, 1e-6)
	assert.InDelta(t, 0.1*0.2*math.Sqrt(0.01)/0.99, cost.ImpactCost, 1e-12)
	assert.InDelta(t, cost.Slippage+cost.ImpactCost, cost.TotalCost, 1e-15)
	assert.Equal(t, cost.TotalCost, cost.VolumeWeightedCost)

	predictor := NewSlippagePredictor(cfg.Predictor)
	dynamicCfg := cfg.Slippage
	dynamicCfg.Model = string(ModelDynamic)
	dynamic, err := NewSlippageModel(dynamicCfg, impact, predictor)
	require.NoError(t, err)

	// no history: confidence 0, identical to realistic
	cost = dynamic.Estimate(1200, price, types.OrderSideBuy, conditions)
	assert.InDelta(t, 0.000335, cost.Slippage, 1e-6)

	for i := 0; i < 50; i++ {
		dynamic.Observe(Observation{Slippage: 0.004})
	}
	assert.Len(t, dynamic.Observations(), 50)
	assert.Equal(t, 50, predictor.Len())

	// full confidence: the prediction alone
	expected := predictor.Predict(1200, conditions.MarketConditions).Expected
	cost = dynamic.Estimate(1200, price, types.OrderSideBuy, conditions)
	assert.InDelta(t, expected, cost.Slippage, 1e-12)
}

func TestSlippageModel_InvalidInput(t *testing.T) {
	cfg := config.Default()
	model, err := NewSlippageModel(cfg.Slippage, NewImpactModel(cfg.Impact), nil)
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionCost{}, model.Estimate(0, dec("10"), types.OrderSideBuy, ModelConditions{}))
	assert.Equal(t, types.ExecutionCost{}, model.Estimate(100, decimal.Zero, types.OrderSideBuy, ModelConditions{}))

	// no daily volume is untradeable
	cost := model.Estimate(100, dec("10"), types.OrderSideBuy, ModelConditions{})
	assert.Equal(t, 1.0, cost.ImpactCost)
	assert.Equal(t, 0.0, cost.Slippage)

	_, err = NewSlippageModel(config.SlippageConfig{Model: "magic"}, nil, nil)
	assert.Error(t, err)
	_, err = NewSlippageModel(config.SlippageConfig{Model: "dynamic"}, nil, nil)
	assert.Error(t, err)
}

func TestSlippageModel_ObservationLogBounded(t *testing.T) {
	cfg := config.Default().Slippage
	cfg.ObservationLog = 3
	model, err := NewSlippageModel(cfg, nil, nil)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		model.Observe(Observation{Slippage: float64(i)})
	}
	obs := model.Observations()
	require.Len(t, obs, 3)
	assert.Equal(t, 3.0, obs[0].Slippage)
	assert.Equal(t, 5.0, obs[2].Slippage)
}
