package execution

import (
	"fmt"
	"sync"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ModelKind selects how a SlippageModel prices an order
type ModelKind string

const (
	// ModelFixed charges a constant rate
	ModelFixed ModelKind = "fixed"
	// ModelRealistic walks the book and adds size-driven impact
	ModelRealistic ModelKind = "realistic"
	// ModelDynamic blends the realistic estimate with learned history
	ModelDynamic ModelKind = "dynamic"
)

// ModelConditions is the market context an estimate is made in
type ModelConditions struct {
	types.MarketConditions
	Depth *types.MarketDepth
}

// SlippageModel is a single configurable cost model
type SlippageModel struct {
	kind      ModelKind
	fixedRate float64
	impact    *ImpactModel
	predictor *SlippagePredictor

	mu           sync.Mutex
	observations []Observation
	maxObs       int

	logger *logrus.Entry
}

// NewSlippageModel builds the model named by cfg.Model. predictor is only
// consulted by the dynamic model and may be nil for the others.
func NewSlippageModel(cfg config.SlippageConfig, impact *ImpactModel, predictor *SlippagePredictor) (*SlippageModel, error) {
	kind := ModelKind(cfg.Model)
	switch kind {
	case ModelFixed, ModelRealistic:
	case ModelDynamic:
		if predictor == nil {
			return nil, fmt.Errorf("dynamic slippage model requires a predictor")
		}
	default:
		return nil, fmt.Errorf("unknown slippage model: %s", cfg.Model)
	}

	maxObs := cfg.ObservationLog
	if maxObs <= 0 {
		maxObs = 1000
	}

	return &SlippageModel{
		kind:      kind,
		fixedRate: cfg.FixedRate,
		impact:    impact,
		predictor: predictor,
		maxObs:    maxObs,
		logger:    logrus.WithFields(logrus.Fields{"component": "slippage-model", "model": kind}),
	}, nil
}

// Kind returns the model variant
func (m *SlippageModel) Kind() ModelKind {
	return m.kind
}

// Estimate prices quantity units on side at reference price
func (m *SlippageModel) Estimate(quantity int64, price decimal.Decimal, side types.OrderSide, conditions ModelConditions) types.ExecutionCost {
	if quantity <= 0 || !price.IsPositive() {
		return types.ExecutionCost{}
	}

	switch m.kind {
	case ModelFixed:
		return types.NewExecutionCost(m.fixedRate, 0)
	case ModelDynamic:
		cost := m.realistic(quantity, side, conditions)
		prediction := m.predictor.Predict(quantity, conditions.MarketConditions)
		blended := prediction.Confidence*prediction.Expected + (1-prediction.Confidence)*cost.Slippage
		return types.NewExecutionCost(blended, cost.ImpactCost)
	default:
		return m.realistic(quantity, side, conditions)
	}
}

// Observe records a realised outcome. The dynamic model learns from it.
func (m *SlippageModel) Observe(obs Observation) {
	m.mu.Lock()
	if len(m.observations) >= m.maxObs {
		m.observations = m.observations[1:]
	}
	m.observations = append(m.observations, obs)
	m.mu.Unlock()

	if m.predictor != nil {
		m.predictor.Update(obs)
	}
}

// Observations returns a copy of the observation log, oldest first
func (m *SlippageModel) Observations() []Observation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Observation, len(m.observations))
	copy(out, m.observations)
	return out
}

func (m *SlippageModel) realistic(quantity int64, side types.OrderSide, conditions ModelConditions) types.ExecutionCost {
	walk := PeekCost(side, quantity, conditions.Depth)
	if walk.IsPartial() {
		m.logger.WithFields(logrus.Fields{
			"requested": quantity,
			"filled":    walk.Filled,
		}).Debug("Book shallower than order")
	}

	impact := 0.0
	if m.impact != nil {
		impact = m.impact.Estimate(float64(quantity), float64(conditions.DailyVolume), conditions.Volatility)
	}
	return types.NewExecutionCost(walk.Slippage(), impact)
}
