package execution

import (
	"math"
	"sync"
	"time"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/sirupsen/logrus"
)

// Observation is one realised slippage sample
type Observation struct {
	Slippage   float64   `json:"slippage"`
	OrderSize  int64     `json:"order_size"`
	Volatility float64   `json:"volatility"`
	TimeOfDay  float64   `json:"time_of_day"`
	ObservedAt time.Time `json:"observed_at"`
}

// Prediction is a point forecast with its confidence in [0, 1]
type Prediction struct {
	Expected       float64 `json:"expected"`
	Confidence     float64 `json:"confidence"`
	HistoricalMean float64 `json:"historical_mean"`
	SizeTerm       float64 `json:"size_term"`
	VolatilityTerm float64 `json:"volatility_term"`
	TimeTerm       float64 `json:"time_term"`
}

// SlippagePredictor forecasts slippage from a bounded history of observations.
// Each instance owns its history; use one per instrument or strategy.
type SlippagePredictor struct {
	mu     sync.RWMutex
	config config.PredictorConfig
	ring   []Observation
	head   int // next write position
	count  int
	logger *logrus.Entry
}

// NewSlippagePredictor creates a predictor with an empty history
func NewSlippagePredictor(cfg config.PredictorConfig) *SlippagePredictor {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.Window <= 0 || cfg.Window > cfg.Capacity {
		cfg.Window = cfg.Capacity
	}
	if cfg.SizeScale <= 0 {
		cfg.SizeScale = 10000
	}
	return &SlippagePredictor{
		config: cfg,
		ring:   make([]Observation, cfg.Capacity),
		logger: logrus.WithField("component", "slippage-predictor"),
	}
}

// Predict returns expected slippage for an order of orderSize under conditions
func (sp *SlippagePredictor) Predict(orderSize int64, conditions types.MarketConditions) Prediction {
	sp.mu.RLock()
	mean, n := sp.recentMean()
	sp.mu.RUnlock()

	p := Prediction{
		HistoricalMean: mean,
		SizeTerm:       math.Log10(math.Max(1, float64(orderSize)/sp.config.SizeScale)) * sp.config.SizeCoefficient,
		VolatilityTerm: conditions.Volatility * sp.config.VolatCoeff,
		TimeTerm:       math.Abs(0.5-conditions.TimeOfDay) * sp.config.TimeCoefficient,
	}
	p.Expected = p.HistoricalMean + p.SizeTerm + p.VolatilityTerm + p.TimeTerm
	p.Confidence = math.Min(1, float64(n)/float64(sp.config.Window))
	return p
}

// Update records a realised slippage, evicting the oldest sample when full
func (sp *SlippagePredictor) Update(obs Observation) {
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now()
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.ring[sp.head] = obs
	sp.head = (sp.head + 1) % len(sp.ring)
	if sp.count < len(sp.ring) {
		sp.count++
	}

	sp.logger.WithFields(logrus.Fields{
		"slippage": obs.Slippage,
		"samples":  sp.count,
	}).Debug("Recorded slippage observation")
}

// Len returns the number of retained observations
func (sp *SlippagePredictor) Len() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.count
}

// History returns retained observations, oldest first
func (sp *SlippagePredictor) History() []Observation {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	out := make([]Observation, 0, sp.count)
	start := (sp.head - sp.count + len(sp.ring)) % len(sp.ring)
	for i := 0; i < sp.count; i++ {
		out = append(out, sp.ring[(start+i)%len(sp.ring)])
	}
	return out
}

// recentMean averages the newest Window samples. Caller holds the lock.
func (sp *SlippagePredictor) recentMean() (float64, int) {
	if sp.count == 0 {
		return sp.config.DefaultMean, 0
	}

	n := sp.count
	if n > sp.config.Window {
		n = sp.config.Window
	}

	sum := 0.0
	for i := 1; i <= n; i++ {
		idx := (sp.head - i + len(sp.ring)) % len(sp.ring)
		sum += sp.ring[idx].Slippage
	}
	return sum / float64(n), sp.count
}
