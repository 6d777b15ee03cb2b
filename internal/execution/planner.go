package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PlanRequest is the order intent handed to PlanExecution
type PlanRequest struct {
	Symbol      string             `json:"symbol"`
	Side        types.OrderSide    `json:"side"`
	Quantity    int64              `json:"quantity"`
	OrderValue  decimal.Decimal    `json:"order_value"` // zero: quantity x best price
	DailyVolume int64              `json:"daily_volume"`
	Volatility  float64            `json:"volatility"`
	Depth       *types.MarketDepth `json:"depth,omitempty"`

	// Optional overrides
	WindowMinutes   int                   `json:"window_minutes,omitempty"`
	Method          types.ExecutionMethod `json:"method,omitempty"`
	VolumeFractions []float64             `json:"volume_fractions,omitempty"`
	StartTime       time.Time             `json:"start_time,omitempty"`
}

// ExecutionPlan is a schedule plus its projected cost
type ExecutionPlan struct {
	ID            string                `json:"id"`
	Symbol        string                `json:"symbol"`
	Side          types.OrderSide       `json:"side"`
	Quantity      int64                 `json:"quantity"`
	OrderValue    decimal.Decimal       `json:"order_value"`
	Method        types.ExecutionMethod `json:"method"`
	WindowMinutes int                   `json:"window_minutes"`
	Rationale     string                `json:"rationale"`
	Batch         BatchDecision         `json:"batch"`
	Entries       types.Schedule        `json:"entries"`
	Cost          types.ExecutionCost   `json:"cost"`
	Projection    *SimulationResult     `json:"projection,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// PlanOutcome pairs a plan with the error that prevented it
type PlanOutcome struct {
	Request PlanRequest
	Plan    *ExecutionPlan
	Err     error
}

// Planner is the entry point to the execution cost core
type Planner struct {
	config    *config.Config
	estimator *SlippageEstimator
	impact    *ImpactModel
	sizer     *BatchSizer
	splitter  *OrderSplitter
	simulator *BookSimulator
	predictor *SlippagePredictor
	model     *SlippageModel
	exits     *EmergencyExitPlanner
	tracker   *PlanTracker
	pool      *WorkerPool

	profileMu sync.RWMutex
	profiles  VolumeProfileProvider

	logger *logrus.Entry
}

// NewPlanner wires every component from cfg and starts the worker pool.
// Call Close to release the workers.
func NewPlanner(cfg *config.Config) (*Planner, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	splitter, err := NewOrderSplitter(cfg.Selector)
	if err != nil {
		return nil, fmt.Errorf("failed to build method selector: %w", err)
	}

	impact := NewImpactModel(cfg.Impact)
	predictor := NewSlippagePredictor(cfg.Predictor)
	model, err := NewSlippageModel(cfg.Slippage, impact, predictor)
	if err != nil {
		return nil, fmt.Errorf("failed to build slippage model: %w", err)
	}

	p := &Planner{
		config:    cfg,
		estimator: NewSlippageEstimator(cfg.Slippage.WarningBps),
		impact:    impact,
		sizer:     NewBatchSizer(cfg.Batch),
		splitter:  splitter,
		simulator: NewBookSimulator(),
		predictor: predictor,
		model:     model,
		exits:     NewEmergencyExitPlanner(cfg.Emergency),
		tracker:   NewPlanTracker(),
		pool:      NewWorkerPool(cfg.Planner.Workers),
		logger:    logrus.WithField("component", "planner"),
	}
	p.pool.Start()

	return p, nil
}

// Close stops the worker pool
func (p *Planner) Close() {
	p.pool.Stop()
}

// SetVolumeProfileProvider installs the source of VWAP slice fractions
func (p *Planner) SetVolumeProfileProvider(provider VolumeProfileProvider) {
	p.profileMu.Lock()
	defer p.profileMu.Unlock()
	p.profiles = provider
}

// EstimateSingleFill prices quantity against depth without modifying it.
// The average price is zero when nothing on that side could be filled.
func (p *Planner) EstimateSingleFill(side types.OrderSide, quantity int64, depth *types.MarketDepth) (decimal.Decimal, float64) {
	estimate := p.estimator.Estimate(side, quantity, depth)
	return estimate.AveragePrice, estimate.Slippage
}

// EstimateFill is EstimateSingleFill with the full walk attached
func (p *Planner) EstimateFill(side types.OrderSide, quantity int64, depth *types.MarketDepth) SlippageEstimate {
	return p.estimator.Estimate(side, quantity, depth)
}

// EstimateImpactCost returns the bounded impact fraction. orderSize and
// dailyVolume must be in the same units.
func (p *Planner) EstimateImpactCost(orderSize, dailyVolume, volatility float64) float64 {
	return p.impact.Estimate(orderSize, dailyVolume, volatility)
}

// EstimateCost prices an order with the configured slippage model
func (p *Planner) EstimateCost(quantity int64, price decimal.Decimal, side types.OrderSide, conditions ModelConditions) types.ExecutionCost {
	return p.model.Estimate(quantity, price, side, conditions)
}

// RecordObservation feeds a realised slippage back into the model and predictor
func (p *Planner) RecordObservation(obs Observation) {
	p.model.Observe(obs)
}

// PredictSlippage forecasts slippage from recorded observations
func (p *Planner) PredictSlippage(orderSize int64, conditions types.MarketConditions) Prediction {
	return p.predictor.Predict(orderSize, conditions)
}

// SizeBatch proposes a clip size for total units
func (p *Planner) SizeBatch(total, dailyVolume int64, volatility float64) BatchDecision {
	return p.sizer.Size(total, dailyVolume, volatility)
}

// SelectMethod returns the plan shape for an order value and quantity
func (p *Planner) SelectMethod(orderValue decimal.Decimal, quantity int64) MethodDecision {
	return p.splitter.Select(orderValue, quantity)
}

// PlanExecution chooses a method, expands it into a schedule and projects its
// cost by replaying the schedule against a copy of the request depth.
func (p *Planner) PlanExecution(req PlanRequest) (*ExecutionPlan, error) {
	if !req.Side.IsValid() {
		return nil, fmt.Errorf("invalid side: %q", req.Side)
	}
	if req.Method != "" && !req.Method.IsValid() {
		return nil, fmt.Errorf("invalid method override: %q", req.Method)
	}
	if req.Depth != nil {
		if err := req.Depth.Validate(); err != nil {
			return nil, fmt.Errorf("plan %s: %w", req.Symbol, err)
		}
	}

	start := req.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	plan := &ExecutionPlan{
		ID:         uuid.New().String(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		OrderValue: p.orderValue(req),
		Entries:    types.Schedule{},
		CreatedAt:  time.Now(),
	}

	if req.Quantity <= 0 {
		plan.Method = types.MethodMarket
		plan.Rationale = "nothing to execute"
		return plan, nil
	}

	decision := p.splitter.Select(plan.OrderValue, req.Quantity)
	if req.Method != "" && req.Method != decision.Method {
		decision.Method = req.Method
		decision.Rationale = fmt.Sprintf("method overridden to %s", req.Method)
	}
	switch decision.Method {
	case types.MethodMarket, types.MethodLimit:
		decision.Slices = 1
		decision.WindowMinutes = 0
	default:
		if req.WindowMinutes > 0 {
			decision.WindowMinutes = req.WindowMinutes
		}
	}

	plan.Method = decision.Method
	plan.WindowMinutes = decision.WindowMinutes
	plan.Rationale = decision.Rationale
	plan.Batch = p.sizer.Size(req.Quantity, req.DailyVolume, req.Volatility)

	slicing := SliceSpec{
		Total:  req.Quantity,
		Slices: decision.Slices,
		Window: decision.Window(),
		Side:   req.Side,
		Start:  start,
		Method: decision.Method,
	}
	plan.Entries = p.buildSchedule(req, slicing, plan.Batch)

	impact := p.impact.Estimate(float64(req.Quantity), float64(req.DailyVolume), req.Volatility)
	slippage := 0.0
	if req.Depth != nil {
		projection, err := p.simulator.Simulate(plan.Entries, req.Depth)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", req.Symbol, err)
		}
		plan.Projection = projection
		slippage = projection.RealizedSlippage
	}
	plan.Cost = types.NewExecutionCost(slippage, impact)

	p.tracker.RecordPlan(plan)

	p.logger.WithFields(logrus.Fields{
		"symbol":     req.Symbol,
		"side":       req.Side,
		"quantity":   req.Quantity,
		"method":     plan.Method,
		"slices":     len(plan.Entries),
		"total_cost": plan.Cost.TotalCost,
	}).Info("Execution plan created")

	return plan, nil
}

// SimulatePlan replays schedule against a private copy of depth
func (p *Planner) SimulatePlan(schedule types.Schedule, depth *types.MarketDepth) (*SimulationResult, error) {
	result, err := p.simulator.Simulate(schedule, depth)
	if err != nil {
		return nil, err
	}
	p.tracker.RecordSimulation(result)
	return result, nil
}

// PlanEmergencyExit picks the strategy for condition and prices every position
func (p *Planner) PlanEmergencyExit(positions []types.Position, condition string, depth *types.MarketDepth) *ExitResult {
	strategy := p.exits.Plan(condition)
	return p.exits.Execute(positions, strategy, depth)
}

// ExitHistory returns past emergency exits, oldest first
func (p *Planner) ExitHistory() []*ExitResult {
	return p.exits.History()
}

// Metrics returns a snapshot of plan statistics
func (p *Planner) Metrics() PlanMetrics {
	return p.tracker.GetMetrics()
}

// PlanMany plans every request on the worker pool. Outcomes keep request
// order; requests not finished when ctx ends carry ctx's error.
func (p *Planner) PlanMany(ctx context.Context, reqs []PlanRequest) []PlanOutcome {
	outcomes := make([]PlanOutcome, len(reqs))
	for i := range reqs {
		outcomes[i].Request = reqs[i]
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	finished := make([]bool, len(reqs))

	for i := range reqs {
		i := i
		wg.Add(1)
		submitted := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			plan, err := p.PlanExecution(reqs[i])

			mu.Lock()
			outcomes[i].Plan = plan
			outcomes[i].Err = err
			finished[i] = true
			mu.Unlock()
		})
		if !submitted {
			wg.Done()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	result := make([]PlanOutcome, len(outcomes))
	for i := range outcomes {
		result[i] = outcomes[i]
		if !finished[i] {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("planner stopped")
			}
			result[i].Plan = nil
			result[i].Err = err
		}
	}
	return result
}

func (p *Planner) buildSchedule(req PlanRequest, slicing SliceSpec, batch BatchDecision) types.Schedule {
	switch slicing.Method {
	case types.MethodIceberg:
		delay := time.Duration(p.config.Planner.IcebergDelaySec) * time.Second
		return ScheduleIceberg(slicing, batch.BatchSize, delay)
	case types.MethodVWAP:
		return ScheduleVWAP(slicing, p.volumeFractions(req, slicing.Slices))
	case types.MethodTWAP:
		return ScheduleTWAP(slicing)
	default:
		// MARKET and LIMIT go as a single slice
		slicing.Slices = 1
		slicing.Window = 0
		return ScheduleTWAP(slicing)
	}
}

func (p *Planner) volumeFractions(req PlanRequest, slices int) []float64 {
	if len(req.VolumeFractions) > 0 {
		return req.VolumeFractions
	}

	p.profileMu.RLock()
	provider := p.profiles
	p.profileMu.RUnlock()
	if provider == nil {
		return nil
	}

	fractions, err := provider.GetProfile(req.Symbol, slices)
	if err != nil {
		p.logger.WithError(err).WithField("symbol", req.Symbol).Warn("Volume profile unavailable, using uniform slices")
		return nil
	}
	return fractions
}

func (p *Planner) orderValue(req PlanRequest) decimal.Decimal {
	if !req.OrderValue.IsZero() {
		return req.OrderValue
	}
	if req.Depth == nil {
		return decimal.Zero
	}
	ref, ok := req.Depth.BestPrice(req.Side)
	if !ok {
		return decimal.Zero
	}
	return ref.Mul(decimal.NewFromInt(req.Quantity))
}
