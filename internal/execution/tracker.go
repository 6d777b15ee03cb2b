package execution

import (
	"sync"
	"time"

	"github.com/mExOms/execsim/pkg/types"
)

// PlanMetrics aggregates what the planner has produced
type PlanMetrics struct {
	TotalPlans         int64                                  `json:"total_plans"`
	TotalSimulations   int64                                  `json:"total_simulations"`
	PartialSimulations int64                                  `json:"partial_simulations"`
	AverageCost        float64                                `json:"average_cost"`
	AverageRealized    float64                                `json:"average_realized_slippage"`
	MethodStats        map[types.ExecutionMethod]*MethodStats `json:"method_stats"`
	LastUpdated        time.Time                              `json:"last_updated"`
}

// MethodStats tracks plans that used one execution method
type MethodStats struct {
	Plans           int64   `json:"plans"`
	TotalQuantity   int64   `json:"total_quantity"`
	AverageSlippage float64 `json:"average_slippage"`
	AverageImpact   float64 `json:"average_impact"`
	AverageSlices   float64 `json:"average_slices"`
}

// PlanTracker keeps running plan and simulation statistics
type PlanTracker struct {
	mu      sync.RWMutex
	metrics *PlanMetrics
}

// NewPlanTracker creates an empty tracker
func NewPlanTracker() *PlanTracker {
	return &PlanTracker{
		metrics: &PlanMetrics{
			MethodStats: make(map[types.ExecutionMethod]*MethodStats),
		},
	}
}

// RecordPlan folds a produced plan into the running statistics
func (pt *PlanTracker) RecordPlan(plan *ExecutionPlan) {
	if plan == nil {
		return
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.metrics.TotalPlans++
	pt.metrics.AverageCost = pt.calculateRunningAverage(pt.metrics.AverageCost, plan.Cost.TotalCost, pt.metrics.TotalPlans)

	stats, exists := pt.metrics.MethodStats[plan.Method]
	if !exists {
		stats = &MethodStats{}
		pt.metrics.MethodStats[plan.Method] = stats
	}
	stats.Plans++
	stats.TotalQuantity += plan.Quantity
	stats.AverageSlippage = pt.calculateRunningAverage(stats.AverageSlippage, plan.Cost.Slippage, stats.Plans)
	stats.AverageImpact = pt.calculateRunningAverage(stats.AverageImpact, plan.Cost.ImpactCost, stats.Plans)
	stats.AverageSlices = pt.calculateRunningAverage(stats.AverageSlices, float64(len(plan.Entries)), stats.Plans)

	pt.metrics.LastUpdated = time.Now()
}

// RecordSimulation folds a simulation outcome into the running statistics
func (pt *PlanTracker) RecordSimulation(result *SimulationResult) {
	if result == nil {
		return
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.metrics.TotalSimulations++
	if result.Unfilled() > 0 {
		pt.metrics.PartialSimulations++
	}
	pt.metrics.AverageRealized = pt.calculateRunningAverage(pt.metrics.AverageRealized, result.RealizedSlippage, pt.metrics.TotalSimulations)
	pt.metrics.LastUpdated = time.Now()
}

// GetMetrics returns a copy of the current metrics
func (pt *PlanTracker) GetMetrics() PlanMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	metricsCopy := *pt.metrics
	metricsCopy.MethodStats = make(map[types.ExecutionMethod]*MethodStats, len(pt.metrics.MethodStats))
	for method, stats := range pt.metrics.MethodStats {
		statsCopy := *stats
		metricsCopy.MethodStats[method] = &statsCopy
	}
	return metricsCopy
}

// Reset clears all statistics
func (pt *PlanTracker) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.metrics = &PlanMetrics{
		MethodStats: make(map[types.ExecutionMethod]*MethodStats),
	}
}

func (pt *PlanTracker) calculateRunningAverage(current, new float64, count int64) float64 {
	if count <= 1 {
		return new
	}
	return (current*float64(count-1) + new) / float64(count)
}
