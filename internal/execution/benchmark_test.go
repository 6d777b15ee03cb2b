package execution

import (
	"sort"
	"testing"
	"time"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/internal/marketdata"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
)

// BenchmarkPeekCost measures a read-only walk through a 50-level book
func BenchmarkPeekCost(b *testing.B) {
	depth := marketdata.NewDepthGenerator(1).GenerateDepth("BENCH", 50)
	qty := depth.TotalVolume(types.OrderSideBuy) / 2

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PeekCost(types.OrderSideBuy, qty, depth)
	}
}

// BenchmarkSimulate measures replaying a 20-slice schedule
func BenchmarkSimulate(b *testing.B) {
	depth := marketdata.NewDepthGenerator(1).GenerateDepth("BENCH", 50)
	schedule := ScheduleTWAP(SliceSpec{
		Total:  depth.TotalVolume(types.OrderSideBuy) / 2,
		Slices: 20,
		Window: 30 * time.Minute,
		Side:   types.OrderSideBuy,
	})
	sim := NewBookSimulator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sim.Simulate(schedule, depth); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPlanExecutionLatency reports plan latency percentiles
func BenchmarkPlanExecutionLatency(b *testing.B) {
	planner, err := NewPlanner(config.Default())
	if err != nil {
		b.Fatal(err)
	}
	defer planner.Close()

	req := PlanRequest{
		Symbol:      "BENCH",
		Side:        types.OrderSideBuy,
		Quantity:    6000,
		OrderValue:  decimal.NewFromInt(1500000),
		DailyVolume: 600000,
		Volatility:  0.25,
		Depth:       marketdata.NewDepthGenerator(1).GenerateDepth("BENCH", 50),
	}

	latencies := make([]time.Duration, b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		if _, err := planner.PlanExecution(req); err != nil {
			b.Fatal(err)
		}
		latencies[i] = time.Since(start)
	}
	b.StopTimer()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	b.ReportMetric(float64(percentile(latencies, 0.5).Nanoseconds())/1000, "p50_us")
	b.ReportMetric(float64(percentile(latencies, 0.99).Nanoseconds())/1000, "p99_us")
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
