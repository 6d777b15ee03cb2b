package execution

import (
	"math"
	"testing"

	"github.com/mExOms/execsim/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestImpactModel_ZeroDailyVolume(t *testing.T) {
	model := NewImpactModel(config.Default().Impact)

	for _, size := range []float64{0, 1, 1000, 1e9} {
		assert.Equal(t, 1.0, model.Estimate(size, 0, 0.3))
	}
}

func TestImpactModel_Formula(t *testing.T) {
	model := NewImpactModel(config.Default().Impact)

	// ratio 0.01: 0.1 * 0.2 * 0.1 / 0.99
	assert.InDelta(t, 0.002/0.99, model.Estimate(1000, 100000, 0.2), 1e-12)

	// ratio 0.25: 0.1 * 0.4 * 0.5 / 0.75
	assert.InDelta(t, 0.02/0.75, model.Estimate(25000, 100000, 0.4), 1e-12)

	// ratio beyond 0.9 uses the 0.1 liquidity floor and hits the cap
	assert.Equal(t, 0.10, model.Estimate(95000, 100000, 0.5))

	assert.Equal(t, 0.0, model.Estimate(0, 100000, 0.5))
	assert.Equal(t, 0.0, model.Estimate(1000, 100000, 0))
}

func TestImpactModel_Bounded(t *testing.T) {
	model := NewImpactModel(config.Default().Impact)

	for _, size := range []float64{1, 10, 1e3, 1e5, 1e7, 1e9} {
		for _, dv := range []float64{1, 100, 1e4, 1e6, 1e8} {
			for _, vol := range []float64{0, 0.01, 0.2, 1, 5} {
				impact := model.Estimate(size, dv, vol)
				assert.GreaterOrEqual(t, impact, 0.0)
				assert.LessOrEqual(t, impact, 0.10)
			}
		}
	}
}

func TestBatchSizer(t *testing.T) {
	sizer := NewBatchSizer(config.Default().Batch)

	tests := []struct {
		name       string
		total      int64
		dailyVol   int64
		volatility float64
		want       int64
		wantRatio  float64
	}{
		{"ten percent at zero volatility", 10000, 100000, 0, 1000, 0.1},
		{"volatility shrinks batches", 10000, 100000, 1.0, 500, 0.1},
		{"volatility factor capped at 2", 10000, 100000, 5.0, 500, 0.1},
		{"negative volatility floors factor at 0.5", 10000, 100000, -0.9, 2000, 0.1},
		{"small order floors at 100", 500, 100000, 0.5, 100, 0.005},
		{"order under 100 is one batch", 60, 100000, 0, 60, 0.0006},
		{"zero daily volume uses default ratio", 10000, 0, 0, 1000, 0.1},
		{"zero quantity", 0, 100000, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := sizer.Size(tt.total, tt.dailyVol, tt.volatility)
			assert.Equal(t, tt.want, decision.BatchSize)
			assert.InDelta(t, tt.wantRatio, decision.VolumeRatio, 1e-12)
		})
	}
}

func TestBatchSizer_AlwaysWithinBounds(t *testing.T) {
	sizer := NewBatchSizer(config.Default().Batch)

	for total := int64(100); total <= 1000000; total = total*3 + 7 {
		for _, vol := range []float64{-2, 0, 0.3, 1, 10} {
			batch := sizer.Size(total, 500000, vol).BatchSize
			assert.GreaterOrEqual(t, batch, int64(100))
			assert.LessOrEqual(t, batch, total)
			assert.False(t, math.IsNaN(float64(batch)))
		}
	}
}
