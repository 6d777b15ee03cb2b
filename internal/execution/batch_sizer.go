package execution

import (
	"math"

	"github.com/mExOms/execsim/internal/config"
)

// BatchSizer proposes a clip size for working an order in pieces
type BatchSizer struct {
	config config.BatchConfig
}

// BatchDecision is the sizing output plus the inputs that drove it
type BatchDecision struct {
	BatchSize        int64   `json:"batch_size"`
	VolumeRatio      float64 `json:"volume_ratio"`
	VolatilityFactor float64 `json:"volatility_factor"`
}

// NewBatchSizer creates a batch sizer
func NewBatchSizer(cfg config.BatchConfig) *BatchSizer {
	return &BatchSizer{config: cfg}
}

// Size returns a batch in [MinBatch, total]. Orders smaller than MinBatch go as one batch.
func (bs *BatchSizer) Size(total, dailyVolume int64, volatility float64) BatchDecision {
	decision := BatchDecision{VolumeRatio: bs.config.DefaultRatio}
	if dailyVolume > 0 {
		decision.VolumeRatio = float64(total) / float64(dailyVolume)
	}

	decision.VolatilityFactor = clamp(1+volatility, bs.config.MinVolatFactor, bs.config.MaxVolatFactor)
	if total <= 0 {
		return decision
	}

	base := math.Max(float64(bs.config.MinBatch), float64(total)*bs.config.BaseFraction)
	batch := int64(math.Floor(base / decision.VolatilityFactor))

	if batch < bs.config.MinBatch {
		batch = bs.config.MinBatch
	}
	if batch > total {
		batch = total
	}

	decision.BatchSize = batch
	return decision
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
