package execution

import (
	"fmt"

	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SlippageEstimator prices a single-shot order against a snapshot
type SlippageEstimator struct {
	warningThresholdBps float64
	logger              *logrus.Entry
}

// SlippageEstimate is the result of a single-shot estimate
type SlippageEstimate struct {
	AveragePrice decimal.Decimal `json:"average_price"`
	Slippage     float64         `json:"slippage"`
	Walk         WalkResult      `json:"walk"`
	Warning      string          `json:"warning,omitempty"`
}

// NewSlippageEstimator creates an estimator that logs a warning above warningThresholdBps
func NewSlippageEstimator(warningThresholdBps float64) *SlippageEstimator {
	return &SlippageEstimator{
		warningThresholdBps: warningThresholdBps,
		logger:              logrus.WithField("component", "slippage-estimator"),
	}
}

// Estimate walks depth read-only and reports the average price and signed slippage
func (se *SlippageEstimator) Estimate(side types.OrderSide, quantity int64, depth *types.MarketDepth) SlippageEstimate {
	walk := PeekCost(side, quantity, depth)
	estimate := SlippageEstimate{
		AveragePrice: walk.AveragePrice(),
		Slippage:     walk.Slippage(),
		Walk:         walk,
	}

	if walk.IsPartial() && quantity > 0 {
		estimate.Warning = fmt.Sprintf("insufficient liquidity: %d of %d unfillable at this snapshot", walk.Shortfall(), quantity)
		se.logger.WithFields(logrus.Fields{
			"side":      side,
			"requested": quantity,
			"filled":    walk.Filled,
		}).Warn("Partial fill against snapshot")
	} else if se.warningThresholdBps > 0 && estimate.Slippage*10000 > se.warningThresholdBps {
		estimate.Warning = fmt.Sprintf("slippage %.2f bps exceeds %.2f bps", estimate.Slippage*10000, se.warningThresholdBps)
		se.logger.WithFields(logrus.Fields{
			"side":          side,
			"quantity":      quantity,
			"slippage_bps":  estimate.Slippage * 10000,
			"threshold_bps": se.warningThresholdBps,
		}).Warn("Slippage above threshold")
	}

	return estimate
}
