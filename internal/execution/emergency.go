package execution

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Market condition labels with a dedicated exit strategy
const (
	ConditionFlashCrash = "flash_crash"
	ConditionPanic      = "panic"
	ConditionNormal     = "normal"
)

// ExitSpeed is how urgently a position is unwound
type ExitSpeed string

// Exit speeds
const (
	SpeedImmediate ExitSpeed = "IMMEDIATE"
	SpeedFast      ExitSpeed = "FAST"
	SpeedModerate  ExitSpeed = "MODERATE"
)

// ExitStrategy is the liquidation style chosen for a market condition
type ExitStrategy struct {
	Condition         string                `json:"condition"`
	Method            types.ExecutionMethod `json:"method"`
	Speed             ExitSpeed             `json:"speed"`
	SlippageAllowance float64               `json:"slippage_allowance"`
	Rationale         string                `json:"rationale"`
}

// ExitOrder is the priced unwind of one position
type ExitOrder struct {
	Symbol    string                `json:"symbol"`
	Side      types.OrderSide       `json:"side"`
	Method    types.ExecutionMethod `json:"method"`
	Quantity  int64                 `json:"quantity"`
	Price     decimal.Decimal       `json:"price"`
	Notional  decimal.Decimal       `json:"notional"`
	Remaining int64                 `json:"remaining"`
}

// ExitResult is one call's worth of emergency exit orders
type ExitResult struct {
	ID            string          `json:"id"`
	Strategy      ExitStrategy    `json:"strategy"`
	Orders        []ExitOrder     `json:"orders"`
	TotalNotional decimal.Decimal `json:"total_notional"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EmergencyExitPlanner maps a market condition to a liquidation strategy and prices it
type EmergencyExitPlanner struct {
	mu      sync.RWMutex
	config  config.EmergencyConfig
	history []*ExitResult
	logger  *logrus.Entry
}

// NewEmergencyExitPlanner creates a planner with an empty history
func NewEmergencyExitPlanner(cfg config.EmergencyConfig) *EmergencyExitPlanner {
	return &EmergencyExitPlanner{
		config: cfg,
		logger: logrus.WithField("component", "emergency-exit"),
	}
}

// Plan returns the fixed strategy for condition. Unknown labels get the default.
func (ep *EmergencyExitPlanner) Plan(condition string) ExitStrategy {
	switch condition {
	case ConditionFlashCrash:
		return ExitStrategy{
			Condition:         condition,
			Method:            types.MethodIceberg,
			Speed:             SpeedFast,
			SlippageAllowance: ep.config.FlashCrashAllowance,
			Rationale:         "clip into small slices to avoid printing at the floor",
		}
	case ConditionPanic:
		return ExitStrategy{
			Condition:         condition,
			Method:            types.MethodMarket,
			Speed:             SpeedImmediate,
			SlippageAllowance: ep.config.PanicAllowance,
			Rationale:         "accept heavy slippage to guarantee the fill",
		}
	default:
		return ExitStrategy{
			Condition:         condition,
			Method:            types.MethodLimit,
			Speed:             SpeedModerate,
			SlippageAllowance: ep.config.DefaultAllowance,
			Rationale:         "work a limit just inside the book",
		}
	}
}

// Execute prices every position under strategy. An ICEBERG strategy sizes one
// clip per position per call; repeat the call for successive clips.
func (ep *EmergencyExitPlanner) Execute(positions []types.Position, strategy ExitStrategy, depth *types.MarketDepth) *ExitResult {
	result := &ExitResult{
		ID:            uuid.New().String(),
		Strategy:      strategy,
		Orders:        make([]ExitOrder, 0, len(positions)),
		TotalNotional: decimal.Zero,
		CreatedAt:     time.Now(),
	}

	for _, pos := range positions {
		if pos.Quantity <= 0 {
			continue
		}

		book := depth
		if book != nil && book.Symbol != "" && pos.Symbol != "" && book.Symbol != pos.Symbol {
			book = nil
		}

		var order ExitOrder
		switch strategy.Method {
		case types.MethodIceberg:
			order = ep.priceMarket(pos, ep.clipSize(pos.Quantity), strategy, book)
		case types.MethodMarket:
			order = ep.priceMarket(pos, pos.Quantity, strategy, book)
		default:
			order = ep.priceLimit(pos, book)
		}

		result.Orders = append(result.Orders, order)
		result.TotalNotional = result.TotalNotional.Add(order.Notional)
	}

	ep.record(result)

	ep.logger.WithFields(logrus.Fields{
		"condition": strategy.Condition,
		"method":    strategy.Method,
		"positions": len(result.Orders),
		"notional":  result.TotalNotional.String(),
	}).Info("Emergency exit priced")

	return result
}

// History returns past exit results, oldest first
func (ep *EmergencyExitPlanner) History() []*ExitResult {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	out := make([]*ExitResult, len(ep.history))
	copy(out, ep.history)
	return out
}

func (ep *EmergencyExitPlanner) clipSize(quantity int64) int64 {
	clip := int64(math.Ceil(float64(quantity) * ep.config.ClipRatio))
	if clip < 1 {
		clip = 1
	}
	if clip > quantity {
		clip = quantity
	}
	return clip
}

// priceMarket walks the book for quantity units. Without a usable book the
// order is priced at the edge of the slippage allowance.
func (ep *EmergencyExitPlanner) priceMarket(pos types.Position, quantity int64, strategy ExitStrategy, book *types.MarketDepth) ExitOrder {
	side := pos.ExitSide()
	order := ExitOrder{
		Symbol:    pos.Symbol,
		Side:      side,
		Method:    strategy.Method,
		Remaining: pos.Quantity,
	}

	if book != nil {
		walk := PeekCost(side, quantity, book)
		if walk.Filled > 0 {
			order.Quantity = walk.Filled
			order.Price = walk.AveragePrice()
			order.Notional = walk.Notional
			order.Remaining = pos.Quantity - walk.Filled
			return order
		}
	}

	adj := decimal.NewFromFloat(1 - strategy.SlippageAllowance)
	if side == types.OrderSideBuy {
		adj = decimal.NewFromFloat(1 + strategy.SlippageAllowance)
	}
	order.Quantity = quantity
	order.Price = pos.CurrentPrice.Mul(adj)
	order.Notional = order.Price.Mul(decimal.NewFromInt(quantity))
	order.Remaining = pos.Quantity - quantity
	return order
}

// priceLimit places the whole position at LimitDiscount of the best ask,
// or of the position's current price when there is no ask.
func (ep *EmergencyExitPlanner) priceLimit(pos types.Position, book *types.MarketDepth) ExitOrder {
	reference := pos.CurrentPrice
	if book != nil {
		if ask, ok := book.BestAsk(); ok {
			reference = ask
		}
	}

	price := reference.Mul(decimal.NewFromFloat(ep.config.LimitDiscount))
	return ExitOrder{
		Symbol:   pos.Symbol,
		Side:     pos.ExitSide(),
		Method:   types.MethodLimit,
		Quantity: pos.Quantity,
		Price:    price,
		Notional: price.Mul(decimal.NewFromInt(pos.Quantity)),
	}
}

func (ep *EmergencyExitPlanner) record(result *ExitResult) {
	if ep.config.HistorySize <= 0 {
		return
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()

	if len(ep.history) >= ep.config.HistorySize {
		ep.history = ep.history[1:]
	}
	ep.history = append(ep.history, result)
}
