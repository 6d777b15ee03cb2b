package nats

import (
	"encoding/json"
	"time"

	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
)

// Reply is the envelope every service response travels in
type Reply struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RemoteError carries the error string of a failed reply
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote: " + e.Message
}

// EstimateMessage asks for the cost of filling an order in one go
type EstimateMessage struct {
	Symbol      string             `json:"symbol"`
	Side        types.OrderSide    `json:"side"`
	Quantity    int64              `json:"quantity"`
	DailyVolume int64              `json:"daily_volume"`
	Volatility  float64            `json:"volatility"`
	Depth       *types.MarketDepth `json:"depth,omitempty"`
}

// EstimateResult answers an EstimateMessage
type EstimateResult struct {
	Symbol       string              `json:"symbol"`
	AveragePrice decimal.Decimal     `json:"average_price"`
	Filled       int64               `json:"filled"`
	Shortfall    int64               `json:"shortfall"`
	Cost         types.ExecutionCost `json:"cost"`
	Warning      string              `json:"warning,omitempty"`
}

// SimulateMessage replays a schedule against a book
type SimulateMessage struct {
	Symbol   string             `json:"symbol"`
	Schedule types.Schedule     `json:"schedule"`
	Depth    *types.MarketDepth `json:"depth,omitempty"`
}

// ExitMessage asks for an emergency liquidation plan
type ExitMessage struct {
	Condition string             `json:"condition"`
	Positions []types.Position   `json:"positions"`
	Depth     *types.MarketDepth `json:"depth,omitempty"`
}
