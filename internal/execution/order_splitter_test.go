package execution

import (
	"testing"
	"time"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSplitter(t *testing.T) *OrderSplitter {
	t.Helper()
	splitter, err := NewOrderSplitter(config.Default().Selector)
	require.NoError(t, err)
	return splitter
}

func TestOrderSplitter_Boundaries(t *testing.T) {
	splitter := newTestSplitter(t)

	tests := []struct {
		value  int64
		method types.ExecutionMethod
		window int
	}{
		{0, types.MethodMarket, 0},
		{99999, types.MethodMarket, 0},
		{100000, types.MethodTWAP, 15},
		{100001, types.MethodTWAP, 15},
		{499999, types.MethodTWAP, 15},
		{500000, types.MethodVWAP, 30},
		{500001, types.MethodVWAP, 30},
		{1999999, types.MethodVWAP, 30},
		{2000000, types.MethodVWAP, 60},
		{2000001, types.MethodVWAP, 60},
		{900000000, types.MethodVWAP, 60},
	}

	for _, tt := range tests {
		decision := splitter.Select(decimal.NewFromInt(tt.value), 100000)
		assert.Equal(t, tt.method, decision.Method, "value %d", tt.value)
		assert.Equal(t, tt.window, decision.WindowMinutes, "value %d", tt.value)
		assert.NotEmpty(t, decision.Rationale)
	}
}

func TestOrderSplitter_SliceCounts(t *testing.T) {
	splitter := newTestSplitter(t)

	decision := splitter.Select(decimal.NewFromInt(1500000), 6000)
	assert.Equal(t, types.MethodVWAP, decision.Method)
	assert.Equal(t, 20, decision.Slices)
	assert.Equal(t, 30, decision.WindowMinutes)
	assert.Equal(t, 30*time.Minute, decision.Window())

	tests := []struct {
		name     string
		value    int64
		quantity int64
		slices   int
	}{
		{"market is always one slice", 50000, 100000, 1},
		{"twap capped at 10", 200000, 5000, 10},
		{"twap by size", 200000, 450, 4},
		{"vwap capped at 20", 1000000, 100000, 20},
		{"block capped at 50", 5000000, 100000, 50},
		{"block by size", 5000000, 1234, 12},
		{"tiny quantity still one slice", 5000000, 40, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := splitter.Select(decimal.NewFromInt(tt.value), tt.quantity)
			assert.Equal(t, tt.slices, decision.Slices)
		})
	}
}

func TestNewOrderSplitter_RejectsBadConfig(t *testing.T) {
	cfg := config.Default().Selector
	cfg.Tiers[0].Method = "SNIPER"
	_, err := NewOrderSplitter(cfg)
	assert.Error(t, err)

	_, err = NewOrderSplitter(config.SelectorConfig{UnitsPerSlice: 100})
	assert.Error(t, err)

	_, err = NewOrderSplitter(config.SelectorConfig{Tiers: config.Default().Selector.Tiers})
	assert.Error(t, err)
}
