package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mExOms/execsim/pkg/types"
)

// DepthSource supplies order book snapshots by symbol
type DepthSource interface {
	Depth(ctx context.Context, symbol string) (*types.MarketDepth, error)
}

// StaticSource serves fixed snapshots, typically loaded from disk
type StaticSource map[string]*types.MarketDepth

// Depth returns a private copy of the snapshot for symbol
func (s StaticSource) Depth(ctx context.Context, symbol string) (*types.MarketDepth, error) {
	depth, ok := s[symbol]
	if !ok {
		return nil, fmt.Errorf("no depth for symbol %s", symbol)
	}
	return depth.Clone(), nil
}

// LoadDepthFile reads one snapshot, or an array of snapshots, from a JSON file
func LoadDepthFile(path string) (StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read depth file: %w", err)
	}
	return ParseDepthJSON(data)
}

// ParseDepthJSON decodes one snapshot or an array of snapshots and validates each
func ParseDepthJSON(data []byte) (StaticSource, error) {
	var many []*types.MarketDepth
	if err := json.Unmarshal(data, &many); err != nil {
		var one types.MarketDepth
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("failed to decode depth: %w", err)
		}
		many = []*types.MarketDepth{&one}
	}

	source := make(StaticSource, len(many))
	for _, depth := range many {
		if depth == nil {
			continue
		}
		if err := depth.Validate(); err != nil {
			return nil, fmt.Errorf("depth %s: %w", depth.Symbol, err)
		}
		source[depth.Symbol] = depth
	}
	return source, nil
}
