package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/pkg/cache"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const binanceTestnetURL = "https://testnet.binance.vision/api"

type depthFetcher func(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error)

// BinanceDepthSource pulls spot order book snapshots over REST and
// converts base-asset quantities into whole lots.
type BinanceDepthSource struct {
	client      *binance.Client
	fetch       depthFetcher
	cache       *cache.DepthCache
	rateLimiter *cache.RateLimiter
	lotSize     decimal.Decimal
	limit       int
	logger      *logrus.Entry
}

// NewBinanceDepthSource creates a source from cfg
func NewBinanceDepthSource(cfg config.BinanceConfig) (*BinanceDepthSource, error) {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.TestNet {
		client.BaseURL = binanceTestnetURL
	}

	bs, err := newBinanceDepthSource(cfg, nil)
	if err != nil {
		return nil, err
	}
	bs.client = client
	bs.fetch = func(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error) {
		return client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	}
	return bs, nil
}

func newBinanceDepthSource(cfg config.BinanceConfig, fetch depthFetcher) (*BinanceDepthSource, error) {
	lotSize, err := decimal.NewFromString(cfg.LotSize)
	if err != nil {
		return nil, fmt.Errorf("invalid lot size %q: %w", cfg.LotSize, err)
	}
	if !lotSize.IsPositive() {
		return nil, fmt.Errorf("lot size must be positive, got %s", lotSize)
	}

	limit := cfg.DepthLimit
	if limit <= 0 {
		limit = 100
	}

	return &BinanceDepthSource{
		fetch:       fetch,
		cache:       cache.NewDepthCache(time.Duration(cfg.CacheTTLMs) * time.Millisecond),
		rateLimiter: cache.NewRateLimiter(cfg.RateLimit, time.Minute),
		lotSize:     lotSize,
		limit:       limit,
		logger:      logrus.WithField("component", "binance-depth"),
	}, nil
}

// Depth returns the current book for symbol, served from cache while fresh.
// symbol may use any separator; the returned book keeps it as given.
func (bs *BinanceDepthSource) Depth(ctx context.Context, symbol string) (*types.MarketDepth, error) {
	if cached, ok := bs.cache.Get(symbol); ok {
		return cached, nil
	}

	if err := bs.rateLimiter.Wait(ctx, "depth"); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", symbol, err)
	}

	resp, err := bs.fetch(ctx, BinanceSymbol(symbol), bs.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch depth for %s: %w", symbol, err)
	}

	depth, err := ConvertDepth(symbol, resp, bs.lotSize, time.Now())
	if err != nil {
		return nil, err
	}
	bs.cache.Set(depth)

	bs.logger.WithFields(logrus.Fields{
		"symbol":         symbol,
		"pair":           StandardSymbol(BinanceSymbol(symbol)),
		"last_update_id": resp.LastUpdateID,
		"bids":           len(depth.Bids),
		"asks":           len(depth.Asks),
	}).Debug("Depth snapshot fetched")

	return depth, nil
}

// Close stops the snapshot cache sweep
func (bs *BinanceDepthSource) Close() {
	bs.cache.Stop()
}

// ConvertDepth turns a Binance depth response into a MarketDepth whose
// volumes count whole lots of lotSize and whose prices are quoted per lot,
// so volume x price stays in the quote asset. Fractional lots are truncated.
func ConvertDepth(symbol string, resp *binance.DepthResponse, lotSize decimal.Decimal, ts time.Time) (*types.MarketDepth, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response for %s", types.ErrMalformedDepth, symbol)
	}

	depth := &types.MarketDepth{
		Symbol:    symbol,
		Bids:      make([]types.PriceLevel, 0, len(resp.Bids)),
		Asks:      make([]types.PriceLevel, 0, len(resp.Asks)),
		Timestamp: ts,
	}

	for _, bid := range resp.Bids {
		level, err := convertLevel(bid.Price, bid.Quantity, lotSize)
		if err != nil {
			return nil, fmt.Errorf("%s bid: %w", symbol, err)
		}
		depth.Bids = append(depth.Bids, level)
	}
	for _, ask := range resp.Asks {
		level, err := convertLevel(ask.Price, ask.Quantity, lotSize)
		if err != nil {
			return nil, fmt.Errorf("%s ask: %w", symbol, err)
		}
		depth.Asks = append(depth.Asks, level)
	}

	if err := depth.Validate(); err != nil {
		return nil, err
	}
	return depth, nil
}

func convertLevel(priceStr, quantityStr string, lotSize decimal.Decimal) (types.PriceLevel, error) {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return types.PriceLevel{}, fmt.Errorf("%w: price %q: %v", types.ErrMalformedDepth, priceStr, err)
	}
	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return types.PriceLevel{}, fmt.Errorf("%w: quantity %q: %v", types.ErrMalformedDepth, quantityStr, err)
	}

	return types.PriceLevel{
		Price:  price.Mul(lotSize),
		Volume: quantity.Div(lotSize).IntPart(),
	}, nil
}
