package cache

import (
	"sync"
	"time"

	"github.com/mExOms/execsim/pkg/types"
)

type depthItem struct {
	depth      *types.MarketDepth
	expiration int64
}

// DepthCache holds order book snapshots per symbol for a fixed TTL.
// Snapshots are cloned on the way in and out so callers may consume them.
type DepthCache struct {
	items    sync.Map
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewDepthCache creates a cache and starts its expiry sweep.
// A zero ttl keeps snapshots until they are replaced or deleted.
func NewDepthCache(ttl time.Duration) *DepthCache {
	cache := &DepthCache{
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	if ttl > 0 {
		go cache.cleanupExpired(sweepInterval(ttl))
	}
	return cache
}

// Set stores a copy of depth under its symbol
func (c *DepthCache) Set(depth *types.MarketDepth) {
	if depth == nil {
		return
	}

	var expiration int64
	if c.ttl > 0 {
		expiration = time.Now().Add(c.ttl).UnixNano()
	}
	c.items.Store(depth.Symbol, &depthItem{
		depth:      depth.Clone(),
		expiration: expiration,
	})
}

// Get returns a private copy of the snapshot for symbol
func (c *DepthCache) Get(symbol string) (*types.MarketDepth, bool) {
	value, exists := c.items.Load(symbol)
	if !exists {
		return nil, false
	}

	item := value.(*depthItem)
	if item.expired(time.Now().UnixNano()) {
		c.items.Delete(symbol)
		return nil, false
	}
	return item.depth.Clone(), true
}

func (c *DepthCache) Delete(symbol string) {
	c.items.Delete(symbol)
}

// Symbols lists the symbols with a live snapshot
func (c *DepthCache) Symbols() []string {
	now := time.Now().UnixNano()
	symbols := make([]string, 0)
	c.items.Range(func(key, value interface{}) bool {
		if !value.(*depthItem).expired(now) {
			symbols = append(symbols, key.(string))
		}
		return true
	})
	return symbols
}

// Stop ends the expiry sweep
func (c *DepthCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *DepthCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixNano()
			c.items.Range(func(key, value interface{}) bool {
				if value.(*depthItem).expired(now) {
					c.items.Delete(key)
				}
				return true
			})
		case <-c.stopChan:
			return
		}
	}
}

func (i *depthItem) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl * 10
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}
