// Package ticker maintains the latest mark price per symbol, fed by a
// websocket worker and read by portfolio valuation.
package ticker

import "sync"

// PriceCache is a concurrency-safe symbol -> last price map.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]float64)}
}

// Set stores the latest price for a symbol.
func (c *PriceCache) Set(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

// Get returns the last known price and whether one exists.
func (c *PriceCache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}
