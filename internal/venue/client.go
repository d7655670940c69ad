// Package venue defines the contract the connectivity layer expects from a
// remote trading venue. Everything above this package talks to the Client
// interface; concrete REST implementations live in subpackages.
package venue

import "context"

// Candle is a raw OHLCV record as returned by the venue.
type Candle struct {
	TsUnixMilli int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Balance is a single-currency account balance.
type Balance struct {
	Currency string
	Free     float64
	Total    float64
}

// VenueOrder is the venue's view of an order.
type VenueOrder struct {
	ID        string
	ClientRef string
	Symbol    string
	Side      string
	Type      string
	Status    string
	Qty       float64
	Price     float64
	Filled    float64 // cumulative filled base quantity
	AvgPrice  float64 // average fill price, 0 when nothing filled
}

// MarketMeta describes a tradable market.
type MarketMeta struct {
	Symbol         string
	Base           string
	Quote          string
	PricePrecision int
	QtyPrecision   int
	MinQty         float64
	MinNotional    float64
}

// OrderSpec is the request shape for CreateOrder.
type OrderSpec struct {
	Symbol    string
	Side      string // "BUY" / "SELL"
	Type      string // "MARKET" / "LIMIT"
	Qty       float64
	Price     float64 // ignored for market orders
	ClientRef string
}

// Client is the set of venue primitives the layer consumes. Implementations
// return plain errors; failure containment (sentinel values, logging) is the
// connection manager's job, not the client's.
type Client interface {
	// Probe performs a lightweight connectivity and auth check.
	Probe(ctx context.Context) error

	FetchBalances(ctx context.Context) ([]Balance, error)
	CreateOrder(ctx context.Context, spec OrderSpec) (*VenueOrder, error)
	CancelOrder(ctx context.Context, id, symbol string) error

	// FetchOrder returns the venue's current view of a working order,
	// including its cumulative filled quantity.
	FetchOrder(ctx context.Context, id, symbol string) (*VenueOrder, error)

	// FetchOHLCV returns candles at or after since (Unix milliseconds),
	// oldest first, at most limit entries. since <= 0 means "most recent".
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]Candle, error)

	MarketMetadata(ctx context.Context, symbol string) (*MarketMeta, error)
}
