// Package conn owns the live venue session: credentials, request-id
// allocation, the notification queue, and sentinel-returning wrappers around
// every venue primitive. A venue failure here degrades a single call to a
// zero value; it never propagates as an error to the broker or the feed.
package conn

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"venuegate/internal/domain"
	"venuegate/internal/infra"
	"venuegate/internal/metrics"
	"venuegate/internal/venue"
)

// requestIDBase reserves the low id range so locally allocated ids can never
// collide with venue-native numeric ids echoed back in responses.
const requestIDBase = 1 << 20

// ClientFactory builds the venue client on first connect. Injected so tests
// and alternative venues never touch a global.
type ClientFactory func(cfg *infra.Config) venue.Client

// Manager is the single owner of one venue session.
type Manager struct {
	cfg      *infra.Config
	buildFn  ClientFactory
	limiters *infra.VenueLimiters
	breaker  *infra.CircuitBreaker
	queue    *Queue
	timeout  time.Duration

	mu        sync.Mutex
	client    venue.Client
	connected bool

	reqID atomic.Int64
}

// NewManager creates a manager. The client is built lazily on first Connect.
func NewManager(cfg *infra.Config, buildFn ClientFactory) *Manager {
	m := &Manager{
		cfg:      cfg,
		buildFn:  buildFn,
		limiters: infra.NewVenueLimiters(),
		breaker:  infra.NewCircuitBreaker(cfg.Venue.Name),
		queue:    NewQueue(cfg.Notifications.EmitAll),
		timeout:  cfg.VenueTimeout(),
	}
	m.reqID.Store(requestIDBase)
	return m
}

// Connect is idempotent: it builds the client if absent and runs one
// lightweight connectivity probe. On failure the manager stays disconnected
// and Connect returns false; it never returns an error.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return true
	}
	if m.client == nil {
		m.client = m.buildFn(m.cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.client.Probe(ctx); err != nil {
		slog.Warn("venue probe failed", slog.Any("error", err))
		metrics.VenueErrors.WithLabelValues("probe").Inc()
		m.queue.Push(domain.Notification{Kind: domain.NoticeDisconnected, Msg: err.Error()})
		return false
	}

	m.connected = true
	m.queue.Push(domain.Notification{Kind: domain.NoticeConnected, Informational: true})
	slog.Info("venue session connected", slog.String("venue", m.cfg.Venue.Name))
	return true
}

// Connected reports the session state.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Stop tears the session down and wipes credentials if the client supports it.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	if closer, ok := m.client.(interface{ Close() }); ok && m.client != nil {
		closer.Close()
	}
	m.client = nil
}

// NextRequestID allocates a monotonically increasing id, safe under
// concurrent callers.
func (m *Manager) NextRequestID() int64 {
	return m.reqID.Add(1)
}

// Notify enqueues a notification.
func (m *Manager) Notify(n domain.Notification) {
	m.queue.Push(n)
}

// NextNotification pops the oldest queued notification. Non-blocking.
func (m *Manager) NextNotification() (domain.Notification, bool) {
	return m.queue.Pop()
}

// Balance returns the free balance of one currency. Any venue failure reads
// as zero so callers degrade gracefully instead of crashing a poll cycle.
func (m *Manager) Balance(ctx context.Context, currency string) float64 {
	balances := m.Balances(ctx)
	if b, ok := balances[currency]; ok {
		return b.Free
	}
	return 0
}

// Balances returns all balances keyed by currency; empty map on failure.
func (m *Manager) Balances(ctx context.Context) map[string]venue.Balance {
	out := make(map[string]venue.Balance)

	client := m.activeClient()
	if client == nil {
		return out
	}
	if !m.breaker.Allow() {
		return out
	}
	m.limiters.Account.Wait()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	balances, err := client.FetchBalances(ctx)
	if err != nil {
		m.breaker.RecordFailure()
		metrics.VenueErrors.WithLabelValues("balance").Inc()
		slog.Warn("balance fetch failed, returning zero balances", slog.Any("error", err))
		return out
	}
	m.breaker.RecordSuccess()

	for _, b := range balances {
		out[b.Currency] = b
	}
	return out
}

// SubmitOrder forwards an order to the venue. Returns nil on any failure.
func (m *Manager) SubmitOrder(ctx context.Context, spec venue.OrderSpec) *venue.VenueOrder {
	client := m.activeClient()
	if client == nil {
		return nil
	}
	if !m.breaker.Allow() {
		slog.Warn("order submit short-circuited by open breaker", slog.String("symbol", spec.Symbol))
		return nil
	}
	m.limiters.Order.Wait()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	vo, err := client.CreateOrder(ctx, spec)
	if err != nil {
		m.breaker.RecordFailure()
		metrics.VenueErrors.WithLabelValues("create_order").Inc()
		slog.Warn("order submit failed",
			slog.String("symbol", spec.Symbol),
			slog.String("side", spec.Side),
			slog.Any("error", err))
		return nil
	}
	m.breaker.RecordSuccess()
	return vo
}

// CancelOrder cancels by venue id. Returns false on any failure; the caller
// must leave local state untouched in that case.
func (m *Manager) CancelOrder(ctx context.Context, id, symbol string) bool {
	client := m.activeClient()
	if client == nil {
		return false
	}
	if !m.breaker.Allow() {
		return false
	}
	m.limiters.Order.Wait()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := client.CancelOrder(ctx, id, symbol); err != nil {
		m.breaker.RecordFailure()
		metrics.VenueErrors.WithLabelValues("cancel_order").Inc()
		slog.Warn("order cancel failed",
			slog.String("id", id),
			slog.String("symbol", symbol),
			slog.Any("error", err))
		return false
	}
	m.breaker.RecordSuccess()
	return true
}

// OrderStatus loads the venue's view of a working order. Nil on failure.
func (m *Manager) OrderStatus(ctx context.Context, id, symbol string) *venue.VenueOrder {
	client := m.activeClient()
	if client == nil {
		return nil
	}
	if !m.breaker.Allow() {
		return nil
	}
	m.limiters.Order.Wait()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	vo, err := client.FetchOrder(ctx, id, symbol)
	if err != nil {
		m.breaker.RecordFailure()
		metrics.VenueErrors.WithLabelValues("order_status").Inc()
		slog.Warn("order status fetch failed",
			slog.String("id", id),
			slog.Any("error", err))
		return nil
	}
	m.breaker.RecordSuccess()
	return vo
}

// FetchOHLCV loads candles and maps them to engine bars. Nil on failure; an
// empty window is a benign data gap, not an error.
func (m *Manager) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) []domain.Bar {
	client := m.activeClient()
	if client == nil {
		return nil
	}
	if !m.breaker.Allow() {
		return nil
	}
	m.limiters.Market.Wait()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	candles, err := client.FetchOHLCV(ctx, symbol, timeframe, since, limit)
	if err != nil {
		m.breaker.RecordFailure()
		metrics.VenueErrors.WithLabelValues("ohlcv").Inc()
		slog.Warn("ohlcv fetch failed",
			slog.String("symbol", symbol),
			slog.String("timeframe", timeframe),
			slog.Any("error", err))
		return nil
	}
	m.breaker.RecordSuccess()

	bars := make([]domain.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, domain.Bar{
			TsUnixMilli: c.TsUnixMilli,
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			Volume:      c.Volume,
		})
	}
	return bars
}

// ContractDetails loads market metadata. Nil on failure.
func (m *Manager) ContractDetails(ctx context.Context, symbol string) *venue.MarketMeta {
	client := m.activeClient()
	if client == nil {
		return nil
	}
	if !m.breaker.Allow() {
		return nil
	}
	m.limiters.Market.Wait()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	meta, err := client.MarketMetadata(ctx, symbol)
	if err != nil {
		m.breaker.RecordFailure()
		metrics.VenueErrors.WithLabelValues("metadata").Inc()
		slog.Warn("metadata fetch failed", slog.String("symbol", symbol), slog.Any("error", err))
		return nil
	}
	m.breaker.RecordSuccess()
	return meta
}

func (m *Manager) activeClient() venue.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}
