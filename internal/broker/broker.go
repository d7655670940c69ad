// Package broker implements the order/position manager the engine trades
// through. One mutex per broker guards the active-order and position maps;
// outbound network calls are issued outside that lock so slow venue I/O never
// blocks unrelated order operations.
package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"venuegate/internal/conn"
	"venuegate/internal/domain"
	"venuegate/internal/metrics"
	"venuegate/internal/ticker"
	"venuegate/internal/venue"
)

// Broker routes orders to the venue (or simulates acceptance in paper mode)
// and tracks positions per symbol.
type Broker struct {
	conn       *conn.Manager
	prices     *ticker.PriceCache
	paper      bool
	commission float64
	currency   string

	mu        sync.Mutex
	active    map[int64]*domain.Order
	positions map[string]*domain.Position

	// order-update queue, drained by the engine once per cycle
	notifications *conn.Queue
}

// New creates a broker bound to one connection manager.
func New(manager *conn.Manager, prices *ticker.PriceCache, paper bool, commission float64, currency string) *Broker {
	return &Broker{
		conn:          manager,
		prices:        prices,
		paper:         paper,
		commission:    commission,
		currency:      currency,
		active:        make(map[int64]*domain.Order),
		positions:     make(map[string]*domain.Position),
		notifications: conn.NewQueue(true),
	}
}

// Cash pulls a fresh quote-currency balance from the venue on every call.
// No caching: stale cash is worse for order validation than the extra
// rate-limit cost of one account request per query.
func (b *Broker) Cash(ctx context.Context) float64 {
	return b.conn.Balance(ctx, b.currency)
}

// Value returns cash plus the mark-to-market value of positions in the given
// symbols. Valuation is restricted to the symbols the caller names: balances
// in other currencies are not aggregated, since no reliable mark exists for
// them here. Marks come from the ticker cache, falling back to the position's
// entry price when no tick has been seen.
func (b *Broker) Value(ctx context.Context, symbols []string) float64 {
	value := b.Cash(ctx)

	b.mu.Lock()
	for _, sym := range symbols {
		pos, ok := b.positions[sym]
		if !ok || pos.IsFlat() {
			continue
		}
		mark := pos.AvgPrice
		if p, ok := b.prices.Get(sym); ok {
			mark = p
		}
		value += pos.Size * mark
	}
	b.mu.Unlock()

	metrics.Equity.Set(value)
	return value
}

// Position returns a copy of the symbol's position. Unknown symbols
// read as a flat position.
func (b *Broker) Position(symbol string) domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pos, ok := b.positions[symbol]; ok {
		return pos.Clone()
	}
	return domain.Position{Symbol: symbol}
}

// LivePosition returns the authoritative position object. Callers opt into
// this explicitly and must not mutate it; the broker remains the only writer.
func (b *Broker) LivePosition(symbol string) *domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		b.positions[symbol] = pos
	}
	return pos
}

// Submit runs the order pipeline. Validation, id assignment, registration
// and the submit notice share one critical section, so a half-registered
// order can never be seen by a concurrent cancel. The venue call itself
// happens after the lock is released. An unsupported exec type ends in
// REJECTED; a live buy that cannot cover notional plus commission ends in
// MARGIN, the rejection class reserved for insufficient funds.
func (b *Broker) Submit(ctx context.Context, o *domain.Order) *domain.Order {
	if o.ClientRef == "" {
		o.ClientRef = uuid.New().String()
	}
	if o.CreatedUnixM == 0 {
		o.CreatedUnixM = time.Now().UnixMilli()
	}

	// The cash probe is a network call, so it runs before the critical
	// section; only live buys need it.
	var cash float64
	needsCash := !b.paper && o.Side == domain.SideBuy && supportedExec(o.ExecType)
	if needsCash {
		cash = b.Cash(ctx)
	}

	b.mu.Lock()
	switch {
	case !supportedExec(o.ExecType):
		o.Status = domain.StatusRejected
		metrics.OrderRejects.WithLabelValues("unsupported_exec_type").Inc()
		slog.Warn("order rejected: unsupported exec type",
			slog.String("exec_type", string(o.ExecType)),
			slog.String("symbol", o.Symbol))
	case needsCash && b.requiredCash(o) > cash:
		o.Status = domain.StatusMargin
		metrics.OrderRejects.WithLabelValues("insufficient_cash").Inc()
		slog.Warn("order rejected: insufficient cash",
			slog.String("symbol", o.Symbol),
			slog.Float64("required", b.requiredCash(o)),
			slog.Float64("cash", cash))
	default:
		o.RequestID = b.conn.NextRequestID()
		o.Status = domain.StatusSubmitted
		b.active[o.RequestID] = o
		b.notify(o)
	}
	submitted := o.Status == domain.StatusSubmitted
	b.mu.Unlock()

	if !submitted {
		b.notify(o)
		return o
	}

	metrics.Orders.WithLabelValues(b.mode(), string(o.Side)).Inc()

	if b.paper {
		b.acceptPaper(o)
		return o
	}

	// live: issue the venue call outside the lock
	vo := b.conn.SubmitOrder(ctx, venue.OrderSpec{
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Type:      string(o.ExecType),
		Qty:       o.Qty,
		Price:     o.Price,
		ClientRef: o.ClientRef,
	})

	b.mu.Lock()
	if vo == nil {
		delete(b.active, o.RequestID)
		o.Status = domain.StatusRejected
	} else {
		o.VenueID = vo.ID
		o.Status = domain.StatusAccepted
	}
	b.mu.Unlock()

	b.notify(o)
	return o
}

// Cancel cancels an active order. Unknown or inactive ids return false
// without touching anything. In live mode the venue cancel is issued outside
// the lock; a venue failure leaves local state unchanged.
func (b *Broker) Cancel(ctx context.Context, o *domain.Order) bool {
	b.mu.Lock()
	registered, ok := b.active[o.RequestID]
	if !ok {
		b.mu.Unlock()
		return false
	}
	venueID := registered.VenueID
	symbol := registered.Symbol
	b.mu.Unlock()

	if !b.paper {
		if !b.conn.CancelOrder(ctx, venueID, symbol) {
			return false
		}
	}

	b.mu.Lock()
	// The order may have completed (or been cancelled by a fill sync) while
	// the venue call ran outside the lock; its final status then stands.
	if _, ok := b.active[registered.RequestID]; !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.active, registered.RequestID)
	registered.Status = domain.StatusCanceled
	b.mu.Unlock()

	b.notify(registered)
	return true
}

// Notification pops the oldest order update. Non-blocking; the engine polls
// once per cycle.
func (b *Broker) Notification() (*domain.Order, bool) {
	n, ok := b.notifications.Pop()
	if !ok {
		return nil, false
	}
	return n.Order, true
}

// ActiveCount reports how many orders are in flight.
func (b *Broker) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

// acceptPaper mirrors the live status transitions without a venue call.
// Market orders fill immediately at the last mark; limit orders rest as
// accepted (matching simulation is out of scope).
func (b *Broker) acceptPaper(o *domain.Order) {
	b.mu.Lock()
	o.Status = domain.StatusAccepted
	b.mu.Unlock()
	b.notify(o)

	if o.ExecType != domain.ExecMarket {
		return
	}

	fill := o.Price
	if p, ok := b.prices.Get(o.Symbol); ok {
		fill = p
	}
	if fill <= 0 {
		return // no mark yet; leave the order resting
	}

	b.mu.Lock()
	delete(b.active, o.RequestID)
	o.Status = domain.StatusCompleted
	o.Filled = o.Qty
	b.applyFillLocked(o.Symbol, o.Side, o.Qty, fill)
	b.mu.Unlock()
	b.notify(o)
}

// SyncFills polls the venue for the status of every active live order and
// folds newly reported fills into the position map. Paper mode has nothing
// to sync. Venue failures skip the order until the next cycle.
func (b *Broker) SyncFills(ctx context.Context) {
	if b.paper {
		return
	}

	b.mu.Lock()
	type pending struct {
		requestID int64
		venueID   string
		symbol    string
	}
	work := make([]pending, 0, len(b.active))
	for id, o := range b.active {
		if o.VenueID == "" {
			continue
		}
		work = append(work, pending{requestID: id, venueID: o.VenueID, symbol: o.Symbol})
	}
	b.mu.Unlock()

	for _, p := range work {
		vo := b.conn.OrderStatus(ctx, p.venueID, p.symbol)
		if vo == nil {
			continue
		}

		if vo.Status == "cancelled" {
			b.mu.Lock()
			o, ok := b.active[p.requestID]
			if ok {
				delete(b.active, p.requestID)
				o.Status = domain.StatusCanceled
			}
			b.mu.Unlock()
			if ok {
				b.notify(o)
			}
			continue
		}

		b.mu.Lock()
		o, ok := b.active[p.requestID]
		delta := 0.0
		if ok {
			delta = vo.Filled - o.Filled
		}
		b.mu.Unlock()
		if delta <= 0 {
			continue
		}

		price := vo.AvgPrice
		if price <= 0 {
			price = vo.Price
		}
		b.ApplyFill(p.requestID, delta, price)
	}
}

// ApplyFill folds one incremental fill into the position map and advances
// the order's status. Used by the live order-status path.
func (b *Broker) ApplyFill(requestID int64, qty, price float64) {
	b.mu.Lock()
	o, ok := b.active[requestID]
	if !ok {
		b.mu.Unlock()
		return
	}
	b.applyFillLocked(o.Symbol, o.Side, qty, price)
	o.Filled += qty
	if o.Filled >= o.Qty {
		delete(b.active, requestID)
		o.Status = domain.StatusCompleted
	} else {
		o.Status = domain.StatusPartiallyFilled
	}
	b.mu.Unlock()
	b.notify(o)
}

func (b *Broker) applyFillLocked(symbol string, side domain.Side, qty, price float64) {
	pos, ok := b.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		b.positions[symbol] = pos
	}
	pos.ApplyFill(side, qty, price)
}

// requiredCash is the notional plus commission a buy must cover. Market
// orders are checked against the last mark when no price is set.
func (b *Broker) requiredCash(o *domain.Order) float64 {
	price := o.Price
	if price <= 0 {
		if p, ok := b.prices.Get(o.Symbol); ok {
			price = p
		}
	}
	return price * o.Qty * (1 + b.commission)
}

// notify enqueues a snapshot of the order, so later status changes do not
// rewrite history for whoever drains the queue. The queue carries its own
// lock and is safe to call inside or outside the broker's critical section.
func (b *Broker) notify(o *domain.Order) {
	snapshot := *o
	b.notifications.Push(domain.Notification{Kind: domain.NoticeOrderUpdate, Order: &snapshot})
}

func (b *Broker) mode() string {
	if b.paper {
		return "paper"
	}
	return "live"
}

func supportedExec(t domain.ExecType) bool {
	return t == domain.ExecMarket || t == domain.ExecLimit
}
