// Package feed produces one bar per poll from a remote venue, replaying an
// auxiliary source and a bounded historical backfill before switching to
// live polling. The state machine is pull-based and non-blocking: every
// Poll returns exactly one of BarReady, NotYet, or EndOfStream.
package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"venuegate/internal/conn"
	"venuegate/internal/domain"
	"venuegate/internal/metrics"
	"venuegate/pkg/timeframe"
)

// State is the feed's position in its lifecycle.
type State int

const (
	StateFromAux State = iota
	StateStart
	StateHistBackfill
	StateLive
	StateOver
)

func (s State) String() string {
	switch s {
	case StateFromAux:
		return "FROM_AUX"
	case StateStart:
		return "START"
	case StateHistBackfill:
		return "HIST_BACKFILL"
	case StateLive:
		return "LIVE"
	case StateOver:
		return "OVER"
	default:
		return "UNKNOWN"
	}
}

// PollResult is the outcome of one poll.
type PollResult int

const (
	BarReady PollResult = iota
	NotYet
	EndOfStream
)

func (r PollResult) String() string {
	switch r {
	case BarReady:
		return "BAR_READY"
	case NotYet:
		return "NOT_YET"
	case EndOfStream:
		return "END_OF_STREAM"
	default:
		return "UNKNOWN"
	}
}

// BarSource replays bars from somewhere other than the venue, e.g. the
// SQLite cache. Exhaustion hands control to the normal START path.
type BarSource interface {
	Next() (domain.Bar, bool)
}

// BarSink receives bars fetched from the venue as a side channel, e.g. to
// warm the cache. Failures are the sink's problem; the feed ignores them.
type BarSink interface {
	SaveBars(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error
}

// Config sizes the feed's backfill and live polling behavior.
type Config struct {
	Symbol     string
	Timeframe  string
	Backfill   int // historical candles wanted before LIVE; 0 skips backfill
	PageLimit  int // venue's max candles per request
	TailWindow int // candles per live poll
}

// Feed is the bar-stream state machine. It is driven by a single polling
// loop and has no internal concurrency; Stop may be called from any
// goroutine and is observed at the top of the next Poll.
type Feed struct {
	conn *conn.Manager
	cfg  Config
	aux  BarSource
	sink BarSink

	state    State
	buffer   []domain.Bar // backfill FIFO
	cursor   int64        // timestamp of the last emitted bar
	liveBars int64        // bars emitted while LIVE
	tfMillis int64

	stopped atomic.Bool
	now     func() time.Time
}

// New creates a feed. aux and sink may be nil.
func New(manager *conn.Manager, cfg Config, aux BarSource, sink BarSink) (*Feed, error) {
	tfMillis, err := timeframe.Millis(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	if cfg.TailWindow <= 0 {
		cfg.TailWindow = 5
	}

	state := StateStart
	if aux != nil {
		state = StateFromAux
	}
	return &Feed{
		conn:     manager,
		cfg:      cfg,
		aux:      aux,
		sink:     sink,
		state:    state,
		tfMillis: tfMillis,
		now:      time.Now,
	}, nil
}

// State returns the current machine state.
func (f *Feed) State() State {
	return f.state
}

// IsLive reports whether the feed has switched to live polling.
func (f *Feed) IsLive() bool {
	return f.state == StateLive
}

// HasLiveData reports whether at least one live bar has been emitted.
func (f *Feed) HasLiveData() bool {
	return f.state == StateLive && f.liveBars > 0
}

// Stop requests termination. The flag is checked only at the top of the
// next Poll; an in-flight venue call finishes (or fails) on its own first.
func (f *Feed) Stop() {
	f.stopped.Store(true)
}

// Poll advances the state machine by one step.
func (f *Feed) Poll(ctx context.Context) (PollResult, domain.Bar) {
	res, bar := f.poll(ctx)

	switch res {
	case BarReady:
		metrics.FeedPolls.WithLabelValues("bar").Inc()
		metrics.BarsEmitted.Inc()
	case NotYet:
		metrics.FeedPolls.WithLabelValues("not_yet").Inc()
	case EndOfStream:
		metrics.FeedPolls.WithLabelValues("end_of_stream").Inc()
	}
	return res, bar
}

func (f *Feed) poll(ctx context.Context) (PollResult, domain.Bar) {
	if f.stopped.Load() && f.state != StateOver {
		f.enterOver()
	}

	switch f.state {
	case StateOver:
		return EndOfStream, domain.Bar{}
	case StateFromAux:
		return f.pollAux(ctx)
	case StateStart:
		return f.pollStart(ctx)
	case StateHistBackfill:
		return f.pollBackfill(ctx)
	case StateLive:
		return f.pollLive(ctx)
	default:
		return NotYet, domain.Bar{}
	}
}

// pollAux drains the auxiliary source, skipping anything at or behind the
// cursor, then falls through to START.
func (f *Feed) pollAux(ctx context.Context) (PollResult, domain.Bar) {
	for {
		bar, ok := f.aux.Next()
		if !ok {
			slog.Info("auxiliary source exhausted", slog.String("symbol", f.cfg.Symbol))
			f.state = StateStart
			return f.pollStart(ctx)
		}
		if bar.TsUnixMilli > f.cursor {
			f.cursor = bar.TsUnixMilli
			return BarReady, bar
		}
	}
}

// pollStart probes connectivity and, when requested, loads the historical
// window. A failed probe or a failed historical load both leave the feed in
// START to be retried on the next poll.
func (f *Feed) pollStart(ctx context.Context) (PollResult, domain.Bar) {
	if !f.conn.Connect(ctx) {
		return NotYet, domain.Bar{}
	}

	if f.cfg.Backfill <= 0 {
		f.enterLive()
		return f.pollLive(ctx)
	}

	bars, ok := f.fetchHistory(ctx)
	if !ok {
		f.conn.Notify(domain.Notification{
			Kind: domain.NoticeDisconnected,
			Msg:  "historical backfill failed",
		})
		return NotYet, domain.Bar{}
	}

	f.buffer = f.buffer[:0]
	for _, b := range bars {
		if b.TsUnixMilli > f.cursor {
			f.buffer = append(f.buffer, b)
		}
	}
	f.persist(ctx, bars)

	slog.Info("historical backfill loaded",
		slog.String("symbol", f.cfg.Symbol),
		slog.Int("bars", len(f.buffer)))

	f.state = StateHistBackfill
	return f.pollBackfill(ctx)
}

// pollBackfill pops the oldest buffered bar; an empty buffer switches to
// LIVE and polls immediately.
func (f *Feed) pollBackfill(ctx context.Context) (PollResult, domain.Bar) {
	if len(f.buffer) > 0 {
		bar := f.buffer[0]
		f.buffer = f.buffer[1:]
		f.cursor = bar.TsUnixMilli
		return BarReady, bar
	}

	f.enterLive()
	return f.pollLive(ctx)
}

// pollLive fetches a small trailing window and emits the newest candle if it
// is strictly newer than the cursor. Failures and gaps both read as NotYet.
func (f *Feed) pollLive(ctx context.Context) (PollResult, domain.Bar) {
	bars := f.conn.FetchOHLCV(ctx, f.cfg.Symbol, f.cfg.Timeframe, 0, f.cfg.TailWindow)
	if len(bars) == 0 {
		return NotYet, domain.Bar{}
	}

	newest := bars[len(bars)-1]
	if newest.TsUnixMilli <= f.cursor {
		return NotYet, domain.Bar{}
	}

	f.cursor = newest.TsUnixMilli
	f.liveBars++
	f.persist(ctx, []domain.Bar{newest})
	return BarReady, newest
}

// fetchHistory pages backward-bounded history forward with a since cursor
// until it reaches "now", respecting the venue's page ceiling. Any page
// failure fails the whole load; partial history would leave silent gaps.
func (f *Feed) fetchHistory(ctx context.Context) ([]domain.Bar, bool) {
	nowMs := f.now().UnixMilli()
	since := nowMs - int64(f.cfg.Backfill)*f.tfMillis

	var out []domain.Bar
	for {
		batch := f.conn.FetchOHLCV(ctx, f.cfg.Symbol, f.cfg.Timeframe, since, f.cfg.PageLimit)
		if batch == nil {
			return nil, false
		}
		if len(batch) == 0 {
			break
		}

		// drop page-boundary duplicates
		lastTs := int64(-1)
		if len(out) > 0 {
			lastTs = out[len(out)-1].TsUnixMilli
		}
		for _, b := range batch {
			if b.TsUnixMilli > lastTs {
				out = append(out, b)
				lastTs = b.TsUnixMilli
			}
		}

		newest := batch[len(batch)-1].TsUnixMilli
		if newest >= nowMs-f.tfMillis {
			break // reached the most recent completed candle
		}
		if newest < since {
			break // no forward progress; stop rather than loop forever
		}
		since = newest + 1

		if len(batch) < f.cfg.PageLimit {
			break
		}
	}
	return out, true
}

func (f *Feed) enterLive() {
	f.state = StateLive
	f.conn.Notify(domain.Notification{Kind: domain.NoticeLive})
	slog.Info("feed live", slog.String("symbol", f.cfg.Symbol))
}

func (f *Feed) enterOver() {
	f.state = StateOver
	f.conn.Notify(domain.Notification{Kind: domain.NoticeEndOfStream})
	slog.Info("feed over", slog.String("symbol", f.cfg.Symbol))
}

// persist hands bars to the sink when one is configured. Cache failures are
// logged and otherwise ignored; the stream must not stall on them.
func (f *Feed) persist(ctx context.Context, bars []domain.Bar) {
	if f.sink == nil || len(bars) == 0 {
		return
	}
	if err := f.sink.SaveBars(ctx, f.cfg.Symbol, f.cfg.Timeframe, bars); err != nil {
		slog.Warn("bar cache save failed", slog.Any("error", err))
	}
}
