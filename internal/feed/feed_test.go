package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"venuegate/internal/conn"
	"venuegate/internal/domain"
	"venuegate/internal/infra"
	"venuegate/internal/venue"
)

const msPerMin = int64(60_000)

type ohlcvResp struct {
	candles []venue.Candle
	err     error
}

// scriptedVenue serves OHLCV either from a fixed script (consumed one
// response per call) or, when gridNow is set, from a synthetic minute grid
// of candles covering [0, gridNow) minutes.
type scriptedVenue struct {
	mu         sync.Mutex
	probeErr   error
	ohlcvErr   error
	script     []ohlcvResp
	gridNow    int64 // minutes since epoch; 0 disables grid mode
	probeCalls int
	ohlcvCalls int
}

func (s *scriptedVenue) Probe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCalls++
	return s.probeErr
}

func (s *scriptedVenue) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]venue.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ohlcvCalls++

	if s.ohlcvErr != nil {
		return nil, s.ohlcvErr
	}
	if len(s.script) > 0 {
		resp := s.script[0]
		s.script = s.script[1:]
		return resp.candles, resp.err
	}
	if s.gridNow == 0 {
		return nil, nil
	}

	// Grid mode. since == 0 asks for the most recent candles, mirroring how
	// venues treat an omitted start time.
	if since == 0 {
		from := s.gridNow - int64(limit)
		if from < 0 {
			from = 0
		}
		return gridCandles(from, s.gridNow), nil
	}

	firstMin := (since + msPerMin - 1) / msPerMin
	lastMin := firstMin + int64(limit)
	if lastMin > s.gridNow {
		lastMin = s.gridNow
	}
	return gridCandles(firstMin, lastMin), nil
}

func gridCandles(fromMin, toMin int64) []venue.Candle {
	var out []venue.Candle
	for m := fromMin; m < toMin; m++ {
		out = append(out, venue.Candle{
			TsUnixMilli: m * msPerMin,
			Open:        100, High: 101, Low: 99, Close: 100.5,
			Volume: 1,
		})
	}
	return out
}

func (s *scriptedVenue) FetchBalances(ctx context.Context) ([]venue.Balance, error) {
	return nil, nil
}

func (s *scriptedVenue) CreateOrder(ctx context.Context, spec venue.OrderSpec) (*venue.VenueOrder, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedVenue) CancelOrder(ctx context.Context, id, symbol string) error {
	return errors.New("not implemented")
}

func (s *scriptedVenue) FetchOrder(ctx context.Context, id, symbol string) (*venue.VenueOrder, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedVenue) MarketMetadata(ctx context.Context, symbol string) (*venue.MarketMeta, error) {
	return nil, errors.New("not implemented")
}

func candle(tsMin int64) venue.Candle {
	return venue.Candle{TsUnixMilli: tsMin * msPerMin, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 1}
}

// sliceSource replays a fixed slice of bars.
type sliceSource struct {
	bars []domain.Bar
	pos  int
}

func (s *sliceSource) Next() (domain.Bar, bool) {
	if s.pos >= len(s.bars) {
		return domain.Bar{}, false
	}
	b := s.bars[s.pos]
	s.pos++
	return b, true
}

// recordingSink collects every SaveBars batch.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]domain.Bar
}

func (r *recordingSink) SaveBars(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]domain.Bar, len(bars))
	copy(cp, bars)
	r.batches = append(r.batches, cp)
	return nil
}

func feedConfig() *infra.Config {
	cfg := &infra.Config{}
	cfg.Venue.Name = "fake"
	cfg.Trading.Paper = true
	cfg.Trading.Currency = "USDT"
	cfg.Feed.Symbol = "BTCUSDT"
	cfg.Feed.Timeframe = "1m"
	cfg.Feed.PageLimit = 1000
	return cfg
}

func newTestFeed(t *testing.T, sv *scriptedVenue, fc Config, aux BarSource, sink BarSink) (*Feed, *conn.Manager) {
	t.Helper()

	manager := conn.NewManager(feedConfig(), func(*infra.Config) venue.Client { return sv })
	f, err := New(manager, fc, aux, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if sv.gridNow > 0 {
		nowMs := sv.gridNow * msPerMin
		f.now = func() time.Time { return time.UnixMilli(nowMs) }
	}
	return f, manager
}

func drainNotices(m *conn.Manager) []domain.Notification {
	var out []domain.Notification
	for {
		n, ok := m.NextNotification()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}

func hasNotice(ns []domain.Notification, kind domain.NoticeKind) bool {
	for _, n := range ns {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func TestFeed_BackfillPagination(t *testing.T) {
	sv := &scriptedVenue{gridNow: 10_000}
	f, _ := newTestFeed(t, sv, Config{
		Symbol:     "BTCUSDT",
		Timeframe:  "1m",
		Backfill:   2500,
		PageLimit:  1000,
		TailWindow: 5,
	}, nil, nil)

	ctx := context.Background()

	var got []domain.Bar
	for i := 0; i < 2500; i++ {
		res, bar := f.Poll(ctx)
		if res != BarReady {
			t.Fatalf("poll %d = %v, want BarReady", i, res)
		}
		got = append(got, bar)
	}

	if sv.ohlcvCalls != 3 {
		t.Errorf("backfill used %d fetches, want 3", sv.ohlcvCalls)
	}
	if f.State() != StateHistBackfill {
		t.Errorf("state = %v after draining all but the switch poll", f.State())
	}

	wantFirst := int64(10_000-2500) * msPerMin
	if got[0].TsUnixMilli != wantFirst {
		t.Errorf("first bar ts = %d, want %d", got[0].TsUnixMilli, wantFirst)
	}
	for i := 1; i < len(got); i++ {
		if got[i].TsUnixMilli != got[i-1].TsUnixMilli+msPerMin {
			t.Fatalf("gap or duplicate at bar %d: %d after %d",
				i, got[i].TsUnixMilli, got[i-1].TsUnixMilli)
		}
	}

	// Buffer exhausted: the next poll flips to LIVE, and the newest grid
	// candle matches the cursor, so nothing new is ready.
	res, _ := f.Poll(ctx)
	if res != NotYet {
		t.Errorf("first live poll = %v, want NotYet", res)
	}
	if !f.IsLive() {
		t.Error("feed not live after buffer drained")
	}
}

func TestFeed_LiveDedupAcrossBoundary(t *testing.T) {
	sv := &scriptedVenue{script: []ohlcvResp{
		{candles: []venue.Candle{candle(1), candle(2), candle(3)}}, // backfill page
		{candles: []venue.Candle{candle(2), candle(3), candle(4)}}, // first live window
		{candles: []venue.Candle{candle(2), candle(3), candle(4)}}, // unchanged window
	}}
	f, m := newTestFeed(t, sv, Config{
		Symbol:     "BTCUSDT",
		Timeframe:  "1m",
		Backfill:   3,
		PageLimit:  1000,
		TailWindow: 5,
	}, nil, nil)
	f.now = func() time.Time { return time.UnixMilli(4 * msPerMin) }

	ctx := context.Background()

	for i, wantMin := range []int64{1, 2, 3} {
		res, bar := f.Poll(ctx)
		if res != BarReady || bar.TsUnixMilli != wantMin*msPerMin {
			t.Fatalf("backfill poll %d = (%v, ts %d), want bar at minute %d",
				i, res, bar.TsUnixMilli, wantMin)
		}
	}

	res, bar := f.Poll(ctx)
	if res != BarReady || bar.TsUnixMilli != 4*msPerMin {
		t.Fatalf("first live poll = (%v, ts %d), want only the minute-4 bar", res, bar.TsUnixMilli)
	}
	if !hasNotice(drainNotices(m), domain.NoticeLive) {
		t.Error("no live notification on the backfill to live switch")
	}

	if res, _ := f.Poll(ctx); res != NotYet {
		t.Errorf("repeat window = %v, want NotYet", res)
	}
	if !f.HasLiveData() {
		t.Error("HasLiveData false after a live bar was emitted")
	}
}

func TestFeed_StartRetriesWhileDisconnected(t *testing.T) {
	sv := &scriptedVenue{probeErr: errors.New("venue down"), gridNow: 100}
	f, m := newTestFeed(t, sv, Config{
		Symbol: "BTCUSDT", Timeframe: "1m", Backfill: 10, PageLimit: 1000,
	}, nil, nil)

	ctx := context.Background()

	if res, _ := f.Poll(ctx); res != NotYet {
		t.Fatalf("poll while disconnected returned %v, want NotYet", res)
	}
	if f.State() != StateStart {
		t.Errorf("state = %v, want START to keep retrying", f.State())
	}
	if sv.ohlcvCalls != 0 {
		t.Errorf("history fetched despite failed probe (%d calls)", sv.ohlcvCalls)
	}
	if !hasNotice(drainNotices(m), domain.NoticeDisconnected) {
		t.Error("no disconnect notification from the failed probe")
	}

	sv.mu.Lock()
	sv.probeErr = nil
	sv.mu.Unlock()

	if res, _ := f.Poll(ctx); res != BarReady {
		t.Error("no bar after connectivity recovered")
	}
}

func TestFeed_HistoricalLoadFailureStaysInStart(t *testing.T) {
	sv := &scriptedVenue{ohlcvErr: errors.New("rate limited"), gridNow: 100}
	f, m := newTestFeed(t, sv, Config{
		Symbol: "BTCUSDT", Timeframe: "1m", Backfill: 10, PageLimit: 1000,
	}, nil, nil)

	ctx := context.Background()

	if res, _ := f.Poll(ctx); res != NotYet {
		t.Fatalf("poll with failing history returned %v, want NotYet", res)
	}
	if f.State() != StateStart {
		t.Errorf("state = %v, want START", f.State())
	}
	if !hasNotice(drainNotices(m), domain.NoticeDisconnected) {
		t.Error("no disconnect notification for the failed backfill")
	}

	sv.mu.Lock()
	sv.ohlcvErr = nil
	sv.mu.Unlock()

	res, bar := f.Poll(ctx)
	if res != BarReady {
		t.Fatalf("poll after recovery = %v, want BarReady", res)
	}
	if bar.TsUnixMilli != int64(100-10)*msPerMin {
		t.Errorf("first bar ts = %d, want minute %d", bar.TsUnixMilli, 100-10)
	}
}

func TestFeed_StopIsAbsorbing(t *testing.T) {
	sv := &scriptedVenue{gridNow: 100}
	f, m := newTestFeed(t, sv, Config{
		Symbol: "BTCUSDT", Timeframe: "1m", Backfill: 10, PageLimit: 1000,
	}, nil, nil)

	ctx := context.Background()

	if res, _ := f.Poll(ctx); res != BarReady {
		t.Fatal("setup poll did not produce a bar")
	}

	f.Stop()
	if res, _ := f.Poll(ctx); res != EndOfStream {
		t.Fatal("poll after Stop did not return EndOfStream")
	}
	if !hasNotice(drainNotices(m), domain.NoticeEndOfStream) {
		t.Error("no end of stream notification")
	}

	calls := sv.ohlcvCalls
	for i := 0; i < 3; i++ {
		if res, _ := f.Poll(ctx); res != EndOfStream {
			t.Fatalf("poll %d after stop = %v", i, res)
		}
	}
	if f.State() != StateOver {
		t.Errorf("state = %v, want OVER", f.State())
	}
	if sv.ohlcvCalls != calls {
		t.Error("venue polled after the stream ended")
	}
	if ns := drainNotices(m); hasNotice(ns, domain.NoticeEndOfStream) {
		t.Error("end of stream notified more than once")
	}
}

func TestFeed_AuxReplayBeforeVenue(t *testing.T) {
	aux := &sliceSource{bars: []domain.Bar{
		{TsUnixMilli: 1 * msPerMin, Close: 10},
		{TsUnixMilli: 1 * msPerMin, Close: 10}, // duplicate row, must be skipped
		{TsUnixMilli: 2 * msPerMin, Close: 11},
		{TsUnixMilli: 3 * msPerMin, Close: 12},
	}}
	sv := &scriptedVenue{script: []ohlcvResp{
		{candles: []venue.Candle{candle(2), candle(3), candle(4)}},
	}}
	f, _ := newTestFeed(t, sv, Config{
		Symbol: "BTCUSDT", Timeframe: "1m", Backfill: 0, TailWindow: 5,
	}, aux, nil)

	ctx := context.Background()

	for i, wantMin := range []int64{1, 2, 3} {
		res, bar := f.Poll(ctx)
		if res != BarReady || bar.TsUnixMilli != wantMin*msPerMin {
			t.Fatalf("aux poll %d = (%v, ts %d), want bar at minute %d",
				i, res, bar.TsUnixMilli, wantMin)
		}
		if sv.probeCalls != 0 {
			t.Fatal("venue probed while replaying the auxiliary source")
		}
	}

	// Aux exhausted: connect, skip backfill, and the live window's only new
	// candle is minute 4.
	res, bar := f.Poll(ctx)
	if res != BarReady || bar.TsUnixMilli != 4*msPerMin {
		t.Fatalf("first venue poll = (%v, ts %d), want the minute-4 bar", res, bar.TsUnixMilli)
	}
	if !f.IsLive() {
		t.Error("feed not live after aux exhaustion")
	}
}

func TestFeed_PersistsFetchedBars(t *testing.T) {
	sink := &recordingSink{}
	sv := &scriptedVenue{script: []ohlcvResp{
		{candles: []venue.Candle{candle(1), candle(2), candle(3)}},
		{candles: []venue.Candle{candle(2), candle(3), candle(4)}},
	}}
	f, _ := newTestFeed(t, sv, Config{
		Symbol: "BTCUSDT", Timeframe: "1m", Backfill: 3, PageLimit: 1000, TailWindow: 5,
	}, nil, sink)
	f.now = func() time.Time { return time.UnixMilli(4 * msPerMin) }

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.Poll(ctx)
	}

	if len(sink.batches) != 2 {
		t.Fatalf("sink got %d batches, want backfill plus one live bar", len(sink.batches))
	}
	if len(sink.batches[0]) != 3 {
		t.Errorf("backfill batch has %d bars, want 3", len(sink.batches[0]))
	}
	if len(sink.batches[1]) != 1 || sink.batches[1][0].TsUnixMilli != 4*msPerMin {
		t.Errorf("live batch = %+v, want the single minute-4 bar", sink.batches[1])
	}
}
