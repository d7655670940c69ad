package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venuegate/internal/broker"
	"venuegate/internal/conn"
	"venuegate/internal/feed"
	"venuegate/internal/infra"
	"venuegate/internal/metrics"
	"venuegate/internal/storage"
	"venuegate/internal/ticker"
	"venuegate/internal/venue"
	"venuegate/internal/venue/bitget"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml configuration")
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Configuration load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics endpoint
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			slog.Info("📊 Metrics server started", slog.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	// Venue session
	registry := conn.NewRegistry()
	manager := registry.Get(cfg, bitgetFactory)
	defer manager.Stop()

	// Ticker stream feeding the mark price cache
	prices := ticker.NewPriceCache()
	if cfg.Venue.WSURL != "" {
		worker := ticker.NewWorker(cfg.Venue.WSURL, []string{cfg.Feed.Symbol}, prices)
		worker.Start(ctx)
		defer worker.Stop()
		slog.Info("✅ Ticker worker started", slog.String("symbol", cfg.Feed.Symbol))
	}

	bkr := broker.New(manager, prices, cfg.Trading.Paper, cfg.Trading.Commission, cfg.Trading.Currency)

	// Optional bar cache; doubles as the auxiliary replay source.
	var store *storage.BarStore
	var aux feed.BarSource
	var sink feed.BarSink
	if cfg.Storage.Path != "" {
		store, err = storage.NewBarStore(cfg.Storage.Path)
		if err != nil {
			slog.Error("❌ Bar store open failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
		sink = store

		if cfg.Feed.UseAuxStore {
			source, err := store.NewSource(ctx, cfg.Feed.Symbol, cfg.Feed.Timeframe, 0, 0)
			if err != nil {
				slog.Error("❌ Aux source load failed", slog.Any("error", err))
				os.Exit(1)
			}
			aux = source
			slog.Info("✅ Auxiliary bar source loaded", slog.Int("bars", source.Remaining()))
		}
	}

	barFeed, err := feed.New(manager, feed.Config{
		Symbol:     cfg.Feed.Symbol,
		Timeframe:  cfg.Feed.Timeframe,
		Backfill:   cfg.Feed.Backfill,
		PageLimit:  cfg.Feed.PageLimit,
		TailWindow: cfg.Feed.TailWindow,
	}, aux, sink)
	if err != nil {
		slog.Error("❌ Feed setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("✨ Venue gateway operational. Press Ctrl+C to exit.",
		slog.String("venue", cfg.Venue.Name),
		slog.Bool("paper", cfg.Trading.Paper))

	runPollLoop(ctx, cfg, barFeed, bkr, manager)

	slog.Info("👋 Shutting down gracefully...")
}

// runPollLoop drives the feed and drains both notification queues until the
// stream ends or the context is canceled. Backfill replay runs as fast as
// the ticker allows; live polls stay well inside one candle period.
func runPollLoop(ctx context.Context, cfg *infra.Config, barFeed *feed.Feed, bkr *broker.Broker, manager *conn.Manager) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			barFeed.Stop()
			barFeed.Poll(context.Background())
			return
		case <-tick.C:
		}

		// One poll per tick while live; ready bars drain back to back so
		// backfill replay is not throttled to the tick rate.
		for {
			res, bar := barFeed.Poll(ctx)
			if res == feed.EndOfStream {
				slog.Info("bar stream ended", slog.String("symbol", cfg.Feed.Symbol))
				return
			}
			if res == feed.NotYet {
				break
			}
			slog.Info("bar",
				slog.String("symbol", cfg.Feed.Symbol),
				slog.Time("ts", bar.Time()),
				slog.Float64("close", bar.Close))
			if barFeed.IsLive() {
				break
			}
		}

		if !cfg.Trading.Paper {
			bkr.SyncFills(ctx)
		}

		for {
			n, ok := manager.NextNotification()
			if !ok {
				break
			}
			slog.Info("notice", slog.String("kind", n.Kind.String()), slog.String("msg", n.Msg))
		}
		for {
			o, ok := bkr.Notification()
			if !ok {
				break
			}
			slog.Info("order update",
				slog.Int64("request_id", o.RequestID),
				slog.String("status", o.Status.String()))
		}
	}
}

func bitgetFactory(cfg *infra.Config) venue.Client {
	return bitget.NewClient(bitget.Config{
		BaseURL:    cfg.Venue.RestURL,
		AccessKey:  cfg.Venue.AccessKey,
		SecretKey:  cfg.Venue.SecretKey,
		Passphrase: cfg.Venue.Passphrase,
		Sandbox:    cfg.Venue.Sandbox,
		Timeout:    cfg.VenueTimeout(),
	})
}
