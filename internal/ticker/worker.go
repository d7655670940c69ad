package ticker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"venuegate/internal/infra"
)

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type tickerMessage struct {
	Arg  subscribeArg `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		LastPr string `json:"lastPr"`
	} `json:"data"`
}

// Worker subscribes to the venue's public ticker channel and keeps the price
// cache current. It is optional: valuation falls back to the position's entry
// price when the worker is not running.
type Worker struct {
	base    *infra.WSWorker
	url     string
	symbols []string
	cache   *PriceCache
}

// NewWorker creates a ticker worker for the given symbols.
func NewWorker(wsURL string, symbols []string, cache *PriceCache) *Worker {
	w := &Worker{url: wsURL, symbols: symbols, cache: cache}
	w.base = infra.NewWSWorker(w)
	return w
}

// Start launches the websocket session.
func (w *Worker) Start(ctx context.Context) {
	w.base.Start(ctx)
}

// Stop tears it down.
func (w *Worker) Stop() {
	w.base.Stop()
}

func (w *Worker) ID() string  { return "ticker" }
func (w *Worker) URL() string { return w.url }

func (w *Worker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	args := make([]subscribeArg, 0, len(w.symbols))
	for _, s := range w.symbols {
		args = append(args, subscribeArg{InstType: "SPOT", Channel: "ticker", InstID: s})
	}
	b, err := json.Marshal(subscribeRequest{Op: "subscribe", Args: args})
	if err != nil {
		return err
	}
	return w.base.Write(websocket.TextMessage, b)
}

func (w *Worker) OnMessage(ctx context.Context, msg []byte) {
	if string(msg) == "pong" {
		return
	}

	var m tickerMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return
	}
	if m.Arg.Channel != "ticker" {
		return
	}

	for _, d := range m.Data {
		price, err := decimal.NewFromString(d.LastPr)
		if err != nil {
			slog.Debug("ticker price unparsable", slog.String("instId", d.InstID), slog.String("lastPr", d.LastPr))
			continue
		}
		f, _ := price.Float64()
		w.cache.Set(d.InstID, f)
	}
}

func (w *Worker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return w.base.Write(websocket.TextMessage, []byte("ping"))
}
