// Package bitget implements the venue.Client contract against the Bitget V2
// spot REST API.
package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"venuegate/internal/venue"
)

const (
	mainnetURL = "https://api.bitget.com"

	pathSymbols     = "/api/v2/spot/public/symbols"
	pathCandles     = "/api/v2/spot/market/candles"
	pathAssets      = "/api/v2/spot/account/assets"
	pathPlaceOrder  = "/api/v2/spot/trade/place-order"
	pathCancelOrder = "/api/v2/spot/trade/cancel-order"
	pathOrderInfo   = "/api/v2/spot/trade/orderInfo"
)

// Client is a Bitget V2 spot REST client.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
	sandbox bool
}

// Config holds the construction parameters for a Client.
type Config struct {
	BaseURL    string // empty means mainnet
	AccessKey  string
	SecretKey  string
	Passphrase string
	Sandbox    bool // demo-trading keys; same endpoint, flagged header
	Timeout    time.Duration
}

// NewClient creates a Bitget client. Timeout defaults to 10s.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = mainnetURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		signer:  NewSigner(cfg.AccessKey, cfg.SecretKey, cfg.Passphrase),
		http:    &http.Client{Timeout: timeout},
		sandbox: cfg.Sandbox,
	}
}

// Close wipes the credential material.
func (c *Client) Close() {
	c.signer.Wipe()
}

// Probe checks connectivity with an unauthenticated symbols load.
func (c *Client) Probe(ctx context.Context) error {
	var resp symbolsResponse
	if err := c.get(ctx, pathSymbols, nil, false, &resp); err != nil {
		return err
	}
	if len(resp.Data) == 0 {
		return fmt.Errorf("bitget: symbols probe returned no markets")
	}
	return nil
}

// FetchBalances returns all non-zero spot balances.
func (c *Client) FetchBalances(ctx context.Context) ([]venue.Balance, error) {
	var resp assetsResponse
	if err := c.get(ctx, pathAssets, nil, true, &resp); err != nil {
		return nil, err
	}

	out := make([]venue.Balance, 0, len(resp.Data))
	for _, a := range resp.Data {
		free := parseFloat(a.Available)
		frozen := parseFloat(a.Frozen) + parseFloat(a.Locked)
		out = append(out, venue.Balance{
			Currency: a.Coin,
			Free:     free,
			Total:    free + frozen,
		})
	}
	return out, nil
}

// CreateOrder places a spot order and returns the venue's view of it.
func (c *Client) CreateOrder(ctx context.Context, spec venue.OrderSpec) (*venue.VenueOrder, error) {
	req := placeOrderRequest{
		Symbol:    spec.Symbol,
		Side:      strings.ToLower(spec.Side),
		OrderType: strings.ToLower(spec.Type),
		Force:     "gtc",
		Size:      formatFloat(spec.Qty),
		ClientOid: spec.ClientRef,
	}
	if req.OrderType == "limit" {
		req.Price = formatFloat(spec.Price)
	}

	var resp placeOrderResponse
	if err := c.post(ctx, pathPlaceOrder, req, &resp); err != nil {
		return nil, err
	}

	return &venue.VenueOrder{
		ID:        resp.Data.OrderID,
		ClientRef: resp.Data.ClientOid,
		Symbol:    spec.Symbol,
		Side:      spec.Side,
		Type:      spec.Type,
		Status:    "live",
		Qty:       spec.Qty,
		Price:     spec.Price,
	}, nil
}

// CancelOrder cancels by venue order id.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) error {
	var resp placeOrderResponse
	return c.post(ctx, pathCancelOrder, cancelOrderRequest{Symbol: symbol, OrderID: id}, &resp)
}

// FetchOrder loads the venue's current view of one order.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*venue.VenueOrder, error) {
	q := url.Values{}
	q.Set("orderId", id)

	var resp orderInfoResponse
	if err := c.get(ctx, pathOrderInfo, q, true, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("bitget: order %s not found", id)
	}

	d := resp.Data[0]
	return &venue.VenueOrder{
		ID:        d.OrderID,
		ClientRef: d.ClientOid,
		Symbol:    d.Symbol,
		Side:      strings.ToUpper(d.Side),
		Type:      strings.ToUpper(d.OrderType),
		Status:    d.Status,
		Qty:       parseFloat(d.Size),
		Price:     parseFloat(d.Price),
		Filled:    parseFloat(d.BaseVol),
		AvgPrice:  parseFloat(d.PriceAvg),
	}, nil
}

// FetchOHLCV returns candles oldest-first. since <= 0 asks for the most
// recent window.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]venue.Candle, error) {
	gran, err := granularity(timeframe)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("granularity", gran)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if since > 0 {
		q.Set("startTime", strconv.FormatInt(since, 10))
	}

	var resp candlesResponse
	if err := c.get(ctx, pathCandles, q, false, &resp); err != nil {
		return nil, err
	}

	candles := make([]venue.Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			slog.Warn("bitget: skipping candle with bad timestamp", slog.String("ts", row[0]))
			continue
		}
		candles = append(candles, venue.Candle{
			TsUnixMilli: ts,
			Open:        parseFloat(row[1]),
			High:        parseFloat(row[2]),
			Low:         parseFloat(row[3]),
			Close:       parseFloat(row[4]),
			Volume:      parseFloat(row[5]),
		})
	}

	// Bitget returns ascending rows already; keep the guarantee explicit.
	for i := 1; i < len(candles); i++ {
		if candles[i].TsUnixMilli < candles[i-1].TsUnixMilli {
			sortCandles(candles)
			break
		}
	}
	return candles, nil
}

// MarketMetadata loads one market's contract details.
func (c *Client) MarketMetadata(ctx context.Context, symbol string) (*venue.MarketMeta, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var resp symbolsResponse
	if err := c.get(ctx, pathSymbols, q, false, &resp); err != nil {
		return nil, err
	}
	for _, s := range resp.Data {
		if s.Symbol != symbol {
			continue
		}
		pricePrec, _ := strconv.Atoi(s.PricePrecision)
		qtyPrec, _ := strconv.Atoi(s.QtyPrecision)
		return &venue.MarketMeta{
			Symbol:         s.Symbol,
			Base:           s.BaseCoin,
			Quote:          s.QuoteCoin,
			PricePrecision: pricePrec,
			QtyPrecision:   qtyPrec,
			MinQty:         parseFloat(s.MinTradeAmount),
			MinNotional:    parseFloat(s.MinTradeUSDT),
		}, nil
	}
	return nil, fmt.Errorf("bitget: unknown symbol %q", symbol)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, signed bool, out interface{ errCheck() error }) error {
	full := path
	if len(q) > 0 {
		full = path + "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+full, nil)
	if err != nil {
		return err
	}
	if signed {
		c.applyHeaders(req, c.signer.Headers(http.MethodGet, full, ""))
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out interface{ errCheck() error }) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.applyHeaders(req, c.signer.Headers(http.MethodPost, path, string(raw)))
	return c.do(req, out)
}

func (c *Client) applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.sandbox {
		req.Header.Set("paptrading", "1")
	}
}

func (c *Client) do(req *http.Request, out interface{ errCheck() error }) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bitget: status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bitget: decode response: %w", err)
	}
	return out.errCheck()
}

// errCheck lets the generic request path reject API-level errors.
func (e envelope) errCheck() error {
	if e.Code != "" && e.Code != "00000" {
		return fmt.Errorf("bitget: api error %s: %s", e.Code, e.Msg)
	}
	return nil
}

// granularity maps engine timeframes to Bitget candle granularities.
func granularity(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "1min", nil
	case "5m":
		return "5min", nil
	case "15m":
		return "15min", nil
	case "30m":
		return "30min", nil
	case "1h":
		return "1h", nil
	case "4h":
		return "4h", nil
	case "1d":
		return "1day", nil
	default:
		return "", fmt.Errorf("bitget: unsupported timeframe %q", timeframe)
	}
}

// parseFloat parses the venue's decimal strings without accumulating binary
// float error mid-parse. Bad input reads as 0, matching the
// zero-value convention at the connection boundary.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func formatFloat(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func sortCandles(c []venue.Candle) {
	sort.Slice(c, func(i, j int) bool { return c[i].TsUnixMilli < c[j].TsUnixMilli })
}
