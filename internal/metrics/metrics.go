// Package metrics exposes Prometheus instrumentation for the connectivity
// layer:
//   - venuegate_orders_total{mode,side}    – orders submitted (paper|live)
//   - venuegate_order_rejects_total{reason} – validation rejects
//   - venuegate_venue_errors_total{op}     – contained venue-call failures
//   - venuegate_feed_polls_total{result}   – feed polls by outcome
//   - venuegate_bars_emitted_total         – bars handed to the engine
//   - venuegate_equity                     – last computed portfolio value
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuegate_orders_total",
			Help: "Orders submitted",
		},
		[]string{"mode", "side"},
	)

	OrderRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuegate_order_rejects_total",
			Help: "Orders rejected before reaching the venue",
		},
		[]string{"reason"},
	)

	VenueErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuegate_venue_errors_total",
			Help: "Venue call failures contained at the connection boundary",
		},
		[]string{"op"},
	)

	FeedPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuegate_feed_polls_total",
			Help: "Feed polls by result",
		},
		[]string{"result"},
	)

	BarsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "venuegate_bars_emitted_total",
			Help: "Bars delivered to the engine",
		},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "venuegate_equity",
			Help: "Last computed portfolio value in the quote currency",
		},
	)
)

func init() {
	prometheus.MustRegister(Orders, OrderRejects, VenueErrors, FeedPolls, BarsEmitted, Equity)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
