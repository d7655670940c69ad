package domain

import "time"

// Bar is one completed candle as consumed by the engine. Timestamps are Unix
// milliseconds of the bar's open. OpenInterest is always 0 for spot markets.
type Bar struct {
	TsUnixMilli  int64
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	OpenInterest float64
}

// Time returns the bar's open time.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.TsUnixMilli)
}
