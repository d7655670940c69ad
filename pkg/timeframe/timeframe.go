// Package timeframe parses engine timeframe strings ("1m", "4h", "1d") used
// for candle cursor arithmetic.
package timeframe

import (
	"fmt"
	"strconv"
	"time"
)

// Parse converts a timeframe string into a duration.
// Supported units: m (minute), h (hour), d (day), w (week).
func Parse(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("timeframe too short: %q", tf)
	}

	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe multiplier: %q", tf)
	}

	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe unit: %q", tf)
	}
}

// Millis returns the timeframe length in milliseconds.
func Millis(tf string) (int64, error) {
	d, err := Parse(tf)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}
