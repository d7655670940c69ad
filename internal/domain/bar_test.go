package domain

import (
	"testing"
	"time"
)

func TestBar_Time(t *testing.T) {
	tests := []struct {
		name string
		ts   int64
		want time.Time
	}{
		{"epoch", 0, time.UnixMilli(0)},
		{"one minute in", 60_000, time.Unix(60, 0)},
		{"millisecond precision", 1_700_000_000_123, time.UnixMilli(1_700_000_000_123)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bar{TsUnixMilli: tt.ts}
			if got := b.Time(); !got.Equal(tt.want) {
				t.Errorf("Time() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBar_SpotHasNoOpenInterest(t *testing.T) {
	b := Bar{TsUnixMilli: 60_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	if b.OpenInterest != 0 {
		t.Errorf("OpenInterest = %v, want 0 for spot bars", b.OpenInterest)
	}
}
