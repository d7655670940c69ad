package storage

import (
	"context"

	"venuegate/internal/domain"
)

// Source replays cached bars oldest-first. It satisfies the feed's auxiliary
// backfill source contract, so a warm cache serves history before the venue
// is asked for anything.
type Source struct {
	bars []domain.Bar
	pos  int
}

// NewSource loads the requested range eagerly and returns a replay cursor
// over it.
func (s *BarStore) NewSource(ctx context.Context, symbol, timeframe string, from, to int64) (*Source, error) {
	bars, err := s.LoadRange(ctx, symbol, timeframe, from, to)
	if err != nil {
		return nil, err
	}
	return &Source{bars: bars}, nil
}

// Next returns the next bar, or false when the source is exhausted.
func (s *Source) Next() (domain.Bar, bool) {
	if s.pos >= len(s.bars) {
		return domain.Bar{}, false
	}
	b := s.bars[s.pos]
	s.pos++
	return b, true
}

// Remaining reports how many bars are left to replay.
func (s *Source) Remaining() int {
	return len(s.bars) - s.pos
}
