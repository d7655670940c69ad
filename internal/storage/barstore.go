// Package storage persists fetched bars in SQLite so restarts can replay
// recent history without re-downloading it from the venue.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"venuegate/internal/domain"
)

// BarStore is a SQLite-backed OHLCV cache keyed by (symbol, timeframe, ts).
type BarStore struct {
	db *sql.DB
}

// NewBarStore opens (or creates) the cache at path with WAL mode enabled.
// Use ":memory:" for tests.
func NewBarStore(path string) (*BarStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT NOT NULL,
			timeframe  TEXT NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create bars table: %w", err)
	}

	return &BarStore{db: db}, nil
}

// SaveBars upserts a batch of bars in one transaction. Re-saving an existing
// timestamp overwrites it, so a re-fetched candle (e.g. a revised close)
// converges instead of duplicating.
func (s *BarStore) SaveBars(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, ts) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, b.TsUnixMilli,
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upsert bar %d: %w", b.TsUnixMilli, err)
		}
	}
	return tx.Commit()
}

// LoadRange returns bars with from <= ts <= to, oldest first. A to of 0
// means "no upper bound".
func (s *BarStore) LoadRange(ctx context.Context, symbol, timeframe string, from, to int64) ([]domain.Bar, error) {
	query := `SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND timeframe = ? AND ts >= ?`
	args := []any{symbol, timeframe, from}
	if to > 0 {
		query += " AND ts <= ?"
		args = append(args, to)
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.TsUnixMilli, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LastTs returns the newest cached timestamp, 0 when the cache is empty.
func (s *BarStore) LastTs(ctx context.Context, symbol, timeframe string) (int64, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(ts) FROM bars WHERE symbol = ? AND timeframe = ?",
		symbol, timeframe).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last ts: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return last.Int64, nil
}

// Close closes the database.
func (s *BarStore) Close() error {
	return s.db.Close()
}
