package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/optionflow/coretrader/internal/broker"
)

// PutBars replaces the full cached bar set for (symbol, barSize), stamped
// with the current fetch time (spec §4.2 historical-bar cache put).
func (s *Store) PutBars(ctx context.Context, symbol, barSize string, bars []broker.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.PutBars: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM historical_bars WHERE symbol = ? AND bar_size = ?`, symbol, barSize,
	); err != nil {
		return fmt.Errorf("store.PutBars: clear existing: %w", err)
	}

	fetchedAt := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_bars (symbol, bar_size, timestamp, open, high, low, close, volume, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store.PutBars: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, barSize, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, fetchedAt); err != nil {
			return fmt.Errorf("store.PutBars: insert: %w", err)
		}
	}

	return tx.Commit()
}

// GetBars returns the cached bars for (symbol, barSize) iff the newest
// fetch is within maxAge of now; otherwise ok is false (spec §4.2
// historical-bar cache get).
func (s *Store) GetBars(ctx context.Context, symbol, barSize string, maxAge time.Duration, now time.Time) ([]broker.Bar, bool, error) {
	var fetchedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(fetched_at) FROM historical_bars WHERE symbol = ? AND bar_size = ?`, symbol, barSize,
	).Scan(&fetchedAt)
	if err != nil || !fetchedAt.Valid {
		return nil, false, nil
	}
	if now.Sub(fetchedAt.Time) > maxAge {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM historical_bars
		WHERE symbol = ? AND bar_size = ? ORDER BY timestamp ASC`, symbol, barSize)
	if err != nil {
		return nil, false, fmt.Errorf("store.GetBars: %w", err)
	}
	defer rows.Close()

	var out []broker.Bar
	for rows.Next() {
		var b broker.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, false, fmt.Errorf("store.GetBars: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}
