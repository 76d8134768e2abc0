package sqlite

import (
	"context"
	"fmt"
	"log"
	"time"

	"alert-systemv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// RunCandles reads closed candles from candleCh and inserts them in batched
// transactions. Flushes every batchSize candles OR every flushDelay, whichever
// first. Blocks until ctx is cancelled or candleCh is closed.
func (s *Store) RunCandles(ctx context.Context, candleCh <-chan model.CandleUpdate) {
	batch := make([]model.CandleUpdate, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.InsertCandles(context.Background(), batch); err != nil {
			log.Printf("[sqlite] candle batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case c, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			if !c.Closed {
				continue
			}
			batch = append(batch, c)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertCandles inserts a batch of candles in a single transaction.
func (s *Store) InsertCandles(ctx context.Context, candles []model.CandleUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, c.Symbol, c.Interval, c.TS.UnixMilli(), c.Open, c.High, c.Low, c.Close)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ReadCandlesSince returns closed candles with ts > since, ordered by
// timestamp ascending for correct replay order.
func (s *Store) ReadCandlesSince(ctx context.Context, since time.Time) ([]model.CandleUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, interval, ts, open, high, low, close
		FROM candles
		WHERE ts > ?
		ORDER BY ts ASC, symbol ASC, interval ASC
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var out []model.CandleUpdate
	for rows.Next() {
		var (
			c  model.CandleUpdate
			ts int64
		)
		if err := rows.Scan(&c.Symbol, &c.Interval, &ts, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.UnixMilli(ts).UTC()
		c.Closed = true
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneCandles deletes candles older than before. Returns rows removed.
func (s *Store) PruneCandles(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candles WHERE ts < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite prune candles: %w", err)
	}
	return res.RowsAffected()
}
