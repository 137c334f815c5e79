package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalScan/internal/domain/models"
	pkgch "SignalScan/pkg/clickhouse"
	applogger "SignalScan/pkg/logger"
)

// CHCandleStore reads and writes candle history in ClickHouse.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{db: ch.DB(), table: ch.Table(pkgch.CandlesTable), l: l}
}

// LatestCandles returns up to n candles for symbol at timeframe (minutes),
// oldest first.
func (s *CHCandleStore) LatestCandles(ctx context.Context, symbol string, timeframe, n int) ([]models.Candle, error) {
	start := time.Now()
	q := `
        SELECT bucket, open, high, low, close, volume
        FROM ` + s.table + ` FINAL
        WHERE symbol = ? AND timeframe = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	fields := []applogger.Field{
		applogger.Symbol(symbol),
		applogger.Timeframe(timeframe),
		applogger.Int("limit", n),
	}
	rows, err := s.db.QueryContext(ctx, q, symbol, timeframe, n)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.l.Error("clickhouse latest_candles scan error", append(fields, applogger.Error(err))...)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse latest_candles rows error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("rows: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		append(fields, applogger.Int("rows", len(out)), applogger.Duration("duration_ms", time.Since(start)))...)
	return out, nil
}

// Symbols lists the distinct symbols with recorded history.
func (s *CHCandleStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM `+s.table+` ORDER BY symbol`)
	if err != nil {
		s.l.Error("clickhouse symbols query error", applogger.Error(err))
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// InsertCandles appends candles in one batch.
func (s *CHCandleStore) InsertCandles(ctx context.Context, symbol string, timeframe int, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+s.table+` (symbol, timeframe, bucket, open, high, low, close, volume)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, uint16(timeframe), c.Time.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			s.l.Error("clickhouse insert_candles exec error",
				applogger.Symbol(symbol), applogger.Timeframe(timeframe), applogger.Error(err))
			return fmt.Errorf("insert candle: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
