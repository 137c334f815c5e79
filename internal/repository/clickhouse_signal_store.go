package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	pkgch "SignalScan/pkg/clickhouse"
	applogger "SignalScan/pkg/logger"
)

// CHSignalStore persists emitted signals in ClickHouse.
type CHSignalStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

func NewCHSignalStore(ch *pkgch.Client, l *applogger.Logger) *CHSignalStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSignalStore{db: ch.DB(), table: ch.Table(pkgch.SignalsTable), l: l}
}

func (s *CHSignalStore) Publish(ctx context.Context, sig *models.Signal) error {
	start := time.Now()
	var synthetic uint8
	if sig.SyntheticInput {
		synthetic = 1
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO `+s.table+`
            (id, generated_at, symbol, timeframe, direction, pattern, entry_price,
             entry_time, expiry_time, confidence, confluences, synthetic)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.GeneratedAt.UTC(), sig.Symbol, uint16(sig.Timeframe), string(sig.Direction),
		string(sig.Pattern.Type), sig.EntryPrice, sig.EntryTime.UTC(), sig.ExpiryTime.UTC(),
		sig.Confidence, sig.Confluences, synthetic,
	)
	if err != nil {
		s.l.Error("clickhouse insert_signal error",
			applogger.Symbol(sig.Symbol),
			applogger.String("id", sig.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("insert signal: %w", err)
	}
	s.l.Debug("clickhouse insert_signal ok",
		applogger.Symbol(sig.Symbol),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Recent returns the newest signals, optionally restricted to one symbol.
func (s *CHSignalStore) Recent(ctx context.Context, symbol string, limit int) ([]models.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
        SELECT id, generated_at, symbol, timeframe, direction, pattern, entry_price,
               entry_time, expiry_time, confidence, confluences, synthetic
        FROM ` + s.table
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse recent_signals query error", applogger.Symbol(symbol), applogger.Error(err))
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0, limit)
	for rows.Next() {
		var (
			sig       models.Signal
			tf        uint16
			dir, pat  string
			synthetic uint8
		)
		if err := rows.Scan(&sig.ID, &sig.GeneratedAt, &sig.Symbol, &tf, &dir, &pat, &sig.EntryPrice,
			&sig.EntryTime, &sig.ExpiryTime, &sig.Confidence, &sig.Confluences, &synthetic); err != nil {
			s.l.Error("clickhouse recent_signals scan error", applogger.Symbol(symbol), applogger.Error(err))
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Timeframe = int(tf)
		sig.Direction = models.Direction(dir)
		sig.Pattern = models.Pattern{Type: models.PatternType(pat)}
		sig.ExpiryMinutes = int(sig.ExpiryTime.Sub(sig.EntryTime).Minutes())
		sig.SyntheticInput = synthetic == 1
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse recent_signals rows error", applogger.Symbol(symbol), applogger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Close is a no-op; the ClickHouse client is owned by the caller.
func (s *CHSignalStore) Close() error { return nil }
