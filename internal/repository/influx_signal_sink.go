package repository

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	applogger "SignalScan/pkg/logger"
)

// InfluxConfig locates the bucket emitted signals are written to.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSignalSink writes one "signals" point per emitted signal so the
// signal stream can be charted next to market data.
type InfluxSignalSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	l      *applogger.Logger
}

var _ domrepo.SignalSink = (*InfluxSignalSink)(nil)

// NewInfluxSignalSink connects and checks server health.
func NewInfluxSignalSink(ctx context.Context, cfg InfluxConfig, l *applogger.Logger) (*InfluxSignalSink, error) {
	if l == nil {
		l = applogger.Nop()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	health, err := client.Health(hctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx health: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influx health: status %s", health.Status)
	}
	return &InfluxSignalSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		l:      l,
	}, nil
}

func (s *InfluxSignalSink) Publish(ctx context.Context, sig *models.Signal) error {
	if err := s.writer.WritePoint(ctx, signalPoint(sig)); err != nil {
		s.l.Error("influx write signal error", applogger.Symbol(sig.Symbol), applogger.Error(err))
		return fmt.Errorf("write signal point: %w", err)
	}
	return nil
}

func (s *InfluxSignalSink) Close() error {
	s.client.Close()
	return nil
}

func signalPoint(sig *models.Signal) *write.Point {
	return influxdb2.NewPoint("signals",
		map[string]string{
			"symbol":    sig.Symbol,
			"timeframe": fmt.Sprintf("%dM", sig.Timeframe),
			"direction": string(sig.Direction),
			"pattern":   string(sig.Pattern.Type),
		},
		map[string]interface{}{
			"entry_price": sig.EntryPrice,
			"confidence":  sig.Confidence,
			"confluences": len(sig.Confluences),
			"expiry_min":  sig.ExpiryMinutes,
			"synthetic":   sig.SyntheticInput,
		},
		sig.GeneratedAt,
	)
}
