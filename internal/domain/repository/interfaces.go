package repository

import (
	"context"

	"SignalScan/internal/domain/models"
)

// MarketData is the upstream market-data connection.
type MarketData interface {
	GetCandles(ctx context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error)
	IsConnected() bool
}

// SyntheticSource is implemented by upstreams whose candles are generated
// rather than observed.
type SyntheticSource interface {
	Synthetic() bool
}

// AssetLister lists instruments available upstream.
type AssetLister interface {
	Assets(ctx context.Context) ([]models.Asset, error)
}

// SeriesProvider supplies candle series, possibly cached or synthetic.
type SeriesProvider interface {
	GetSeries(ctx context.Context, symbol string, timeframe, count int) (*models.Series, error)
}

// SignalSink receives every emitted signal.
type SignalSink interface {
	Publish(ctx context.Context, s *models.Signal) error
	Close() error
}

// SignalStore persists emitted signals for later inspection.
type SignalStore interface {
	SignalSink
	Recent(ctx context.Context, symbol string, limit int) ([]models.Signal, error)
}

type Metrics interface {
	RecordCycle(seconds float64, tasks int)
	RecordTask(outcome string)
	RecordSignal(symbol string, direction models.Direction)
	RecordFallback(symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetInFlight(n int)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordCycle(float64, int)              {}
func (NopMetrics) RecordTask(string)                     {}
func (NopMetrics) RecordSignal(string, models.Direction) {}
func (NopMetrics) RecordFallback(string)                 {}
func (NopMetrics) RecordError(string)                    {}
func (NopMetrics) RecordLatency(string, float64)         {}
func (NopMetrics) SetInFlight(int)                       {}
