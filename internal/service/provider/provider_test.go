package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SignalScan/internal/domain/models"
)

type fakeUpstream struct {
	connected bool
	err       error
	candles   []models.Candle
	fetches   atomic.Int32
}

func (f *fakeUpstream) GetCandles(_ context.Context, _ string, _ int, _ int) ([]models.Candle, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeUpstream) IsConnected() bool { return f.connected }

type generatedUpstream struct{ fakeUpstream }

func (*generatedUpstream) Synthetic() bool { return true }

type countingMetrics struct {
	fallbacks int
}

func (m *countingMetrics) RecordCycle(float64, int)              {}
func (m *countingMetrics) RecordTask(string)                     {}
func (m *countingMetrics) RecordSignal(string, models.Direction) {}
func (m *countingMetrics) RecordFallback(string)                 { m.fallbacks++ }
func (m *countingMetrics) RecordError(string)                    {}
func (m *countingMetrics) RecordLatency(string, float64)         {}
func (m *countingMetrics) SetInFlight(int)                       {}

func upstreamCandles() []models.Candle {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Candle{
		{Time: t0.Add(5 * time.Minute), Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 10},
		{Time: t0, Open: 1.0, High: 1.05, Low: 0.95, Close: 1.1, Volume: 12},
	}
}

func TestGetSeriesCachesWithinTTL(t *testing.T) {
	up := &fakeUpstream{connected: true, candles: upstreamCandles()}
	p := New(up, nil)
	now := time.Date(2025, 1, 1, 0, 10, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.l1.WithClock(func() time.Time { return now })

	first, err := p.GetSeries(context.Background(), "EURUSD", 5, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(29 * time.Second)
	second, _ := p.GetSeries(context.Background(), "EURUSD", 5, 100)

	if first != second {
		t.Fatalf("expected the cached series to be returned")
	}
	if n := up.fetches.Load(); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}

	now = now.Add(time.Second)
	if _, err := p.GetSeries(context.Background(), "EURUSD", 5, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := up.fetches.Load(); n != 2 {
		t.Fatalf("expected refetch after ttl, got %d fetches", n)
	}
}

func TestGetSeriesNormalizesOrder(t *testing.T) {
	up := &fakeUpstream{connected: true, candles: upstreamCandles()}
	s, _ := New(up, nil).GetSeries(context.Background(), "EURUSD", 5, 2)
	if s.Synthetic {
		t.Fatalf("real series marked synthetic")
	}
	if !s.Candles[0].Time.Before(s.Candles[1].Time) {
		t.Fatalf("candles not sorted by time")
	}
	if s.Candles[0].Close != 1.1 {
		t.Fatalf("unexpected first close %v", s.Candles[0].Close)
	}
}

func TestGetSeriesFallsBackWithoutCaching(t *testing.T) {
	m := &countingMetrics{}
	up := &fakeUpstream{connected: true, err: errors.New("socket closed")}
	p := New(up, nil, WithMetrics(m))

	a, err := p.GetSeries(context.Background(), "GBPUSD", 5, 100)
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if !a.Synthetic || a.Len() != 100 {
		t.Fatalf("expected 100 synthetic candles, got synthetic=%v len=%d", a.Synthetic, a.Len())
	}
	b, _ := p.GetSeries(context.Background(), "GBPUSD", 5, 100)
	if up.fetches.Load() != 2 {
		t.Fatalf("synthetic series should not be cached")
	}
	if m.fallbacks != 2 {
		t.Fatalf("expected 2 fallbacks recorded, got %d", m.fallbacks)
	}
	if a.Candles[99].Close != b.Candles[99].Close {
		t.Fatalf("synthetic walk is not deterministic")
	}
}

func TestGetSeriesDisconnectedSkipsFetch(t *testing.T) {
	up := &fakeUpstream{connected: false}
	s, err := New(up, nil).GetSeries(context.Background(), "USDJPY", 15, 50)
	if err != nil || !s.Synthetic {
		t.Fatalf("expected synthetic series, got %v %v", s, err)
	}
	if up.fetches.Load() != 0 {
		t.Fatalf("disconnected upstream must not be queried")
	}
}

func TestGetSeriesFallbackDisabled(t *testing.T) {
	p := New(nil, nil, WithSyntheticFallback(false))
	if _, err := p.GetSeries(context.Background(), "EURUSD", 5, 10); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGenerateSeriesShape(t *testing.T) {
	end := time.Date(2025, 1, 1, 12, 7, 0, 0, time.UTC)
	s := GenerateSeries("USDJPY", 5, 60, end)
	last, _ := s.Last()
	if !last.Time.Equal(time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last time %v", last.Time)
	}
	for i, c := range s.Candles {
		if c.Low > c.Close || c.Close > c.High {
			t.Fatalf("candle %d close outside range", i)
		}
		if c.Volume < 1000 || c.Volume > 1500 {
			t.Fatalf("candle %d volume %v", i, c.Volume)
		}
	}
	if s.Candles[0].Open < 140 || s.Candles[0].Open > 160 {
		t.Fatalf("walk did not start near base price: %v", s.Candles[0].Open)
	}
	if BasePrice("EURUSD-OTC") != 1.0850 || BasePrice("XAUUSD") != 1.0 {
		t.Fatalf("unexpected base prices")
	}
}

func TestGetSeriesFromGeneratedUpstreamIsMarkedAndNotCached(t *testing.T) {
	m := &countingMetrics{}
	up := &generatedUpstream{fakeUpstream{connected: true, candles: upstreamCandles()}}
	p := New(up, nil, WithMetrics(m))

	s, err := p.GetSeries(context.Background(), "EURUSD", 5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Synthetic {
		t.Fatalf("generated upstream series not marked synthetic")
	}
	if _, err := p.GetSeries(context.Background(), "EURUSD", 5, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := up.fetches.Load(); n != 2 {
		t.Fatalf("generated series should not be cached, got %d fetches", n)
	}
	if m.fallbacks != 2 {
		t.Fatalf("expected 2 fallbacks recorded, got %d", m.fallbacks)
	}
}

func TestGetSeriesCacheKeyIncludesCount(t *testing.T) {
	up := &fakeUpstream{connected: true, candles: upstreamCandles()}
	p := New(up, nil)

	if _, err := p.GetSeries(context.Background(), "EURUSD", 5, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.GetSeries(context.Background(), "EURUSD", 5, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := up.fetches.Load(); n != 2 {
		t.Fatalf("different counts must not share a cache entry, got %d fetches", n)
	}
	if _, err := p.GetSeries(context.Background(), "EURUSD", 5, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := up.fetches.Load(); n != 2 {
		t.Fatalf("expected a cache hit, got %d fetches", n)
	}
}
