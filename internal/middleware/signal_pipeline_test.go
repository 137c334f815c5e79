package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
)

type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []*models.Signal
	closed   bool
}

func (f *fakeSink) Publish(_ context.Context, s *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("sink unavailable")
	}
	f.got = append(f.got, s)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) snapshot() (calls, delivered int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, len(f.got), f.closed
}

type countingMetrics struct {
	domrepo.NopMetrics
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func signalAt(symbol string, entry time.Time) *models.Signal {
	return &models.Signal{
		ID:         symbol + entry.Format("1504"),
		Symbol:     symbol,
		Timeframe:  5,
		Direction:  models.DirectionCall,
		EntryPrice: 1.1,
		EntryTime:  entry,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSignalPipelineFansOutToEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	p := NewSignalPipeline([]domrepo.SignalSink{a, b}, nil)
	p.Start(context.Background())

	entry := time.Date(2026, 1, 5, 9, 31, 0, 0, time.UTC)
	if err := p.Publish(context.Background(), signalAt("EURUSD", entry)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, func() bool {
		_, na, _ := a.snapshot()
		_, nb, _ := b.snapshot()
		return na == 1 && nb == 1
	})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, closed := a.snapshot(); !closed {
		t.Fatalf("sink not closed")
	}
}

func TestSignalPipelineDropsDuplicateEntry(t *testing.T) {
	sink := &fakeSink{}
	m := &countingMetrics{}
	p := NewSignalPipeline([]domrepo.SignalSink{sink}, m)

	entry := time.Date(2026, 1, 5, 9, 31, 0, 0, time.UTC)
	_ = p.Publish(context.Background(), signalAt("EURUSD", entry))
	_ = p.Publish(context.Background(), signalAt("EURUSD", entry))
	_ = p.Publish(context.Background(), signalAt("EURUSD", entry.Add(time.Minute)))

	if p.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", p.Pending())
	}
	if m.count("pipeline_duplicate") != 1 {
		t.Fatalf("duplicates = %d, want 1", m.count("pipeline_duplicate"))
	}
	// not started: Close drains inline
	_ = p.Close()
	if _, n, _ := sink.snapshot(); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
}

func TestSignalPipelineRetriesWithBackoff(t *testing.T) {
	sink := &fakeSink{failures: 2}
	p := NewSignalPipeline([]domrepo.SignalSink{sink}, nil,
		WithBackoff(time.Millisecond, 5*time.Millisecond), WithMaxAttempts(5))
	p.Start(context.Background())
	defer p.Close()

	_ = p.Publish(context.Background(), signalAt("GBPUSD", time.Now()))
	waitFor(t, func() bool {
		_, n, _ := sink.snapshot()
		return n == 1
	})
	if calls, _, _ := sink.snapshot(); calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestSignalPipelineDropsAfterMaxAttempts(t *testing.T) {
	sink := &fakeSink{failures: 100}
	m := &countingMetrics{}
	p := NewSignalPipeline([]domrepo.SignalSink{sink}, m,
		WithBackoff(time.Millisecond, 2*time.Millisecond), WithMaxAttempts(3))
	p.Start(context.Background())

	_ = p.Publish(context.Background(), signalAt("USDJPY", time.Now()))
	waitFor(t, func() bool { return m.count("pipeline_drop") == 1 })
	_ = p.Close()

	if calls, n, _ := sink.snapshot(); calls != 3 || n != 0 {
		t.Fatalf("calls = %d delivered = %d, want 3 and 0", calls, n)
	}
}

func TestSignalPipelineBufferFullAndClosed(t *testing.T) {
	sink := &fakeSink{}
	p := NewSignalPipeline([]domrepo.SignalSink{sink}, nil, WithBufferSize(1))

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if err := p.Publish(context.Background(), signalAt("EURUSD", base)); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := p.Publish(context.Background(), signalAt("GBPUSD", base)); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("want ErrBufferFull, got %v", err)
	}
	_ = p.Close()
	if err := p.Publish(context.Background(), signalAt("AUDUSD", base)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("want ErrPipelineClosed, got %v", err)
	}
	if err := p.Publish(context.Background(), &models.Signal{}); err == nil {
		t.Fatalf("invalid signal accepted")
	}
}
