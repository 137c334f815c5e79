package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	applogger "SignalScan/pkg/logger"
)

var (
	ErrPipelineClosed = errors.New("signal pipeline closed")
	ErrBufferFull     = errors.New("signal pipeline buffer full")
)

// SignalPipeline sits between the scanner and the signal sinks (Kafka,
// ClickHouse, InfluxDB). Publish never blocks on a sink: deliveries are
// buffered and retried with backoff by a single background worker, and a
// signal already seen for the same key and entry time is dropped.
type SignalPipeline struct {
	sinks       []domrepo.SignalSink
	metrics     domrepo.Metrics
	log         *applogger.Logger
	bufSize     int
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
	sinkTimeout time.Duration

	bufCh   chan *delivery
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
	closed  bool
	seen    map[string]time.Time
}

type delivery struct {
	sig     *models.Signal
	sink    int
	attempt int
}

type PipelineOption func(*SignalPipeline)

// WithBufferSize sets how many pending deliveries are held.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxAttempts bounds delivery attempts per sink before a signal is dropped.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry backoff range.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *SignalPipeline) {
		p.backoffMin = min
		p.backoffMax = max
	}
}

// WithSinkTimeout bounds a single sink call.
func WithSinkTimeout(d time.Duration) PipelineOption {
	return func(p *SignalPipeline) {
		if d > 0 {
			p.sinkTimeout = d
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *SignalPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewSignalPipeline creates a pipeline fanning out to sinks.
func NewSignalPipeline(sinks []domrepo.SignalSink, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &SignalPipeline{
		sinks:       sinks,
		metrics:     metrics,
		log:         applogger.Nop(),
		bufSize:     1000,
		maxAttempts: 5,
		backoffMin:  50 * time.Millisecond,
		backoffMax:  2 * time.Second,
		sinkTimeout: 5 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		seen:        make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *delivery, p.bufSize)
	return p
}

// Start launches the delivery worker.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Publish queues s for every sink. It returns ErrBufferFull when at least
// one delivery could not be queued.
func (p *SignalPipeline) Publish(_ context.Context, s *models.Signal) error {
	if err := validateSignal(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	key := s.Key()
	if last, ok := p.seen[key]; ok && last.Equal(s.EntryTime) {
		p.mu.Unlock()
		p.metrics.RecordError("pipeline_duplicate")
		return nil
	}
	p.seen[key] = s.EntryTime
	p.mu.Unlock()

	var dropped int
	for i := range p.sinks {
		select {
		case p.bufCh <- &delivery{sig: s, sink: i}:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("%w: %d of %d sinks", ErrBufferFull, dropped, len(p.sinks))
	}
	return nil
}

// Pending returns the number of queued deliveries.
func (p *SignalPipeline) Pending() int { return len(p.bufCh) }

// Close stops accepting signals, makes one last attempt at everything
// still queued and closes the sinks.
func (p *SignalPipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	close(p.stopCh)
	if started {
		<-p.doneCh
	} else {
		p.drain(context.Background())
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *SignalPipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	b := &backoff.Backoff{Min: p.backoffMin, Max: p.backoffMax, Factor: 2, Jitter: true}
	for {
		select {
		case <-p.stopCh:
			p.drain(ctx)
			return
		case d := <-p.bufCh:
			if err := p.deliver(ctx, d); err == nil {
				b.Reset()
				continue
			}
			d.attempt++
			if d.attempt >= p.maxAttempts {
				p.drop(d)
				continue
			}
			select {
			case <-time.After(b.Duration()):
			case <-p.stopCh:
			}
			select {
			case p.bufCh <- d:
			default:
				p.drop(d)
			}
		}
	}
}

// drain gives each queued delivery one final attempt.
func (p *SignalPipeline) drain(ctx context.Context) {
	for {
		select {
		case d := <-p.bufCh:
			if err := p.deliver(ctx, d); err != nil {
				p.drop(d)
			}
		default:
			return
		}
	}
}

func (p *SignalPipeline) deliver(ctx context.Context, d *delivery) error {
	start := time.Now()
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	sctx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()
	if err := p.sinks[d.sink].Publish(sctx, d.sig); err != nil {
		p.metrics.RecordError("pipeline_sink")
		p.log.Warn("signal delivery failed",
			applogger.String("sink", fmt.Sprintf("%T", p.sinks[d.sink])),
			applogger.String("key", d.sig.Key()),
			applogger.Int("attempt", d.attempt+1),
			applogger.Error(err),
		)
		return err
	}
	p.metrics.RecordLatency("pipeline_deliver", time.Since(start).Seconds())
	return nil
}

func (p *SignalPipeline) drop(d *delivery) {
	p.metrics.RecordError("pipeline_drop")
	p.log.Error("signal dropped",
		applogger.String("sink", fmt.Sprintf("%T", p.sinks[d.sink])),
		applogger.String("key", d.sig.Key()),
		applogger.Int("attempts", d.attempt),
	)
}

func validateSignal(s *models.Signal) error {
	if s == nil {
		return fmt.Errorf("signal nil")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if s.Direction == "" {
		return fmt.Errorf("direction empty")
	}
	if s.EntryPrice <= 0 {
		return fmt.Errorf("entry price invalid")
	}
	return nil
}
