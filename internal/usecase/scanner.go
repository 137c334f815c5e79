package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	applogger "SignalScan/pkg/logger"
)

// SignalEvaluator decides whether a series warrants a signal.
type SignalEvaluator interface {
	Evaluate(symbol string, series *models.Series, cfg models.ScanConfig) (*models.Signal, Outcome)
}

// ScannerConfig holds the scan loop limits.
type ScannerConfig struct {
	Interval       time.Duration
	TaskTimeout    time.Duration
	MaxConcurrency int
	CandleCount    int
	MinCandles     int
}

type ScannerOption func(*ScannerConfig)

// WithInterval sets the pause between two sweeps.
func WithInterval(d time.Duration) ScannerOption {
	return func(c *ScannerConfig) {
		if d > 0 {
			c.Interval = d
		}
	}
}

// WithTaskTimeout bounds one (symbol, timeframe) evaluation.
func WithTaskTimeout(d time.Duration) ScannerOption {
	return func(c *ScannerConfig) {
		if d > 0 {
			c.TaskTimeout = d
		}
	}
}

// WithMaxConcurrency sizes the admission gate.
func WithMaxConcurrency(n int) ScannerOption {
	return func(c *ScannerConfig) {
		if n > 0 {
			c.MaxConcurrency = n
		}
	}
}

// WithCandleCount sets how many candles each task requests.
func WithCandleCount(n int) ScannerOption {
	return func(c *ScannerConfig) {
		if n > 0 {
			c.CandleCount = n
		}
	}
}

// Task outcomes recorded in addition to the evaluator's.
const (
	taskTimeout      = "timeout"
	taskFetchError   = "fetch_error"
	taskTooFewCandle = "too_few_candles"
	taskCancelled    = "cancelled"
)

// Scanner repeatedly evaluates every (symbol, timeframe) pair and keeps the
// latest signal per pair. One Scanner owns its run state exclusively.
type Scanner struct {
	cfg      ScannerConfig
	series   domrepo.SeriesProvider
	upstream domrepo.MarketData
	assets   domrepo.AssetLister
	engine   SignalEvaluator
	sink     domrepo.SignalSink
	metrics  domrepo.Metrics
	log      *applogger.Logger

	sem      *semaphore.Weighted
	inFlight atomic.Int64

	mu        sync.RWMutex
	running   bool
	run       uint64
	scanCfg   *models.ScanConfig
	latest    map[string]*models.Signal
	generated int
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScanner wires a scanner. assets and sink may be nil.
func NewScanner(series domrepo.SeriesProvider, upstream domrepo.MarketData, assets domrepo.AssetLister,
	engine SignalEvaluator, sink domrepo.SignalSink, metrics domrepo.Metrics, log *applogger.Logger,
	opts ...ScannerOption) *Scanner {
	cfg := ScannerConfig{
		Interval:       30 * time.Second,
		TaskTimeout:    10 * time.Second,
		MaxConcurrency: 5,
		CandleCount:    100,
		MinCandles:     5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Scanner{
		cfg:      cfg,
		series:   series,
		upstream: upstream,
		assets:   assets,
		engine:   engine,
		sink:     sink,
		metrics:  metrics,
		log:      log,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		latest:   make(map[string]*models.Signal),
	}
}

// Start validates cfg, checks the upstream connection and launches the scan
// loop. The loop outlives ctx only until Stop; cancel ctx to stop it too.
func (s *Scanner) Start(ctx context.Context, cfg models.ScanConfig) error {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return models.ErrAlreadyRunning
	}
	if s.upstream == nil || !s.upstream.IsConnected() {
		return models.ErrConnectionLost
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.run++
	s.scanCfg = &cfg
	s.lastErr = nil
	s.latest = make(map[string]*models.Signal)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info("scanner started",
		applogger.Strings("symbols", cfg.Symbols),
		applogger.Any("timeframes", cfg.Timeframes),
		applogger.String("sensitivity", string(cfg.Sensitivity)),
	)
	go s.loop(runCtx, s.run, cfg, s.done)
	return nil
}

// Stop ends the run, waits for in-flight tasks to drain and clears the
// latest-signal table.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return models.ErrNotRunning
	}
	done := s.halt(nil)
	s.mu.Unlock()

	<-done
	s.log.Info("scanner stopped")
	return nil
}

// halt must be called with s.mu held.
func (s *Scanner) halt(cause error) chan struct{} {
	s.running = false
	s.lastErr = cause
	s.latest = make(map[string]*models.Signal)
	if s.cancel != nil {
		s.cancel()
	}
	return s.done
}

func (s *Scanner) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LatestSignals returns the current signal per pair, strongest first.
func (s *Scanner) LatestSignals() []models.Signal {
	s.mu.RLock()
	out := make([]models.Signal, 0, len(s.latest))
	for _, sig := range s.latest {
		out = append(out, *sig)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

func (s *Scanner) Status() models.ScannerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.latest))
	for k := range s.latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	st := models.ScannerStatus{
		Running:     s.running,
		ActiveKeys:  keys,
		SignalCount: s.generated,
		LatestCount: len(s.latest),
	}
	if s.running && s.scanCfg != nil {
		c := *s.scanCfg
		st.Config = &c
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scanner) loop(ctx context.Context, run uint64, cfg models.ScanConfig, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		if !s.upstream.IsConnected() {
			s.log.Error("scanner: upstream connection lost, stopping")
			s.metrics.RecordError("connection_lost")
			s.mu.Lock()
			if s.running && s.run == run {
				s.halt(models.ErrConnectionLost)
			}
			s.mu.Unlock()
			return
		}

		s.cycle(ctx, run, cfg)

		if !s.pause(ctx) {
			return
		}
	}
}

// pause waits one scan interval; false means ctx ended first.
func (s *Scanner) pause(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scanner) cycle(ctx context.Context, run uint64, cfg models.ScanConfig) {
	start := time.Now()
	pairs := s.resolvePairs(ctx, cfg)
	if len(pairs) == 0 {
		s.log.Warn("scanner: no pairs to scan")
		return
	}

	var (
		wg    sync.WaitGroup
		tasks int
	)
sweep:
	for _, pair := range pairs {
		for _, tf := range cfg.Timeframes {
			if ctx.Err() != nil {
				break sweep
			}
			if err := s.sem.Acquire(ctx, 1); err != nil {
				break sweep
			}
			tasks++
			wg.Add(1)
			go func(pair string, tf int) {
				defer wg.Done()
				s.runTask(ctx, run, pair, tf, cfg)
			}(pair, tf)
		}
	}
	wg.Wait()

	elapsed := time.Since(start)
	s.metrics.RecordCycle(elapsed.Seconds(), tasks)
	s.log.Debug("scanner: cycle done",
		applogger.Int("pairs", len(pairs)),
		applogger.Int("tasks", tasks),
		applogger.Duration("duration", elapsed),
	)
}

// runTask owns one admission slot. The slot is released when the
// evaluation really finishes, so an abandoned task still counts against the
// gate until it returns.
func (s *Scanner) runTask(ctx context.Context, run uint64, pair string, tf int, cfg models.ScanConfig) {
	tctx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer s.sem.Release(1)
		s.metrics.SetInFlight(int(s.inFlight.Add(1)))
		defer func() { s.metrics.SetInFlight(int(s.inFlight.Add(-1))) }()
		s.evaluate(tctx, run, pair, tf, cfg)
	}()

	select {
	case <-finished:
	case <-tctx.Done():
		if ctx.Err() != nil {
			s.metrics.RecordTask(taskCancelled)
			return
		}
		s.metrics.RecordTask(taskTimeout)
		s.log.Warn("scanner: task abandoned after timeout",
			applogger.Symbol(pair),
			applogger.Timeframe(tf),
			applogger.Duration("timeout", s.cfg.TaskTimeout),
		)
	}
}

func (s *Scanner) evaluate(ctx context.Context, run uint64, pair string, tf int, cfg models.ScanConfig) {
	start := time.Now()
	series, err := s.series.GetSeries(ctx, pair, tf, s.cfg.CandleCount)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.metrics.RecordTask(taskFetchError)
		s.log.Warn("scanner: fetch failed",
			applogger.Symbol(pair), applogger.Timeframe(tf), applogger.Error(err))
		return
	}
	if series.Len() < s.cfg.MinCandles {
		s.metrics.RecordTask(taskTooFewCandle)
		return
	}

	evalCfg := cfg
	evalCfg.Timeframe = tf
	sig, outcome := s.engine.Evaluate(pair, series, evalCfg)
	s.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	if ctx.Err() != nil {
		// result arrived after the task was abandoned
		return
	}
	s.metrics.RecordTask(string(outcome))
	if sig == nil {
		return
	}
	if !s.upsert(run, sig) {
		return
	}
	s.metrics.RecordSignal(sig.Symbol, sig.Direction)
	s.log.Info("signal generated",
		applogger.String("key", sig.Key()),
		applogger.Direction(string(sig.Direction)),
		applogger.String("pattern", string(sig.Pattern.Type)),
		applogger.Confidence(sig.Confidence),
		applogger.Bool("synthetic", sig.SyntheticInput),
	)
	if s.sink != nil {
		if err := s.sink.Publish(ctx, sig); err != nil {
			s.log.Warn("scanner: signal dispatch failed", applogger.String("key", sig.Key()), applogger.Error(err))
		}
	}
}

// upsert stores sig under its key unless the run it belongs to is over.
func (s *Scanner) upsert(run uint64, sig *models.Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.run != run {
		return false
	}
	s.latest[sig.Key()] = sig
	s.generated++
	return true
}

// resolvePairs filters the broker's asset list by the scan configuration,
// falling back to the configured symbols.
func (s *Scanner) resolvePairs(ctx context.Context, cfg models.ScanConfig) []string {
	if s.assets == nil {
		return cfg.Symbols
	}
	assets, err := s.assets.Assets(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("scanner: asset listing failed, using configured symbols", applogger.Error(err))
		}
		return cfg.Symbols
	}
	pairs := FilterAssets(assets, cfg)
	if len(pairs) == 0 {
		return cfg.Symbols
	}
	return pairs
}

// FilterAssets applies the activity, market and allow-list filters.
func FilterAssets(assets []models.Asset, cfg models.ScanConfig) []string {
	allow := make(map[string]bool, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		allow[strings.ToUpper(sym)] = true
	}
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		switch {
		case !a.IsActive:
			continue
		case cfg.OnlyOTC && !a.IsOTC:
			continue
		case cfg.OnlyOpenMarket && a.IsOTC:
			continue
		case len(allow) > 0 && !allow[strings.ToUpper(a.Symbol)]:
			continue
		}
		out = append(out, a.Symbol)
	}
	return out
}

// EvaluateOnce runs a single evaluation outside the scan loop.
func (s *Scanner) EvaluateOnce(ctx context.Context, symbol string, cfg models.ScanConfig) (*models.Signal, Outcome, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	series, err := s.series.GetSeries(ctx, symbol, cfg.Timeframe, s.cfg.CandleCount)
	if err != nil {
		return nil, "", fmt.Errorf("get series %s: %w", symbol, err)
	}
	sig, outcome := s.engine.Evaluate(symbol, series, cfg)
	return sig, outcome, nil
}
