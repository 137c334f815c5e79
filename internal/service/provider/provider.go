package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/domain/repository"
	"SignalScan/internal/service/cache"
	"SignalScan/pkg/logger"
)

// Config for the series provider.
type Config struct {
	TTL               time.Duration
	SyntheticFallback bool
	L2                cache.BytesCache
	Metrics           repository.Metrics
}

type Option func(*Config)

func WithTTL(ttl time.Duration) Option {
	return func(c *Config) { c.TTL = ttl }
}

// WithSyntheticFallback toggles the synthetic series used when upstream is
// unavailable. Enabled by default.
func WithSyntheticFallback(enabled bool) Option {
	return func(c *Config) { c.SyntheticFallback = enabled }
}

// WithL2 adds a shared byte cache consulted after the in-process cache.
func WithL2(l2 cache.BytesCache) Option {
	return func(c *Config) { c.L2 = l2 }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// Provider serves candle series from a TTL cache, the upstream connection,
// or a synthetic walk when upstream cannot answer.
type Provider struct {
	upstream repository.MarketData
	l1       *cache.TTLCache[*models.Series]
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// New creates a provider. upstream may be nil, in which case every miss is
// served synthetically.
func New(upstream repository.MarketData, log *logger.Logger, opts ...Option) *Provider {
	cfg := Config{
		TTL:               30 * time.Second,
		SyntheticFallback: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		upstream: upstream,
		l1:       cache.NewTTLCache[*models.Series](cfg.TTL),
		cfg:      cfg,
		log:      log.With(logger.String("component", "series_provider")),
		now:      time.Now,
	}
}

func cacheKey(symbol string, timeframe, count int) string {
	return fmt.Sprintf("%s_%d_%d", symbol, timeframe, count)
}

// GetSeries returns count candles of symbol at timeframe minutes. A cached
// series younger than the TTL is returned as is; the cache is keyed by
// symbol, timeframe and count. An error is only returned when the synthetic
// fallback is disabled and upstream cannot answer.
func (p *Provider) GetSeries(ctx context.Context, symbol string, timeframe, count int) (*models.Series, error) {
	key := cacheKey(symbol, timeframe, count)
	if s, ok := p.l1.Get(key); ok {
		return s, nil
	}
	if s, ok := p.fromL2(ctx, key); ok {
		p.l1.Set(key, s)
		return s, nil
	}

	s, err := p.fetch(ctx, symbol, timeframe, count)
	if err != nil {
		return p.fallback(symbol, timeframe, count, err)
	}
	if s.Synthetic {
		p.cfg.Metrics.RecordFallback(symbol)
		return s, nil
	}

	p.l1.Set(key, s)
	p.toL2(ctx, key, s)
	return s, nil
}

func (p *Provider) fetch(ctx context.Context, symbol string, timeframe, count int) (*models.Series, error) {
	if p.upstream == nil || !p.upstream.IsConnected() {
		return nil, models.ErrUpstreamUnavailable
	}

	start := time.Now()
	candles, err := p.upstream.GetCandles(ctx, symbol, repository.TimeframeSeconds(timeframe), count)
	p.cfg.Metrics.RecordLatency("fetch_candles", time.Since(start).Seconds())
	if err != nil {
		p.cfg.Metrics.RecordError("fetch_candles")
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty result", models.ErrUpstreamUnavailable)
	}

	return &models.Series{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   normalize(candles),
		FetchedAt: p.now(),
		Synthetic: isSynthetic(p.upstream),
	}, nil
}

func isSynthetic(up repository.MarketData) bool {
	src, ok := up.(repository.SyntheticSource)
	return ok && src.Synthetic()
}

func (p *Provider) fallback(symbol string, timeframe, count int, cause error) (*models.Series, error) {
	if !p.cfg.SyntheticFallback {
		return nil, cause
	}
	p.log.Warn("upstream unavailable, serving synthetic series",
		logger.String("symbol", symbol),
		logger.Int("timeframe", timeframe),
		logger.Error(cause),
	)
	p.cfg.Metrics.RecordFallback(symbol)
	return GenerateSeries(symbol, timeframe, count, p.now()), nil
}

func (p *Provider) fromL2(ctx context.Context, key string) (*models.Series, bool) {
	if p.cfg.L2 == nil {
		return nil, false
	}
	b, ok, err := p.cfg.L2.GetBytes(ctx, "series:"+key)
	if err != nil {
		p.log.Debug("l2 get failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var s models.Series
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (p *Provider) toL2(ctx context.Context, key string, s *models.Series) {
	if p.cfg.L2 == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := p.cfg.L2.SetBytes(ctx, "series:"+key, b, p.cfg.TTL); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Debug("l2 set failed", logger.String("key", key), logger.Error(err))
	}
}

// normalize orders candles by time and widens high/low so they always
// envelope open and close.
func normalize(in []models.Candle) []models.Candle {
	out := make([]models.Candle, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	for i := range out {
		c := &out[i]
		c.High = max(c.High, c.Open, c.Close)
		c.Low = min(c.Low, c.Open, c.Close)
	}
	return out
}

var _ repository.SeriesProvider = (*Provider)(nil)
