package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"SignalScan/internal/domain/models"
	"SignalScan/pkg/kafka"
	applogger "SignalScan/pkg/logger"
)

// ConsumerRunner is the part of the Kafka consumer the stream broker drives.
type ConsumerRunner interface {
	RegisterHandler(h kafka.MessageHandler)
	Start() error
	Stop(ctx context.Context) error
}

// CandleRecorder persists closed candles, typically to ClickHouse for replay.
type CandleRecorder interface {
	InsertCandles(ctx context.Context, symbol string, timeframe int, candles []models.Candle) error
}

// CandleMessage is the payload on the candle topic. Time is the bar open in
// unix seconds and Timeframe is in seconds.
type CandleMessage struct {
	Symbol    string  `json:"symbol"`
	Timeframe int     `json:"timeframe"`
	Time      int64   `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// StreamBroker buffers candles published on a Kafka topic by an upstream
// collector. The in-progress bar is replaced on every update; a bar is
// recorded once the next one opens.
type StreamBroker struct {
	consumer ConsumerRunner
	topic    string
	depth    int
	recorder CandleRecorder
	log      *applogger.Logger

	mu        sync.RWMutex
	bars      map[string][]models.Candle
	connected atomic.Bool
}

type StreamOption func(*StreamBroker)

// WithStreamDepth bounds how many bars are kept per symbol and resolution.
func WithStreamDepth(n int) StreamOption {
	return func(b *StreamBroker) {
		if n > 0 {
			b.depth = n
		}
	}
}

func WithCandleRecorder(r CandleRecorder) StreamOption {
	return func(b *StreamBroker) { b.recorder = r }
}

func NewStreamBroker(consumer ConsumerRunner, topic string, log *applogger.Logger, opts ...StreamOption) *StreamBroker {
	if log == nil {
		log = applogger.Nop()
	}
	b := &StreamBroker{
		consumer: consumer,
		topic:    topic,
		depth:    500,
		log:      log,
		bars:     make(map[string][]models.Candle),
	}
	for _, opt := range opts {
		opt(b)
	}
	consumer.RegisterHandler(b)
	return b
}

// Topic implements kafka.MessageHandler.
func (b *StreamBroker) Topic() string { return b.topic }

// Handle implements kafka.MessageHandler.
func (b *StreamBroker) Handle(ctx context.Context, payload []byte) error {
	var m CandleMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		// malformed payloads are not retried
		b.log.Warn("stream: bad candle message", applogger.Error(err))
		return nil
	}
	if m.Symbol == "" || m.Timeframe <= 0 || m.Time <= 0 {
		b.log.Warn("stream: incomplete candle message", applogger.Symbol(m.Symbol))
		return nil
	}
	closed := b.apply(m)
	if closed != nil && b.recorder != nil {
		if err := b.recorder.InsertCandles(ctx, strings.ToUpper(m.Symbol), m.Timeframe/60, []models.Candle{*closed}); err != nil {
			return fmt.Errorf("record closed bar: %w", err)
		}
	}
	return nil
}

// apply merges m into the buffer and returns the bar it closed, if any.
func (b *StreamBroker) apply(m CandleMessage) *models.Candle {
	c := models.Candle{
		Time:   time.Unix(m.Time, 0).UTC(),
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}
	key := streamKey(m.Symbol, m.Timeframe)

	b.mu.Lock()
	defer b.mu.Unlock()
	bars := b.bars[key]
	n := len(bars)
	switch {
	case n > 0 && bars[n-1].Time.Equal(c.Time):
		bars[n-1] = c
		return nil
	case n > 0 && c.Time.Before(bars[n-1].Time):
		// late bar for an already closed period
		return nil
	}
	var closed *models.Candle
	if n > 0 {
		prev := bars[n-1]
		closed = &prev
	}
	bars = append(bars, c)
	if len(bars) > b.depth {
		bars = bars[len(bars)-b.depth:]
	}
	b.bars[key] = bars
	return closed
}

func (b *StreamBroker) Connect(context.Context) error {
	if b.connected.Load() {
		return nil
	}
	if err := b.consumer.Start(); err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	b.connected.Store(true)
	return nil
}

func (b *StreamBroker) Disconnect() error {
	if !b.connected.Swap(false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.consumer.Stop(ctx)
}

func (b *StreamBroker) IsConnected() bool { return b.connected.Load() }

func (b *StreamBroker) Balance(context.Context) (Balance, error) {
	return Balance{}, ErrUnsupported
}

// GetCandles returns up to count most recent buffered bars.
func (b *StreamBroker) GetCandles(_ context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	b.mu.RLock()
	bars := b.bars[streamKey(symbol, tfSeconds)]
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	out := make([]models.Candle, len(bars))
	copy(out, bars)
	b.mu.RUnlock()
	return out, nil
}

// Assets lists every symbol seen on the topic.
func (b *StreamBroker) Assets(context.Context) ([]models.Asset, error) {
	b.mu.RLock()
	seen := make(map[string]bool)
	for key := range b.bars {
		seen[key[:strings.LastIndexByte(key, '|')]] = true
	}
	b.mu.RUnlock()

	out := make([]models.Asset, 0, len(seen))
	for s := range seen {
		out = append(out, models.Asset{Symbol: s, Name: s, IsActive: true, IsOTC: strings.HasSuffix(s, "-OTC")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *StreamBroker) Name() string { return "Kafka candle stream" }
func (b *StreamBroker) Type() Type   { return TypeStream }

func streamKey(symbol string, tfSeconds int) string {
	return fmt.Sprintf("%s|%d", strings.ToUpper(symbol), tfSeconds)
}
