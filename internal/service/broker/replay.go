package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"SignalScan/internal/domain/models"
)

// CandleHistory is the read side of the ClickHouse candle store.
type CandleHistory interface {
	LatestCandles(ctx context.Context, symbol string, timeframe, n int) ([]models.Candle, error)
	Symbols(ctx context.Context) ([]string, error)
}

// ReplayBroker serves recorded candles. It is read-only and has no balance.
type ReplayBroker struct {
	history   CandleHistory
	connected atomic.Bool
}

func NewReplayBroker(history CandleHistory) (*ReplayBroker, error) {
	if history == nil {
		return nil, errors.New("replay broker: candle history is required")
	}
	return &ReplayBroker{history: history}, nil
}

// Connect verifies the history can be queried.
func (b *ReplayBroker) Connect(ctx context.Context) error {
	if _, err := b.history.Symbols(ctx); err != nil {
		return fmt.Errorf("replay connect: %w", err)
	}
	b.connected.Store(true)
	return nil
}

func (b *ReplayBroker) Disconnect() error {
	b.connected.Store(false)
	return nil
}

func (b *ReplayBroker) IsConnected() bool { return b.connected.Load() }

func (b *ReplayBroker) Balance(context.Context) (Balance, error) {
	return Balance{}, ErrUnsupported
}

func (b *ReplayBroker) GetCandles(ctx context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	return b.history.LatestCandles(ctx, symbol, tfSeconds/60, count)
}

func (b *ReplayBroker) Assets(ctx context.Context) ([]models.Asset, error) {
	symbols, err := b.history.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Asset, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, models.Asset{
			Symbol:   s,
			Name:     s,
			IsActive: true,
			IsOTC:    strings.HasSuffix(s, "-OTC"),
		})
	}
	return out, nil
}

func (b *ReplayBroker) Name() string { return "ClickHouse replay" }
func (b *ReplayBroker) Type() Type   { return TypeReplay }
