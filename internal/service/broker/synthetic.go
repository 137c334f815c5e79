package broker

import (
	"context"
	"sync/atomic"
	"time"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/service/provider"
)

// SyntheticBroker serves the deterministic fallback walk. It is always
// available and is what the service runs on without a market connection.
type SyntheticBroker struct {
	connected atomic.Bool
	now       func() time.Time
}

func NewSyntheticBroker() *SyntheticBroker {
	b := &SyntheticBroker{now: time.Now}
	b.connected.Store(true)
	return b
}

func (b *SyntheticBroker) Connect(context.Context) error {
	b.connected.Store(true)
	return nil
}

func (b *SyntheticBroker) Disconnect() error {
	b.connected.Store(false)
	return nil
}

func (b *SyntheticBroker) IsConnected() bool { return b.connected.Load() }

func (b *SyntheticBroker) Balance(context.Context) (Balance, error) {
	return Balance{Amount: 10000, Currency: "USD", Mode: "practice"}, nil
}

func (b *SyntheticBroker) GetCandles(_ context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	minutes := tfSeconds / 60
	if minutes < 1 {
		minutes = 1
	}
	return provider.GenerateSeries(symbol, minutes, count, b.now()).Candles, nil
}

// Assets lists every symbol with a base price, plus its OTC twin.
func (b *SyntheticBroker) Assets(context.Context) ([]models.Asset, error) {
	symbols := provider.KnownSymbols()
	out := make([]models.Asset, 0, 2*len(symbols))
	for _, s := range symbols {
		out = append(out,
			models.Asset{Symbol: s, Name: s, IsActive: true},
			models.Asset{Symbol: s + "-OTC", Name: s + " (OTC)", IsActive: true, IsOTC: true},
		)
	}
	return out, nil
}

// Synthetic marks every series served by this broker as generated.
func (b *SyntheticBroker) Synthetic() bool { return true }

func (b *SyntheticBroker) Name() string { return "Synthetic market" }
func (b *SyntheticBroker) Type() Type   { return TypeSynthetic }
