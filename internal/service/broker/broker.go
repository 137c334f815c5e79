package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
)

// Type names a broker variant.
type Type string

const (
	TypeIQOption  Type = "iqoption"
	TypeBinance   Type = "binance"
	TypeReplay    Type = "replay"
	TypeStream    Type = "stream"
	TypeSynthetic Type = "synthetic"
)

var (
	ErrNotConnected = errors.New("broker not connected")
	ErrUnsupported  = errors.New("operation not supported by broker")
)

// Balance is the account balance reported by a broker.
type Balance struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Mode     string  `json:"mode"`
}

// Broker is the capability every market-data connection offers. A Broker
// satisfies the scanner's MarketData and AssetLister ports.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Balance(ctx context.Context) (Balance, error)
	GetCandles(ctx context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error)
	Assets(ctx context.Context) ([]models.Asset, error)
	Name() string
	Type() Type
}

var (
	_ domrepo.MarketData  = Broker(nil)
	_ domrepo.AssetLister = Broker(nil)
)

// Factory builds a broker. It is only called when the broker is selected.
type Factory func() (Broker, error)

// Registry maps broker types to factories. Variants whose dependencies are
// missing are simply never registered.
type Registry struct {
	mu        sync.RWMutex
	factories map[Type]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[Type]Factory)}
}

// Register adds or replaces the factory for t. A nil factory is ignored.
func (r *Registry) Register(t Type, f Factory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	r.factories[t] = f
	r.mu.Unlock()
}

// Available lists registered types in name order.
func (r *Registry) Available() []Type {
	r.mu.RLock()
	out := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds the broker registered for t.
func (r *Registry) New(t Type) (Broker, error) {
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", models.ErrUnknownBroker, t, r.Available())
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("create %s broker: %w", t, err)
	}
	return b, nil
}

// timeframeLabel renders a resolution in seconds the way exchanges name
// intervals, e.g. 300 -> "5m".
func timeframeLabel(tfSeconds int) (string, bool) {
	switch tfSeconds {
	case 60:
		return "1m", true
	case 300:
		return "5m", true
	case 900:
		return "15m", true
	case 1800:
		return "30m", true
	case 3600:
		return "1h", true
	case 14400:
		return "4h", true
	case 86400:
		return "1d", true
	}
	return "", false
}
