package broker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/service/ratelimit"
	applogger "SignalScan/pkg/logger"
)

// BinanceConfig configures the Binance spot market-data broker.
type BinanceConfig struct {
	APIKey      string
	SecretKey   string
	BaseURL     string
	QuoteAssets []string
	RateLimit   float64
	RateBurst   float64
}

// BinanceBroker reads spot klines over the Binance REST API.
type BinanceBroker struct {
	cfg       BinanceConfig
	client    *binance.Client
	limiter   *ratelimit.Limiter
	log       *applogger.Logger
	connected atomic.Bool
}

func NewBinanceBroker(cfg BinanceConfig, log *applogger.Logger) *BinanceBroker {
	if log == nil {
		log = applogger.Nop()
	}
	if len(cfg.QuoteAssets) == 0 {
		cfg.QuoteAssets = []string{"USDT"}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RateLimit
	}
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &BinanceBroker{cfg: cfg, client: client, limiter: ratelimit.New(), log: log}
}

func (b *BinanceBroker) Connect(ctx context.Context) error {
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("binance ping: %w", err)
	}
	b.connected.Store(true)
	b.log.Info("binance: connected", applogger.String("base_url", b.client.BaseURL))
	return nil
}

func (b *BinanceBroker) Disconnect() error {
	b.connected.Store(false)
	return nil
}

func (b *BinanceBroker) IsConnected() bool { return b.connected.Load() }

// Balance sums free and locked amounts of the first quote asset.
func (b *BinanceBroker) Balance(ctx context.Context) (Balance, error) {
	if b.cfg.APIKey == "" {
		return Balance{}, fmt.Errorf("%w: binance balance needs an api key", ErrUnsupported)
	}
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return Balance{}, fmt.Errorf("binance account: %w", err)
	}
	quote := b.cfg.QuoteAssets[0]
	for _, bal := range acct.Balances {
		if bal.Asset != quote {
			continue
		}
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		return Balance{Amount: free + locked, Currency: quote, Mode: "real"}, nil
	}
	return Balance{Currency: quote, Mode: "real"}, nil
}

func (b *BinanceBroker) GetCandles(ctx context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	interval, ok := timeframeLabel(tfSeconds)
	if !ok {
		return nil, fmt.Errorf("binance: unsupported resolution %ds", tfSeconds)
	}
	if err := b.limiter.Wait(ctx, "klines", b.cfg.RateBurst, b.cfg.RateLimit); err != nil {
		return nil, err
	}

	klines, err := b.client.NewKlinesService().
		Symbol(strings.ToUpper(symbol)).
		Interval(interval).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}
	return klinesToCandles(klines)
}

// Assets lists trading symbols quoted in one of the configured quote assets.
func (b *BinanceBroker) Assets(ctx context.Context) ([]models.Asset, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}
	quotes := make(map[string]bool, len(b.cfg.QuoteAssets))
	for _, q := range b.cfg.QuoteAssets {
		quotes[strings.ToUpper(q)] = true
	}
	out := make([]models.Asset, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if !quotes[s.QuoteAsset] {
			continue
		}
		out = append(out, models.Asset{
			Symbol:   s.Symbol,
			Name:     s.BaseAsset + "/" + s.QuoteAsset,
			IsActive: s.Status == "TRADING",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *BinanceBroker) Name() string { return "Binance spot" }
func (b *BinanceBroker) Type() Type   { return TypeBinance }

func klinesToCandles(klines []*binance.Kline) ([]models.Candle, error) {
	out := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		var (
			c   = models.Candle{Time: time.UnixMilli(k.OpenTime).UTC()}
			err error
		)
		for _, f := range []struct {
			dst *float64
			src string
		}{
			{&c.Open, k.Open}, {&c.High, k.High}, {&c.Low, k.Low}, {&c.Close, k.Close}, {&c.Volume, k.Volume},
		} {
			if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
				return nil, fmt.Errorf("binance kline %d: %w", k.OpenTime, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}
