package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/service/provider"
	"SignalScan/pkg/kafka"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(TypeSynthetic, func() (Broker, error) { return NewSyntheticBroker(), nil })
	reg.Register(TypeReplay, nil)
	reg.Register(TypeBinance, func() (Broker, error) { return nil, errors.New("no network") })

	got := reg.Available()
	if len(got) != 2 || got[0] != TypeBinance || got[1] != TypeSynthetic {
		t.Fatalf("available = %v", got)
	}

	b, err := reg.New(TypeSynthetic)
	if err != nil {
		t.Fatalf("new synthetic: %v", err)
	}
	if b.Type() != TypeSynthetic {
		t.Fatalf("type = %s", b.Type())
	}
	if _, err := reg.New(TypeReplay); !errors.Is(err, models.ErrUnknownBroker) {
		t.Fatalf("want ErrUnknownBroker, got %v", err)
	}
	if _, err := reg.New(TypeBinance); err == nil || errors.Is(err, models.ErrUnknownBroker) {
		t.Fatalf("factory error not surfaced: %v", err)
	}
}

func TestSyntheticBroker(t *testing.T) {
	b := NewSyntheticBroker()
	b.now = func() time.Time { return time.Date(2026, 2, 3, 10, 7, 30, 0, time.UTC) }
	ctx := context.Background()

	if !b.IsConnected() {
		t.Fatalf("synthetic broker starts connected")
	}
	candles, err := b.GetCandles(ctx, "EURUSD", 300, 60)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(candles) != 60 {
		t.Fatalf("len = %d", len(candles))
	}
	last := candles[len(candles)-1]
	if !last.Time.Equal(time.Date(2026, 2, 3, 10, 5, 0, 0, time.UTC)) {
		t.Fatalf("last bar at %v", last.Time)
	}
	if candles[1].Time.Sub(candles[0].Time) != 5*time.Minute {
		t.Fatalf("bar spacing %v", candles[1].Time.Sub(candles[0].Time))
	}

	assets, _ := b.Assets(ctx)
	var otc int
	for _, a := range assets {
		if a.IsOTC {
			otc++
		}
	}
	if otc == 0 || otc*2 != len(assets) {
		t.Fatalf("expected one OTC twin per symbol, got %d of %d", otc, len(assets))
	}

	_ = b.Disconnect()
	if _, err := b.GetCandles(ctx, "EURUSD", 300, 10); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

type fakeRunner struct {
	handler kafka.MessageHandler
	started bool
	stopped bool
}

func (f *fakeRunner) RegisterHandler(h kafka.MessageHandler) { f.handler = h }
func (f *fakeRunner) Start() error                           { f.started = true; return nil }
func (f *fakeRunner) Stop(context.Context) error             { f.stopped = true; return nil }

type recorded struct {
	symbol  string
	tf      int
	candles []models.Candle
}

type fakeRecorder struct{ got []recorded }

func (f *fakeRecorder) InsertCandles(_ context.Context, symbol string, tf int, c []models.Candle) error {
	f.got = append(f.got, recorded{symbol, tf, c})
	return nil
}

func candleMsg(t *testing.T, ts int64, close float64) []byte {
	t.Helper()
	b, err := json.Marshal(CandleMessage{
		Symbol: "eurusd", Timeframe: 60, Time: ts,
		Open: 1.1, High: close + 0.001, Low: 1.09, Close: close, Volume: 10,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestSyntheticBrokerSeriesAreMarkedGenerated(t *testing.T) {
	s, err := provider.New(NewSyntheticBroker(), nil).GetSeries(context.Background(), "EURUSD", 5, 100)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if !s.Synthetic || s.Len() != 100 {
		t.Fatalf("synthetic=%v len=%d", s.Synthetic, s.Len())
	}
}

func TestStreamBrokerBuffersAndRecordsClosedBars(t *testing.T) {
	runner := &fakeRunner{}
	rec := &fakeRecorder{}
	b := NewStreamBroker(runner, "candles", nil, WithStreamDepth(3), WithCandleRecorder(rec))
	ctx := context.Background()

	if runner.handler == nil || runner.handler.Topic() != "candles" {
		t.Fatalf("handler not registered")
	}
	if err := b.Connect(ctx); err != nil || !runner.started {
		t.Fatalf("connect: %v", err)
	}

	base := int64(1_760_000_000)
	steps := []struct {
		ts    int64
		close float64
	}{
		{base, 1.10},
		{base, 1.11}, // in-progress update replaces the bar
		{base + 60, 1.12},
		{base + 120, 1.13},
		{base + 180, 1.14},
		{base + 60, 1.50}, // late bar is ignored
	}
	for _, s := range steps {
		if err := b.Handle(ctx, candleMsg(t, s.ts, s.close)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	_ = b.Handle(ctx, []byte("{not json"))

	candles, err := b.GetCandles(ctx, "EURUSD", 60, 10)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("depth not enforced: %d bars", len(candles))
	}
	if candles[0].Close != 1.12 || candles[2].Close != 1.14 {
		t.Fatalf("unexpected bars: %+v", candles)
	}
	if len(rec.got) != 3 || rec.got[0].candles[0].Close != 1.11 || rec.got[0].tf != 1 || rec.got[0].symbol != "EURUSD" {
		t.Fatalf("closed bars recorded: %+v", rec.got)
	}

	assets, _ := b.Assets(ctx)
	if len(assets) != 1 || assets[0].Symbol != "EURUSD" {
		t.Fatalf("assets = %+v", assets)
	}

	_ = b.Disconnect()
	if !runner.stopped || b.IsConnected() {
		t.Fatalf("disconnect did not stop consumer")
	}
}

func TestKlinesToCandles(t *testing.T) {
	good := &binance.Kline{OpenTime: 1_760_000_000_000, Open: "1.1", High: "1.2", Low: "1.0", Close: "1.15", Volume: "42"}
	candles, err := klinesToCandles([]*binance.Kline{good})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if candles[0].High != 1.2 || candles[0].Volume != 42 || candles[0].Time.Unix() != 1_760_000_000 {
		t.Fatalf("candle = %+v", candles[0])
	}
	bad := *good
	bad.Close = "n/a"
	if _, err := klinesToCandles([]*binance.Kline{&bad}); err == nil {
		t.Fatalf("bad close accepted")
	}
	if l, ok := timeframeLabel(300); !ok || l != "5m" {
		t.Fatalf("label = %q", l)
	}
	if _, ok := timeframeLabel(120); ok {
		t.Fatalf("2m is not an exchange interval")
	}
}
