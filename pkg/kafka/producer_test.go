package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestProducerOptions(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"k1:9092"}),
		WithTopic(""),
		WithDelivery(1, "zstd", 0),
		WithBatching(10, 0, 50*time.Millisecond),
		WithSymbolOrdering(false),
	} {
		opt(&cfg)
	}
	if cfg.Topic != DefaultSignalTopic {
		t.Fatalf("empty topic replaced default: %q", cfg.Topic)
	}
	if cfg.RequiredAcks != 1 || cfg.Compression != "zstd" || cfg.MaxAttempts != 3 {
		t.Fatalf("delivery = %d %s %d", cfg.RequiredAcks, cfg.Compression, cfg.MaxAttempts)
	}
	if cfg.BatchSize != 10 || cfg.BatchBytes != 1<<20 || cfg.BatchTimeout != 50*time.Millisecond {
		t.Fatalf("batching = %d %d %v", cfg.BatchSize, cfg.BatchBytes, cfg.BatchTimeout)
	}
	if _, ok := newWriter(cfg).Balancer.(*kafka.LeastBytes); !ok {
		t.Fatalf("unordered producer should balance by bytes")
	}
}

func TestNewProducer(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected an error without brokers")
	}

	p, err := NewProducer(WithBrokers([]string{"k1:9092"}), WithTopic("scans.signals"))
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p.Close()

	if _, ok := p.writer.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("signals must be hashed by symbol key")
	}
	if got := p.topicOr(""); got != "scans.signals" {
		t.Fatalf("default topic = %q", got)
	}
	if got := p.topicOr(DefaultLogTopic); got != DefaultLogTopic {
		t.Fatalf("explicit topic = %q", got)
	}
}

func TestEncodeValue(t *testing.T) {
	for _, tc := range []struct {
		in   interface{}
		want string
	}{
		{[]byte("raw"), "raw"},
		{"text", "text"},
		{map[string]string{"symbol": "EURUSD"}, `{"symbol":"EURUSD"}`},
	} {
		got, err := encodeValue(tc.in)
		if err != nil || string(got) != tc.want {
			t.Fatalf("encode %v = %q, %v", tc.in, got, err)
		}
	}
	if _, err := encodeValue(func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
}
