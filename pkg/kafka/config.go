package kafka

import "time"

// Topics used when configuration leaves them empty.
const (
	DefaultSignalTopic = "signalscan.signals"
	DefaultLogTopic    = "signalscan.logs"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration. Topic is where Publish
// writes when it is given an empty topic.
type ProducerConfig struct {
	Brokers       []string
	Topic         string
	RequiredAcks  int
	Compression   string
	MaxAttempts   int
	WriteTimeout  time.Duration
	ReadTimeout   time.Duration
	BatchSize     int
	BatchBytes    int
	BatchTimeout  time.Duration
	Async         bool
	KeyedBySymbol bool
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Topic:         DefaultSignalTopic,
		RequiredAcks:  -1,
		Compression:   "gzip",
		MaxAttempts:   3,
		WriteTimeout:  10 * time.Second,
		ReadTimeout:   10 * time.Second,
		BatchSize:     100,
		BatchBytes:    1 << 20,
		BatchTimeout:  time.Second,
		KeyedBySymbol: true,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithTopic sets the default topic. Empty keeps DefaultSignalTopic.
func WithTopic(topic string) ProducerOption {
	return func(c *ProducerConfig) {
		if topic != "" {
			c.Topic = topic
		}
	}
}

// WithDelivery sets required acks (-1 = all), the compression codec and
// the writer's attempts per batch. Zero values keep the defaults.
func WithDelivery(acks int, compression string, maxAttempts int) ProducerOption {
	return func(c *ProducerConfig) {
		if acks != 0 {
			c.RequiredAcks = acks
		}
		if compression != "" {
			c.Compression = compression
		}
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
	}
}

// WithBatching sets batch size, batch bytes and linger. Signals are small
// and bursty, one per emitted key per cycle.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithSymbolOrdering hashes message keys so all signals of one symbol land
// on one partition in emission order.
func WithSymbolOrdering(on bool) ProducerOption {
	return func(c *ProducerConfig) { c.KeyedBySymbol = on }
}
