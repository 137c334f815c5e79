package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"SignalScan/internal/domain/models"
	xutil "SignalScan/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level          string        `yaml:"level" default:"info"`
		Format         string        `yaml:"format" default:"json"`
		Output         string        `yaml:"output" default:"stdout"`
		Collect        bool          `yaml:"collect" default:"true"`
		CollectEvery   time.Duration `yaml:"collect_interval" default:"30s"`
		CollectMax     int           `yaml:"collect_threshold" default:"100"`
		CollectKeep    int           `yaml:"collect_keep" default:"200"`
		PublishToKafka bool          `yaml:"publish_to_kafka"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled     bool          `yaml:"enabled" default:"true"`
		Path        string        `yaml:"path" default:"/metrics"`
		SlowRequest time.Duration `yaml:"slow_request" default:"2s"`
	} `yaml:"metrics"`
	Scanner struct {
		Autostart      bool              `yaml:"autostart"`
		Interval       time.Duration     `yaml:"interval" default:"30s"`
		TaskTimeout    time.Duration     `yaml:"task_timeout" default:"10s"`
		MaxConcurrency int               `yaml:"max_concurrency" default:"5"`
		CandleCount    int               `yaml:"candle_count" default:"100"`
		Scan           models.ScanConfig `yaml:"scan"`
	} `yaml:"scanner"`
	Forex    models.ForexScanConfig `yaml:"forex"`
	Provider struct {
		CacheTTL          time.Duration `yaml:"cache_ttl" default:"30s"`
		SyntheticFallback bool          `yaml:"synthetic_fallback" default:"true"`
	} `yaml:"provider"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"signalscan"`
	} `yaml:"redis"`
	Broker struct {
		Type           string        `yaml:"type" default:"synthetic"`
		RateLimit      float64       `yaml:"rate_limit" default:"5"`
		RateBurst      int           `yaml:"rate_burst" default:"5"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"10s"`
		IQOption       struct {
			WSURL          string        `yaml:"ws_url"`
			AuthURL        string        `yaml:"auth_url"`
			Email          string        `yaml:"email"`
			Password       string        `yaml:"password"`
			SSID           string        `yaml:"ssid"`
			AccountMode    string        `yaml:"account_mode" default:"practice"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
			ReconnectMax   time.Duration `yaml:"reconnect_max" default:"30s"`
			ReconnectTries int           `yaml:"reconnect_tries" default:"5"`
		} `yaml:"iqoption"`
		Binance struct {
			APIKey      string   `yaml:"api_key"`
			SecretKey   string   `yaml:"secret_key"`
			BaseURL     string   `yaml:"base_url"`
			QuoteAssets []string `yaml:"quote_assets" default:"[\"USDT\"]"`
		} `yaml:"binance"`
	} `yaml:"broker"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalTopic  string   `yaml:"signal_topic" default:"signalscan.signals"`
		LogTopic     string   `yaml:"log_topic" default:"signalscan.logs"`
		CandleTopic  string   `yaml:"candle_topic"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"signalscan"`
			OffsetReset string        `yaml:"offset_reset" default:"latest"`
			Workers     int           `yaml:"workers" default:"1"`
			BufferSize  int           `yaml:"buffer_size" default:"64"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic    string        `yaml:"dlq_topic"`
			StreamDepth int           `yaml:"stream_depth" default:"500"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		RecordCandles    bool          `yaml:"record_candles"`
	} `yaml:"clickhouse"`
	Influx struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url" default:"http://localhost:8086"`
		Token   string `yaml:"token"`
		Org     string `yaml:"org"`
		Bucket  string `yaml:"bucket" default:"signals"`
	} `yaml:"influx"`
	Pipeline struct {
		BufferSize  int           `yaml:"buffer_size" default:"1024"`
		MaxAttempts int           `yaml:"max_attempts" default:"5"`
		SinkTimeout time.Duration `yaml:"sink_timeout" default:"5s"`
	} `yaml:"pipeline"`
}

var brokerTypes = map[string]bool{
	"synthetic": true,
	"iqoption":  true,
	"binance":   true,
	"replay":    true,
	"stream":    true,
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.Scanner.Scan = models.DefaultScanConfig()
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	def := c.Scanner.Scan
	c.Scanner.Scan.Timeframe, c.Scanner.Scan.Timeframes = 0, nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.Scanner.Scan.ResolveTimeframes(def)
	c.Scanner.Scan.Normalize()
	c.Forex.Normalize()
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SCAN_SYMBOLS"); v != "" {
		c.Scanner.Scan.Symbols = xutil.SplitList(strings.ToUpper(v))
	}
	if v := getenv("SCAN_SENSITIVITY"); v != "" {
		c.Scanner.Scan.Sensitivity = models.Sensitivity(strings.ToLower(v))
	}
	if v := getenv("BROKER_TYPE"); v != "" {
		c.Broker.Type = strings.ToLower(v)
	}
	if v := getenv("BROKER_URL"); v != "" {
		c.Broker.IQOption.WSURL = v
	}
	if v := getenv("BROKER_EMAIL"); v != "" {
		c.Broker.IQOption.Email = v
	}
	if v := getenv("BROKER_PASSWORD"); v != "" {
		c.Broker.IQOption.Password = v
	}
	if v := getenv("BROKER_SSID"); v != "" {
		c.Broker.IQOption.SSID = v
	}
	if v := getenv("BINANCE_API_KEY"); v != "" {
		c.Broker.Binance.APIKey = v
	}
	if v := getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Broker.Binance.SecretKey = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = xutil.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.SignalTopic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("INFLUX_TOKEN"); v != "" {
		c.Influx.Token = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("%w: environment is required", models.ErrInvalidConfiguration)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", models.ErrInvalidConfiguration, c.Server.Port)
	}
	if c.Scanner.Interval <= 0 || c.Scanner.TaskTimeout <= 0 {
		return fmt.Errorf("%w: scanner.interval and scanner.task_timeout must be positive", models.ErrInvalidConfiguration)
	}
	if c.Scanner.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: scanner.max_concurrency must be positive", models.ErrInvalidConfiguration)
	}
	if c.Scanner.CandleCount < 5 {
		return fmt.Errorf("%w: scanner.candle_count must be at least 5", models.ErrInvalidConfiguration)
	}
	if err := c.Scanner.Scan.Validate(); err != nil {
		return fmt.Errorf("scanner.scan: %w", err)
	}
	if err := c.Forex.Validate(); err != nil {
		return fmt.Errorf("forex: %w", err)
	}

	if !brokerTypes[c.Broker.Type] {
		return fmt.Errorf("%w: broker.type must be one of synthetic, iqoption, binance, replay, stream, got '%s'",
			models.ErrInvalidConfiguration, c.Broker.Type)
	}
	switch c.Broker.Type {
	case "iqoption":
		if c.Broker.IQOption.WSURL == "" {
			return fmt.Errorf("%w: broker.iqoption.ws_url is required", models.ErrInvalidConfiguration)
		}
	case "replay":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("%w: replay broker needs clickhouse.enabled", models.ErrInvalidConfiguration)
		}
	case "stream":
		if !c.Kafka.Enabled || c.Kafka.CandleTopic == "" {
			return fmt.Errorf("%w: stream broker needs kafka.enabled and kafka.candle_topic", models.ErrInvalidConfiguration)
		}
	}

	var errs []error
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty"))
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		errs = append(errs, errors.New("clickhouse.host is required"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Influx.Enabled && (c.Influx.URL == "" || c.Influx.Bucket == "") {
		errs = append(errs, errors.New("influx.url and influx.bucket are required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
