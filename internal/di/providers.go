package di

import (
	"context"
	"fmt"
	"time"

	"SignalScan/internal/domain/repository"
	"SignalScan/internal/handler/api"
	mid "SignalScan/internal/middleware"
	internalrepo "SignalScan/internal/repository"
	"SignalScan/internal/service/broker"
	icache "SignalScan/internal/service/cache"
	"SignalScan/internal/service/detector"
	"SignalScan/internal/service/provider"
	"SignalScan/internal/usecase"
	pkgch "SignalScan/pkg/clickhouse"
	"SignalScan/pkg/config"
	xhttp "SignalScan/pkg/http"
	pkgkafka "SignalScan/pkg/kafka"
	applogger "SignalScan/pkg/logger"
	"SignalScan/pkg/metrics"
	"SignalScan/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.SignalTopic),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Compression, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithSymbolOrdering(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Warn and error entries are
// collected for /api/logs and, optionally, shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect {
		cc := &applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectEvery,
			CountThreshold: cfg.Log.CollectMax,
			Keep:           cfg.Log.CollectKeep,
		}
		if cfg.Log.PublishToKafka && producer != nil {
			cc.Topic = cfg.Kafka.LogTopic
			if cc.Topic == "" {
				cc.Topic = pkgkafka.DefaultLogTopic
			}
			cc.Publisher = producer
		}
		l.AddCollector(cc)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and the candle and
// signal tables, or nil when ClickHouse is off.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.EnsureSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects the shared series cache, or returns nil when
// Redis is off.
func ProvideRedisCache(cfg *config.Config) (*icache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := icache.NewRedisCache(context.Background(), icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideKafkaConsumer creates the candle-topic consumer used by the stream
// broker, or nil when no candle topic is configured.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.CandleTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l.With(applogger.String("component", "kafka_consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCandleStore returns the ClickHouse candle history, or nil.
func ProvideCandleStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHCandleStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCandleStore(ch, l)
}

// ProvideBrokerRegistry registers every broker whose dependencies are
// configured. The synthetic broker is always available.
func ProvideBrokerRegistry(cfg *config.Config, l *applogger.Logger, candles *internalrepo.CHCandleStore,
	consumer *pkgkafka.Consumer) *broker.Registry {
	reg := broker.NewRegistry()
	reg.Register(broker.TypeSynthetic, func() (broker.Broker, error) {
		return broker.NewSyntheticBroker(), nil
	})

	if iq := cfg.Broker.IQOption; iq.WSURL != "" {
		reg.Register(broker.TypeIQOption, func() (broker.Broker, error) {
			return broker.NewIQOptionBroker(broker.IQOptionConfig{
				WSURL:          iq.WSURL,
				AuthURL:        iq.AuthURL,
				Email:          iq.Email,
				Password:       iq.Password,
				SSID:           iq.SSID,
				AccountMode:    iq.AccountMode,
				RateLimit:      cfg.Broker.RateLimit,
				RateBurst:      float64(cfg.Broker.RateBurst),
				RequestTimeout: cfg.Broker.RequestTimeout,
				PingInterval:   iq.PingInterval,
				ReconnectMax:   iq.ReconnectMax,
				ReconnectTries: iq.ReconnectTries,
			}, l)
		})
	}

	if cfg.Broker.Type == string(broker.TypeBinance) || cfg.Broker.Binance.APIKey != "" {
		bc := cfg.Broker.Binance
		reg.Register(broker.TypeBinance, func() (broker.Broker, error) {
			return broker.NewBinanceBroker(broker.BinanceConfig{
				APIKey:      bc.APIKey,
				SecretKey:   bc.SecretKey,
				BaseURL:     bc.BaseURL,
				QuoteAssets: bc.QuoteAssets,
				RateLimit:   cfg.Broker.RateLimit,
				RateBurst:   float64(cfg.Broker.RateBurst),
			}, l), nil
		})
	}

	if candles != nil {
		reg.Register(broker.TypeReplay, func() (broker.Broker, error) {
			return broker.NewReplayBroker(candles)
		})
	}

	if consumer != nil {
		reg.Register(broker.TypeStream, func() (broker.Broker, error) {
			opts := []broker.StreamOption{broker.WithStreamDepth(cfg.Kafka.Consumer.StreamDepth)}
			if candles != nil && cfg.ClickHouse.RecordCandles {
				opts = append(opts, broker.WithCandleRecorder(candles))
			}
			return broker.NewStreamBroker(consumer, cfg.Kafka.CandleTopic, l, opts...), nil
		})
	}
	return reg
}

// ProvideBroker builds and connects the configured broker. A failed connect
// is logged, not fatal: the provider falls back to synthetic series and the
// scanner refuses to start until the broker is connected.
func ProvideBroker(cfg *config.Config, reg *broker.Registry, l *applogger.Logger) (broker.Broker, error) {
	b, err := reg.New(broker.Type(cfg.Broker.Type))
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Broker.RequestTimeout+5*time.Second)
	defer cancel()
	if err := b.Connect(ctx); err != nil {
		l.Error("broker connect failed", applogger.String("broker", b.Name()), applogger.Error(err))
	}
	return b, nil
}

// ProvideSeriesProvider creates the cached series provider in front of the
// broker, with Redis as second level when enabled.
func ProvideSeriesProvider(cfg *config.Config, b broker.Broker, rc *icache.RedisCache, m repository.Metrics,
	l *applogger.Logger) *provider.Provider {
	opts := []provider.Option{
		provider.WithTTL(cfg.Provider.CacheTTL),
		provider.WithSyntheticFallback(cfg.Provider.SyntheticFallback),
		provider.WithMetrics(m),
	}
	if rc != nil {
		opts = append(opts, provider.WithL2(rc))
	}
	return provider.New(b, l, opts...)
}

// ProvideConfluenceEngine wires the reference detectors into the engine.
func ProvideConfluenceEngine() *usecase.ConfluenceEngine {
	return usecase.NewConfluenceEngine(detector.NewPatternDetector(), detector.NewLevelDetector())
}

func ProvideForexEngine(p *provider.Provider, l *applogger.Logger) *usecase.ForexEngine {
	return usecase.NewForexEngine(p, l)
}

// ProvideSignalStore returns the ClickHouse signal history, or nil.
func ProvideSignalStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHSignalStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHSignalStore(ch, l)
}

// ProvideSignalPipeline fans emitted signals out to Kafka, ClickHouse and
// InfluxDB, whichever are enabled.
func ProvideSignalPipeline(cfg *config.Config, producer *pkgkafka.Producer, store *internalrepo.CHSignalStore,
	m repository.Metrics, l *applogger.Logger) (*mid.SignalPipeline, error) {
	var sinks []repository.SignalSink
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic, l))
	}
	if store != nil {
		sinks = append(sinks, store)
	}
	if cfg.Influx.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		influx, err := internalrepo.NewInfluxSignalSink(ctx, internalrepo.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("influx sink: %w", err)
		}
		sinks = append(sinks, influx)
	}
	return mid.NewSignalPipeline(sinks, m,
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithMaxAttempts(cfg.Pipeline.MaxAttempts),
		mid.WithSinkTimeout(cfg.Pipeline.SinkTimeout),
		mid.WithPipelineLogger(l),
	), nil
}

// ProvideScanner creates the scan loop reading through the provider and
// publishing into the pipeline.
func ProvideScanner(cfg *config.Config, p *provider.Provider, b broker.Broker, engine *usecase.ConfluenceEngine,
	pipeline *mid.SignalPipeline, m repository.Metrics, l *applogger.Logger) *usecase.Scanner {
	return usecase.NewScanner(p, b, b, engine, pipeline, m, l.With(applogger.String("component", "scanner")),
		usecase.WithInterval(cfg.Scanner.Interval),
		usecase.WithTaskTimeout(cfg.Scanner.TaskTimeout),
		usecase.WithMaxConcurrency(cfg.Scanner.MaxConcurrency),
		usecase.WithCandleCount(cfg.Scanner.CandleCount),
	)
}

// ProvideHandlers builds every HTTP handler.
func ProvideHandlers(cfg *config.Config, scanner *usecase.Scanner, forex *usecase.ForexEngine,
	store *internalrepo.CHSignalStore, reg *broker.Registry, b broker.Broker, ch *pkgch.Client,
	rc *icache.RedisCache, l *applogger.Logger) []xhttp.Handler {
	var history repository.SignalStore
	if store != nil {
		history = store
	}
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = rc.Ping
	}
	return []xhttp.Handler{
		api.NewScannerHandler(scanner, history, cfg.Scanner.Scan, l),
		api.NewForexHandler(forex, cfg.Forex, l),
		api.NewSystemHandler(reg, b, l.Collector(), checks, l),
	}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetrics(cfg.Metrics.Enabled),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
		xhttp.WithSlowThreshold(cfg.Metrics.SlowRequest),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, srv *xhttp.Server, scanner *usecase.Scanner, pipeline *mid.SignalPipeline,
	b broker.Broker, producer *pkgkafka.Producer, ch *pkgch.Client, rc *icache.RedisCache,
	l *applogger.Logger) *server.App {
	return server.New(cfg, l, srv, scanner, pipeline, b, producer, ch, rc)
}
