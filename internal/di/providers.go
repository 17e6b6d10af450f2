package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/domain/repository"
	"RiskLens/internal/domain/service"
	"RiskLens/internal/handler/api"
	internalrepo "RiskLens/internal/repository"
	"RiskLens/internal/service/ingest"
	svcmetrics "RiskLens/internal/service/metrics"
	"RiskLens/internal/service/ratelimit"
	"RiskLens/internal/service/stream"
	"RiskLens/internal/services/interpreter"
	"RiskLens/internal/usecase"
	"RiskLens/pkg/cache"
	pkgch "RiskLens/pkg/clickhouse"
	"RiskLens/pkg/config"
	xhttp "RiskLens/pkg/http"
	pkgkafka "RiskLens/pkg/kafka"
	applogger "RiskLens/pkg/logger"
	"RiskLens/pkg/metrics"
	"RiskLens/pkg/queue"
	"RiskLens/pkg/server"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Toolkit is the dependency graph used by the one-shot CLI commands.
type Toolkit struct {
	Logger *applogger.Logger
	Store  repository.SeriesStore
	Risk   *usecase.RiskUseCase
	Suite  *usecase.SuiteUseCase
	// Ingest is nil unless stream.enabled is set.
	Ingest *ingest.Service

	closers []io.Closer
}

// Close releases the clients opened for the toolkit.
func (t *Toolkit) Close() error {
	var first error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegisterer returns the registry shared with the Kafka client metrics.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideClickHouseClient connects to ClickHouse when it is the data source; otherwise nil.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if cfg.Data.Source != config.SourceClickHouse {
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
		pkgch.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCache returns a Redis-backed layered cache when enabled, else an in-process one.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.MemorySize)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Redis.MemorySize)), nil
}

// ProvideSeriesStore builds the configured series source behind a read-through cache.
func ProvideSeriesStore(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *applogger.Logger) (repository.SeriesStore, error) {
	var base repository.SeriesStore
	switch cfg.Data.Source {
	case config.SourceClickHouse:
		if ch == nil {
			return nil, fmt.Errorf("clickhouse source selected but no client")
		}
		store := internalrepo.NewCHSeriesStore(ch.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
		store.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.InitSchema(ctx, store.Schema()); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		base = store
	default:
		store := internalrepo.NewCSVSeriesStore(cfg.Data.CSVDir)
		store.SetLogger(l)
		base = store
	}

	if cfg.Data.CacheTTL <= 0 || c == nil {
		return base, nil
	}
	cached := internalrepo.NewCachedSeriesStore(base, c, cfg.Data.CacheTTL)
	cached.SetLogger(l)
	return cached, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled; otherwise nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReportPublisher publishes reports to Kafka, or drops them when Kafka is off.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ReportPublisher {
	if producer == nil {
		return internalrepo.NopReportPublisher{}
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topics.Reports)
}

// ProvideInterpreter selects the external interpreter with rule fallback when an API key is set.
func ProvideInterpreter(cfg *config.Config, c cache.Service, l *applogger.Logger) (service.Interpreter, error) {
	rules := interpreter.NewRuleBased()
	if cfg.Interpreter.APIKey == "" {
		return rules, nil
	}
	ext, err := interpreter.NewExternal(cfg.Interpreter.BaseURL, cfg.Interpreter.APIKey, cfg.Interpreter.Timeout,
		interpreter.WithModel(cfg.Interpreter.Model),
		interpreter.WithRetries(cfg.Interpreter.MaxRetries),
		interpreter.WithCache(c, 6*time.Hour),
		interpreter.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}
	return interpreter.NewFallback(ext, rules, l), nil
}

// ProvideRiskConfig exposes the tuning block of the config.
func ProvideRiskConfig(cfg *config.Config) models.RiskConfig {
	return cfg.Risk
}

// ProvideRiskUseCase creates the risk use case.
func ProvideRiskUseCase(
	rc models.RiskConfig,
	store repository.SeriesStore,
	interp service.Interpreter,
	m repository.Metrics,
	pub repository.ReportPublisher,
	l *applogger.Logger,
) *usecase.RiskUseCase {
	return usecase.NewRiskUseCase(store, interp, m, rc,
		usecase.WithRiskLogger(l),
		usecase.WithReportPublisher(pub),
	)
}

// ProvideSuiteUseCase creates the multi-symbol suite runner.
func ProvideSuiteUseCase(cfg *config.Config, risk *usecase.RiskUseCase, l *applogger.Logger) *usecase.SuiteUseCase {
	return usecase.NewSuiteUseCase(risk, cfg.Suite.Symbols, cfg.Suite.Concurrency, cfg.Suite.Timeout, l)
}

// ProvideEndpointMetrics registers the risk API metrics.
func ProvideEndpointMetrics(reg prometheus.Registerer) *svcmetrics.EndpointMetrics {
	return svcmetrics.NewEndpointMetrics(reg)
}

// ProvideLimiter creates the per-client rate limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

// ProvideRequestQueue builds the Redis job queue when enabled; otherwise nil.
// It shares the connection of the Redis cache.
func ProvideRequestQueue(cfg *config.Config, c cache.Service, l *applogger.Logger) (*queue.RedisQueue, error) {
	if !cfg.Queue.Enabled {
		return nil, nil
	}
	rc, ok := c.(interface{ Client() *redis.Client })
	if !ok {
		return nil, fmt.Errorf("queue needs a redis cache, got %T", c)
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		Poll:       cfg.Queue.Poll,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue")), nil
}

// ProvideRiskJobs registers the risk request job on the queue; nil without a queue.
func ProvideRiskJobs(cfg *config.Config, risk *usecase.RiskUseCase, q *queue.RedisQueue, c cache.Service, l *applogger.Logger) *usecase.RiskJobs {
	if q == nil {
		return nil
	}
	jobs := usecase.NewRiskJobs(risk, q, c, cfg.Queue.StatusTTL, l)
	q.RegisterJob(jobs)
	return jobs
}

// ProvideIngestService streams live trades into the series store when enabled; otherwise nil.
func ProvideIngestService(
	cfg *config.Config,
	store repository.SeriesStore,
	risk *usecase.RiskUseCase,
	m repository.Metrics,
	l *applogger.Logger,
) *ingest.Service {
	if !cfg.Stream.Enabled {
		return nil
	}
	opts := []ingest.SinkOption{ingest.WithSinkLogger(l)}
	if cfg.Stream.Rescore {
		opts = append(opts, ingest.WithAfterSave(func(ctx context.Context, symbol string, iv models.Interval) {
			_, err := risk.Analyze(ctx, models.AnalyzeRequest{Symbol: symbol, Interval: string(iv), Bars: cfg.Data.Bars})
			if err != nil && usecase.ErrorKind(err) != "insufficient_history" {
				l.Warn("rescore failed", applogger.String("symbol", symbol), applogger.Error(err))
			}
		}))
	}
	feed := stream.New(cfg.Stream.URL, cfg.Stream.Token, cfg.Stream.Symbols,
		stream.WithReconnectDelay(cfg.Stream.ReconnectDelay),
		stream.WithPingInterval(cfg.Stream.PingInterval),
		stream.WithLogger(l),
	)
	agg := ingest.NewAggregator(models.Interval(cfg.Stream.Interval), ingest.NewStoreSink(store, opts...), m,
		ingest.WithBufferSize(cfg.Stream.BufferSize),
		ingest.WithAggregatorLogger(l),
	)
	return ingest.NewService(feed, agg, l)
}

// ProvideRiskHandler creates the risk API handler with health checks for the live dependencies.
func ProvideRiskHandler(
	l *applogger.Logger,
	risk *usecase.RiskUseCase,
	suite *usecase.SuiteUseCase,
	em *svcmetrics.EndpointMetrics,
	limiter *ratelimit.Limiter,
	jobs *usecase.RiskJobs,
	ch *pkgch.Client,
	c cache.Service,
) *api.RiskEchoHandler {
	h := api.NewRiskEchoHandler(l, risk, suite, em, limiter)
	if jobs != nil {
		h.WithJobs(jobs)
	}
	if ch != nil {
		h.WithHealthCheck("clickhouse", ch)
	}
	if hc, ok := c.(api.HealthChecker); ok {
		h.WithHealthCheck("redis", hc)
	}
	return h
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.RiskEchoHandler) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(path, nil),
		xhttp.WithLogger(l),
	)
}

// ProvideKafkaConsumer creates the request consumer when Kafka is enabled; otherwise nil.
func ProvideKafkaConsumer(cfg *config.Config, reg prometheus.Registerer, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	pkgkafka.SetConsumerMetricsRegisterer(reg)
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaRequestsHandler handles the request topic.
func ProvideKafkaRequestsHandler(
	cfg *config.Config,
	risk *usecase.RiskUseCase,
	m repository.Metrics,
	c cache.Service,
	l *applogger.Logger,
) *usecase.KafkaRequestsHandler {
	return usecase.NewKafkaRequestsHandler(cfg.Kafka.Topics.Requests, risk, m, c, l)
}

// ProvideApp assembles the service and hands it every client to close on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRequestsHandler,
	limiter *ratelimit.Limiter,
	q *queue.RedisQueue,
	ing *ingest.Service,
	ch *pkgch.Client,
	c cache.Service,
	producer *pkgkafka.Producer,
) *server.App {
	var handler pkgkafka.MessageHandler
	if consumer != nil {
		handler = kh
	}
	app := server.New(cfg, l, srv, consumer, handler, limiter)
	if q != nil {
		app.AddWorker("request queue", q)
	}
	if ing != nil {
		app.AddWorker("live ingest", ing)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	app.AddCloser("cache", c)
	if producer != nil {
		app.AddCloser("kafka producer", producer)
		if cfg.Logger.Collect {
			l.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   cfg.Logger.CollectInterval,
				CountThreshold: cfg.Logger.CollectMax,
				Topic:          cfg.Kafka.Topics.Logs,
				Publisher:      producer,
			})
			app.AddCloser("log collector", closerFunc(func() error {
				l.RemoveCollector()
				return nil
			}))
		}
	}
	return app
}

// ProvideToolkit bundles the CLI dependencies with the clients it must close.
func ProvideToolkit(
	l *applogger.Logger,
	store repository.SeriesStore,
	risk *usecase.RiskUseCase,
	suite *usecase.SuiteUseCase,
	ing *ingest.Service,
	ch *pkgch.Client,
	c cache.Service,
	pub repository.ReportPublisher,
) *Toolkit {
	t := &Toolkit{Logger: l, Store: store, Risk: risk, Suite: suite, Ingest: ing}
	if ch != nil {
		t.closers = append(t.closers, ch)
	}
	t.closers = append(t.closers, c, pub)
	return t
}
