package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	domrepo "github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/handler/api"
	mid "github.com/GabrielWalak/delivery-prediction/internal/middleware"
	internalrepo "github.com/GabrielWalak/delivery-prediction/internal/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/services/anomaly"
	"github.com/GabrielWalak/delivery-prediction/internal/services/features"
	"github.com/GabrielWalak/delivery-prediction/internal/services/regression"
	"github.com/GabrielWalak/delivery-prediction/internal/usecase"
	"github.com/GabrielWalak/delivery-prediction/pkg/cache"
	pkgch "github.com/GabrielWalak/delivery-prediction/pkg/clickhouse"
	"github.com/GabrielWalak/delivery-prediction/pkg/config"
	xhttp "github.com/GabrielWalak/delivery-prediction/pkg/http"
	pkgkafka "github.com/GabrielWalak/delivery-prediction/pkg/kafka"
	applogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
	"github.com/GabrielWalak/delivery-prediction/pkg/metrics"
	"github.com/GabrielWalak/delivery-prediction/pkg/server"
)

const connectTimeout = 10 * time.Second

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
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

// ProvideLogger builds the app logger and, when enabled, attaches the error
// collector that ships aggregated entries to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   cfg.Logger.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logger.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logger.Collector.FlushInterval,
			CountThreshold: cfg.Logger.Collector.CountThreshold,
			Topic:          cfg.Logger.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when disabled.
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideOrderStore creates the ClickHouse order history table and store.
func ProvideOrderStore(client *pkgch.Client, cfg *config.Config) (*internalrepo.ClickHouseOrderStore, error) {
	if client == nil {
		return nil, nil
	}
	store, err := internalrepo.NewClickHouseOrderStore(client.DB(), cfg.ClickHouse.Database, cfg.ClickHouse.FetchLimit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePostgresDB opens the shared Postgres pool, or returns nil when no DSN
// is configured.
func ProvidePostgresDB(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Postgres.DSN == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return internalrepo.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns)
}

// ProvideOrderSource picks the training data source named in the config.
func ProvideOrderSource(
	cfg *config.Config,
	store *internalrepo.ClickHouseOrderStore,
	pg *sqlx.DB,
	log *applogger.Logger,
) (domrepo.OrderSource, error) {
	switch cfg.Training.Source {
	case "csv":
		loc, err := cfg.Training.Location()
		if err != nil {
			return nil, fmt.Errorf("training timezone: %w", err)
		}
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.Training.CSV.Timeout))
		return internalrepo.NewCSVOrderSource(cfg.Training.CSV.Path, cfg.Training.CSV.URL, client, log,
			internalrepo.WithCSVLocation(loc))
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("clickhouse source requires clickhouse to be enabled")
		}
		return store, nil
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("postgres source requires postgres.dsn")
		}
		return internalrepo.NewPostgresOrderSource(pg, cfg.Postgres.OrdersTable, cfg.Postgres.FetchLimit)
	default:
		return internalrepo.NewSyntheticOrderSource(cfg.Training.Synthetic.Orders, cfg.Training.Seed), nil
	}
}

func ProvideFeatureProcessor(cfg *config.Config) (*features.Processor, error) {
	loc, err := cfg.Training.Location()
	if err != nil {
		return nil, fmt.Errorf("training timezone: %w", err)
	}
	return features.NewProcessor(features.WithLocation(loc)), nil
}

func ProvideOutlierFilter(cfg *config.Config) *anomaly.IsolationForest {
	f := cfg.Training.IsolationForest
	return anomaly.NewIsolationForest(anomaly.Config{
		Trees:         f.Trees,
		SampleSize:    f.SampleSize,
		Contamination: f.Contamination,
		Seed:          cfg.Training.Seed,
	})
}

func ProvideTrainer(cfg *config.Config) *regression.Trainer {
	b := cfg.Training.Boosting
	return regression.NewTrainer(regression.TrainerConfig{
		TestRatio: cfg.Training.TestRatio,
		Seed:      cfg.Training.Seed,
		MinRows:   cfg.Training.MinRows,
		Boosting: regression.BoostingConfig{
			Rounds:         b.Rounds,
			LearningRate:   b.LearningRate,
			MaxDepth:       b.MaxDepth,
			MinSamplesLeaf: b.MinSamplesLeaf,
			Bins:           b.Bins,
		},
	})
}

// ProvideCache builds the prediction cache backend, or nil when caching is off.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.Backend == "redis" {
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
			cache.WithRedisPool(cfg.Redis.PoolSize),
			cache.WithRedisPrefix(cfg.Cache.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MaxSize),
		cache.WithMemoryTTL(cfg.Cache.TTL),
	), nil
}

// ProvidePredictionEngine assembles the engine; optional collaborators are
// attached only when configured.
func ProvidePredictionEngine(
	cfg *config.Config,
	source domrepo.OrderSource,
	processor *features.Processor,
	filter *anomaly.IsolationForest,
	trainer *regression.Trainer,
	cacheSvc cache.Service,
	producer *pkgkafka.Producer,
	rec *metrics.Recorder,
	log *applogger.Logger,
) *usecase.PredictionEngine {
	opts := []usecase.EngineOption{
		usecase.WithEngineMetrics(rec),
		usecase.WithEngineLogger(log),
	}
	if cacheSvc != nil {
		opts = append(opts, usecase.WithPredictionCache(internalrepo.NewCachedPredictions(cacheSvc, cfg.Cache.TTL)))
	}
	if producer != nil {
		opts = append(opts, usecase.WithPredictionPublisher(
			internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.PredictionsTopic)))
	}
	return usecase.NewPredictionEngine(source, processor, filter, trainer, opts...)
}

// ProvideTrainingRecorder fans training reports out to every configured store.
func ProvideTrainingRecorder(cfg *config.Config, pg *sqlx.DB) (domrepo.TrainingRecorder, error) {
	var recorders internalrepo.MultiRecorder
	if cfg.Postgres.RecordRuns && pg != nil {
		recorders = append(recorders, internalrepo.NewPostgresTrainingRecorder(pg))
	}
	if cfg.SQLite.RecordRuns {
		r, err := internalrepo.NewSQLiteTrainingRecorder(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, r)
	}
	if len(recorders) == 0 {
		return nil, nil
	}
	return recorders, nil
}

func ProvideDeliveryHandler(log *applogger.Logger, engine *usecase.PredictionEngine) *api.DeliveryEchoHandler {
	return api.NewDeliveryEchoHandler(log, engine)
}

// ProvideHTTPServer creates the Echo server around the delivery handler.
func ProvideHTTPServer(cfg *config.Config, h *api.DeliveryEchoHandler, log *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(log),
		xhttp.WithMetrics(metricsPath, cfg.Server.SlowThreshold),
		xhttp.WithDocs(cfg.Server.Docs),
	)
}

// ProvideOrderBatcher groups consumed orders into ClickHouse batch inserts, or
// is nil when the consumer is disabled.
func ProvideOrderBatcher(
	cfg *config.Config,
	store *internalrepo.ClickHouseOrderStore,
	rec *metrics.Recorder,
	log *applogger.Logger,
) *mid.OrderBatcher {
	if !cfg.Kafka.Consumer.Enabled || store == nil {
		return nil
	}
	return mid.NewOrderBatcher(store, rec,
		mid.WithMaxBatch(cfg.ClickHouse.BatchSize),
		mid.WithLinger(cfg.ClickHouse.BatchLinger),
		mid.WithBatcherLogger(log),
	)
}

// ProvideOrderHistoryHandler stores delivered-order events, or is nil when the
// consumer is disabled.
func ProvideOrderHistoryHandler(
	cfg *config.Config,
	batcher *mid.OrderBatcher,
	rec *metrics.Recorder,
	log *applogger.Logger,
) *usecase.OrderHistoryHandler {
	if batcher == nil {
		return nil
	}
	return usecase.NewOrderHistoryHandler(cfg.Kafka.OrdersTopic, batcher, rec, log)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.HookFuncs{
			Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
				log.Warn("order event rejected",
					applogger.String("topic", topic),
					applogger.Int("partition", km.Partition),
					applogger.Int64("offset", km.Offset),
					applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
					applogger.Error(err),
				)
			},
		},
	))
	return consumer, nil
}

// ProvideApp ties the lifecycle together. Closers run in the listed order,
// so the producer goes last after everything that may still publish.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.PredictionEngine,
	httpServer *xhttp.Server,
	recorder domrepo.TrainingRecorder,
	consumer *pkgkafka.Consumer,
	orders *usecase.OrderHistoryHandler,
	batcher *mid.OrderBatcher,
	cacheSvc cache.Service,
	chClient *pkgch.Client,
	pg *sqlx.DB,
	producer *pkgkafka.Producer,
) *server.App {
	opts := []server.AppOption{
		server.WithTimeouts(cfg.Training.Timeout, cfg.Server.ShutdownTimeout),
	}
	if recorder != nil {
		opts = append(opts, server.WithTrainingRecorder(recorder))
	}
	if consumer != nil && orders != nil {
		opts = append(opts, server.WithConsumer(consumer, orders))
	}
	if batcher != nil {
		opts = append(opts, server.WithCloser("order batcher", batcher))
	}
	if cacheSvc != nil {
		opts = append(opts, server.WithCloser("cache", cacheSvc))
	}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	if pg != nil {
		opts = append(opts, server.WithCloser("postgres", pg))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	return server.New(log, engine, httpServer, opts...)
}
