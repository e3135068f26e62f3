package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"BTCPulse/internal/domain/repository"
	domsvc "BTCPulse/internal/domain/service"
	"BTCPulse/internal/handler/api"
	internalrepo "BTCPulse/internal/repository"
	"BTCPulse/internal/service/exchange"
	"BTCPulse/internal/service/ratelimit"
	"BTCPulse/internal/services/features"
	"BTCPulse/internal/services/regime"
	"BTCPulse/internal/services/validation"
	"BTCPulse/internal/usecase"
	"BTCPulse/pkg/cache"
	pkgch "BTCPulse/pkg/clickhouse"
	"BTCPulse/pkg/config"
	xhttp "BTCPulse/pkg/http"
	pkgkafka "BTCPulse/pkg/kafka"
	applogger "BTCPulse/pkg/logger"
	"BTCPulse/pkg/metrics"
	"BTCPulse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. Error logs are also aggregated
// onto Kafka when the collector is enabled and a producer exists.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Source:         filepath.Base(os.Args[0]),
			Publisher:      producer,
		})
	}
	return l, func() { _ = l.Close() }, nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op one when metrics are disabled.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	pkgkafka.RegisterMetrics(prometheus.DefaultRegisterer)
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideSources(cfg *config.Config, l *applogger.Logger, m repository.Metrics) []domsvc.Source {
	return exchange.NewSources(cfg.Exchanges, exchange.WithLogger(l), exchange.WithMetrics(m))
}

func ProvideFileStore(cfg *config.Config) *internalrepo.FileStore {
	return internalrepo.NewFileStore(cfg.Storage)
}

func ProvideFetchOrchestrator(cfg *config.Config, sources []domsvc.Source, store *internalrepo.FileStore, l *applogger.Logger, m repository.Metrics) *usecase.FetchOrchestrator {
	opts := []usecase.FetchOption{usecase.WithFetchLogger(l), usecase.WithFetchMetrics(m)}
	if cfg.Fetch.SaveRaw {
		opts = append(opts, usecase.WithRawStore(store))
	}
	return usecase.NewFetchOrchestrator(sources, opts...)
}

func ProvideValidator(cfg *config.Config) *validation.Validator {
	return validation.NewValidator(validation.ThresholdsFromConfig(cfg.Validation))
}

func ProvideAuditor(cfg *config.Config) *validation.Auditor {
	return validation.NewAuditor(cfg.Validation.VolumeZScoreWindow, cfg.Validation.VolumeZScoreLimit)
}

// ProvideCache returns a Redis-backed layered cache, falling back to memory
// when Redis is disabled or unreachable.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err == nil {
			lc := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(cfg.Server.CacheTTL))
			return lc, func() { _ = lc.Close() }, nil
		}
		l.Warn("redis unavailable, using in-process cache", applogger.Error(err))
	}
	mc := cache.NewMemoryCache()
	return mc, func() { _ = mc.Close() }, nil
}

// ProvideClickHouseMirror opens the optional ClickHouse mirror and creates its table.
func ProvideClickHouseMirror(cfg *config.Config, l *applogger.Logger) (repository.CandleMirror, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	mirror := internalrepo.NewCHCandleStore(client, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mirror.Init(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return mirror, func() { _ = client.Close() }, nil
}

// ProvideEventPublisher announces series updates on Kafka when enabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil || !cfg.Fetch.PublishUpdates {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

func ProvidePipeline(
	cfg *config.Config,
	fetcher *usecase.FetchOrchestrator,
	v *validation.Validator,
	a *validation.Auditor,
	store *internalrepo.FileStore,
	lock cache.Service,
	mirror repository.CandleMirror,
	publisher repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineConfigFrom(cfg.Fetch), fetcher, v, a, store,
		usecase.WithLock(lock),
		usecase.WithMirror(mirror),
		usecase.WithPublisher(publisher),
		usecase.WithPipelineMetrics(m),
		usecase.WithPipelineLogger(l),
	)
}

func ProvideExtractor(l *applogger.Logger) *features.Extractor {
	return features.NewExtractor(features.WithLogger(l))
}

func ProvideTrainer(cfg *config.Config, l *applogger.Logger) *regime.Trainer {
	return regime.NewTrainer(regime.TrainerConfigFrom(cfg.Model), l)
}

func ProvideClassifier(cfg *config.Config, l *applogger.Logger) *regime.Classifier {
	opts := []regime.ClassifierOption{regime.WithClassifierLogger(l)}
	if cfg.Model.DisableAmplifier {
		opts = append(opts, regime.WithAmplifier(nil))
	}
	return regime.NewClassifier(opts...)
}

func ProvideTrainingUseCase(cfg *config.Config, store *internalrepo.FileStore, ex *features.Extractor, tr *regime.Trainer, l *applogger.Logger) *usecase.TrainingUseCase {
	return usecase.NewTrainingUseCase(store, store, ex, tr, cfg.Model.Dir,
		usecase.WithFeatureSource(cfg.Fetch.FeatureSource),
		usecase.WithTrainingLogger(l),
	)
}

// ProvidePredictionUseCase loads the model eagerly. A missing model is not
// fatal; predictions report MODEL_NOT_TRAINED until one appears.
func ProvidePredictionUseCase(cfg *config.Config, store *internalrepo.FileStore, ex *features.Extractor, c *regime.Classifier, l *applogger.Logger) *usecase.PredictionUseCase {
	uc := usecase.NewPredictionUseCase(store, store, ex, c, cfg.Model.Dir, l)
	if err := uc.LoadModel(); err != nil {
		l.Warn("regime model not loaded", applogger.Error(err))
	}
	return uc
}

func ProvideMarketQuery(cfg *config.Config, store *internalrepo.FileStore, c cache.Service, p *usecase.PredictionUseCase, l *applogger.Logger) (*usecase.MarketQueryUseCase, func()) {
	mq := usecase.NewMarketQueryUseCase(store,
		usecase.WithMarketCache(c, cfg.Server.CacheTTL),
		usecase.WithPredictor(p),
		usecase.WithMarketLogger(l),
	)
	return mq, func() {
		if err := mq.Close(); err != nil {
			l.Warn("market query close failed", applogger.Error(err))
		}
	}
}

func ProvideMarketHandler(l *applogger.Logger, mq *usecase.MarketQueryUseCase) *api.MarketHandler {
	return api.NewMarketHandler(l, mq)
}

func ProvidePriceStream(cfg *config.Config, l *applogger.Logger, mq *usecase.MarketQueryUseCase) *api.PriceStream {
	return api.NewPriceStream(l, mq,
		api.WithPushInterval(cfg.Server.PushInterval),
		api.WithPingInterval(cfg.Server.PingInterval),
	)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.RateLimit.Disabled {
		return nil
	}
	return ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, market *api.MarketHandler, stream *api.PriceStream, limiter *ratelimit.Limiter) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithRateLimiter(limiter))
	}
	return xhttp.NewServer(xhttp.Handlers{market, stream}, l, opts...)
}

// ProvideKafkaConsumer creates the series events consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideSeriesEventsHandler(cfg *config.Config, mq *usecase.MarketQueryUseCase, m repository.Metrics, l *applogger.Logger, stream *api.PriceStream) *usecase.SeriesEventsHandler {
	return usecase.NewSeriesEventsHandler(cfg.Kafka.Topic, mq, m, l, stream)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	stream *api.PriceStream,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	events *usecase.SeriesEventsHandler,
) *server.App {
	return server.New(cfg, l, srv, stream, limiter, consumer, events)
}

func ProvideBackupUseCase(cfg *config.Config, l *applogger.Logger) *usecase.BackupUseCase {
	return usecase.NewBackupUseCase(cfg.Storage.DataDir, cfg.Backup.Dir, cfg.Backup.Retention, l)
}
