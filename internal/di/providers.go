package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"MarketBrief/internal/domain/repository"
	"MarketBrief/internal/handler/api"
	internalrepo "MarketBrief/internal/repository"
	"MarketBrief/internal/service/apify"
	svccache "MarketBrief/internal/service/cache"
	"MarketBrief/internal/service/fetcher"
	"MarketBrief/internal/service/llm"
	"MarketBrief/internal/service/ratelimit"
	"MarketBrief/internal/service/report"
	"MarketBrief/internal/service/resolver"
	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/cache"
	pkgch "MarketBrief/pkg/clickhouse"
	"MarketBrief/pkg/config"
	pkgkafka "MarketBrief/pkg/kafka"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/metrics"
	"MarketBrief/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{
		Level:  "info",
		Format: format,
		Output: "stdout",
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCacheService picks the blob cache backend: layered Redis when
// configured, process memory otherwise.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, port := splitAddr(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideResolverCache picks the resolved-links cache backend.
func ProvideResolverCache(cfg *config.Config) svccache.BytesCache {
	if cfg.Redis.Enabled {
		return svccache.NewRedisCache(svccache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return svccache.NewTTLCache()
}

// ProvideClickHouseClient creates the ledger backend. Returns nil when
// ClickHouse is disabled.
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
	if err := client.InitSchema(ctx, internalrepo.ChargeLedgerSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates the output producer. Returns nil when Kafka
// is disabled.
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

// ProvideBlobStore creates the blob store over the cache service.
func ProvideBlobStore(c cache.Service, cfg *config.Config, lgr *applogger.Logger) repository.BlobStore {
	ttl := cfg.Redis.BlobTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return internalrepo.NewCacheBlobStore(c, ttl, lgr)
}

// ProvideOutputSink creates the run-record sink: Kafka when available, the
// log sink otherwise.
func ProvideOutputSink(producer *pkgkafka.Producer, cfg *config.Config, lgr *applogger.Logger) repository.OutputSink {
	if producer != nil {
		return internalrepo.NewKafkaOutputSink(producer, cfg.Kafka.Topic, lgr)
	}
	return internalrepo.NewLogOutputSink(lgr)
}

// ProvideCharger creates the charge ledger.
func ProvideCharger(m repository.Metrics, ch *pkgch.Client, lgr *applogger.Logger) repository.Charger {
	ledger := internalrepo.NewChargeLedger(m, lgr)
	if ch != nil {
		ledger.WithClickHouse(ch)
	}
	return ledger
}

// ProvideJobRunner creates the actor-run client.
func ProvideJobRunner(cfg *config.Config, lgr *applogger.Logger) repository.JobRunner {
	return apify.New(cfg.Apify.Token, lgr,
		apify.WithBaseURL(cfg.Apify.BaseURL),
		apify.WithTimeout(cfg.Apify.FetchTimeout),
	)
}

// ProvideMarketData creates the market snapshot fetcher.
func ProvideMarketData(runner repository.JobRunner, blobs repository.BlobStore, charger repository.Charger, m repository.Metrics, lgr *applogger.Logger) repository.MarketData {
	return fetcher.NewMarket(runner, blobs, charger, m, lgr)
}

// ProvideProfileSource creates the professional-profile fetcher.
func ProvideProfileSource(runner repository.JobRunner, blobs repository.BlobStore, charger repository.Charger, m repository.Metrics, lgr *applogger.Logger) repository.ProfileSource {
	return fetcher.NewProfile(runner, blobs, charger, m, lgr)
}

// ProvideStartupSource creates the startup-database fetcher.
func ProvideStartupSource(runner repository.JobRunner, blobs repository.BlobStore, charger repository.Charger, m repository.Metrics, lgr *applogger.Logger) repository.StartupSource {
	return fetcher.NewStartup(runner, blobs, charger, m, lgr)
}

// ProvideWebSearch creates the web search fetcher.
func ProvideWebSearch(runner repository.JobRunner, charger repository.Charger, m repository.Metrics, lgr *applogger.Logger) repository.WebSearch {
	return fetcher.NewSearch(runner, charger, m, lgr)
}

// ProvideLLMClient creates the structured-output generative client.
func ProvideLLMClient(cfg *config.Config, lgr *applogger.Logger) *llm.Client {
	return llm.New(llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		RPS:         cfg.OpenAI.RPS,
	}, ratelimit.New(), lgr)
}

// ProvideLinkResolver creates the company-link resolver.
func ProvideLinkResolver(gen *llm.Client, search repository.WebSearch, c svccache.BytesCache, cfg *config.Config, lgr *applogger.Logger) repository.LinkResolver {
	return resolver.New(gen, search, c, lgr,
		resolver.WithSearchHits(cfg.Run.MaxSearchHits))
}

// ProvideReportWriter creates the report generator.
func ProvideReportWriter(gen *llm.Client, lgr *applogger.Logger) repository.ReportWriter {
	return report.New(gen, lgr)
}

// ProvideReportRun creates the aggregation orchestrator.
func ProvideReportRun(
	res repository.LinkResolver,
	market repository.MarketData,
	profile repository.ProfileSource,
	startup repository.StartupSource,
	writer repository.ReportWriter,
	blobs repository.BlobStore,
	sink repository.OutputSink,
	charger repository.Charger,
	m repository.Metrics,
	cfg *config.Config,
	lgr *applogger.Logger,
) *usecase.ReportRun {
	return usecase.NewReportRun(usecase.Deps{
		Resolver: res,
		Market:   market,
		Profile:  profile,
		Startup:  startup,
		Writer:   writer,
		Blobs:    blobs,
		Sink:     sink,
		Charger:  charger,
		Metrics:  m,
		Logger:   lgr,
	},
		usecase.WithBenchmarkTicker(cfg.Run.BenchmarkTicker),
		usecase.WithDefaultPastDays(cfg.Run.PastDays),
		usecase.WithFetchTimeout(cfg.Apify.FetchTimeout),
	)
}

// ProvideReportsHandler creates the HTTP handler.
func ProvideReportsHandler(lgr *applogger.Logger, run *usecase.ReportRun, blobs repository.BlobStore, cfg *config.Config) *api.ReportsHandler {
	return api.NewReportsHandler(lgr, run, blobs, cfg.Run.PastDays)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	run *usecase.ReportRun,
	handler *api.ReportsHandler,
	sink repository.OutputSink,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	return server.New(cfg, lgr, run, handler, sink, chClient, producer)
}
