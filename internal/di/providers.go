package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/domain/repository"
	"RoomArb/internal/handler/api"
	internalrepo "RoomArb/internal/repository"
	"RoomArb/internal/service/liveprice"
	apimetrics "RoomArb/internal/service/metrics"
	"RoomArb/internal/service/ratelimit"
	"RoomArb/internal/services/decision"
	"RoomArb/internal/services/pricing"
	"RoomArb/internal/usecase"
	"RoomArb/pkg/cache"
	pkgch "RoomArb/pkg/clickhouse"
	"RoomArb/pkg/config"
	pkgkafka "RoomArb/pkg/kafka"
	applogger "RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
	pkgpg "RoomArb/pkg/postgres"
	"RoomArb/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Log.Pretty {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: format, Output: "stdout"})
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	apimetrics.Register(reg)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvidePostgresClient opens the booking and search database.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime, 5*time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the Postgres-backed signal store.
func ProvideSignalStore(pg *pkgpg.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.PGSignalStore {
	return internalrepo.NewPGSignalStore(pg,
		internalrepo.WithQueryTimeout(cfg.Postgres.QueryTimeout),
		internalrepo.WithPGLogger(l.With(applogger.String("component", "signal_store"))),
	)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.CompetitorSchema); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// noCompetitors stands in when ClickHouse is disabled; the predictor falls back
// to its documented competitor defaults.
type noCompetitors struct{}

func (noCompetitors) FetchCompetitorSnapshot(context.Context, string, time.Time, time.Time) (models.CompetitorSnapshot, error) {
	return models.CompetitorSnapshot{}, models.Upstream("competitor snapshot", fmt.Errorf("clickhouse disabled"))
}

func (noCompetitors) Health(context.Context) error { return nil }
func (noCompetitors) Close() error                 { return nil }

// ProvideCompetitorStore creates the competitor store.
func ProvideCompetitorStore(ch *pkgch.Client, l *applogger.Logger) repository.CompetitorStore {
	if ch == nil {
		return noCompetitors{}
	}
	s := internalrepo.NewCHCompetitorStore(ch)
	s.SetLogger(l.With(applogger.String("component", "competitor_store")))
	return s
}

// ProvideCache creates the live-price cache: memory only, or memory over Redis.
func ProvideCache(cfg *config.Config) (*cache.LayeredCache, error) {
	var backing cache.Service
	if cfg.Redis.Enabled {
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
		backing = rc
	}
	return cache.NewLayeredCache(backing,
		cache.WithLayeredMemorySize(5000),
		cache.WithLayeredMemoryTTL(cfg.Redis.TTL),
	), nil
}

// ProvideLivePriceClient creates the supplier search client.
func ProvideLivePriceClient(cfg *config.Config, c *cache.LayeredCache, m repository.Metrics, l *applogger.Logger) *liveprice.Client {
	return liveprice.New(liveprice.Config{
		BaseURL:         cfg.LivePrice.BaseURL,
		APIKey:          cfg.LivePrice.APIKey,
		Timeout:         cfg.LivePrice.Timeout,
		RequestsPerSec:  cfg.LivePrice.RequestsPerSec,
		Burst:           cfg.LivePrice.Burst,
		CacheTTL:        cfg.LivePrice.CacheTTL,
		BreakerFailures: cfg.LivePrice.BreakerFailures,
		BreakerTimeout:  cfg.LivePrice.BreakerTimeout,
	},
		liveprice.WithCache(c),
		liveprice.WithMetrics(m),
		liveprice.WithLogger(l.With(applogger.String("component", "live_price"))),
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchBytes, cfg.Kafka.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaPublisher wraps the producer, nil when Kafka is disabled.
func ProvideKafkaPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Opportunities: cfg.Kafka.Opportunities,
		Decisions:     cfg.Kafka.Decisions,
	})
	if cfg.Log.Collect {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.FlushEvery,
			Topic:        cfg.Log.Topic,
			Source:       "roomarb",
			Publisher:    pub,
		})
	}
	return pub
}

// publisherOf avoids handing a typed nil to code that checks the interface.
func publisherOf(p *internalrepo.KafkaPublisher) repository.Publisher {
	if p == nil {
		return nil
	}
	return p
}

// ProvideSynthesizer creates the decision synthesizer.
func ProvideSynthesizer(cfg *config.Config) *decision.Synthesizer {
	dc := decision.DefaultConfig()
	if len(cfg.Pipeline.AgentWeights) > 0 {
		dc.Weights = make(map[models.AgentID]float64, len(cfg.Pipeline.AgentWeights))
		for id, w := range cfg.Pipeline.AgentWeights {
			dc.Weights[models.AgentID(id)] = w
		}
	}
	dc.MinReports = cfg.Pipeline.MinReports
	return decision.New(dc)
}

// ProvideAnalysisUseCase creates the analysis pipeline.
func ProvideAnalysisUseCase(
	store *internalrepo.PGSignalStore,
	synth *decision.Synthesizer,
	pub *internalrepo.KafkaPublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(store, synth,
		usecase.WithAnalysisPublisher(publisherOf(pub)),
		usecase.WithAnalysisMetrics(m),
		usecase.WithAnalysisLogger(l.With(applogger.String("component", "analysis"))),
		usecase.WithAnalysisTimeout(cfg.Pipeline.AnalysisTimeout),
		usecase.WithForecastDays(cfg.Pipeline.ForecastDays),
	)
}

// ProvidePredictor creates the ensemble price predictor.
func ProvidePredictor(store *internalrepo.PGSignalStore, comp repository.CompetitorStore, m repository.Metrics, l *applogger.Logger) *pricing.Predictor {
	return pricing.NewPredictor(store, comp,
		pricing.WithPredictorMetrics(m),
		pricing.WithPredictorLogger(l.With(applogger.String("component", "predictor"))),
	)
}

// ProvideOptimizer creates the elasticity optimizer.
func ProvideOptimizer(store *internalrepo.PGSignalStore, m repository.Metrics, l *applogger.Logger) *pricing.Optimizer {
	return pricing.NewOptimizer(store,
		pricing.WithOptimizerMetrics(m),
		pricing.WithOptimizerLogger(l.With(applogger.String("component", "elasticity"))),
	)
}

// ProvideOpportunityFinder creates the live opportunity scanner.
func ProvideOpportunityFinder(
	store *internalrepo.PGSignalStore,
	live *liveprice.Client,
	predictor *pricing.Predictor,
	pub *internalrepo.KafkaPublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.OpportunityFinder {
	return usecase.NewOpportunityFinder(store, live,
		usecase.WithFinderPredictor(predictor),
		usecase.WithFinderPublisher(publisherOf(pub)),
		usecase.WithFinderMetrics(m),
		usecase.WithFinderLogger(l.With(applogger.String("component", "finder"))),
		usecase.WithCandidateHotels(cfg.Pipeline.CandidateHotels),
		usecase.WithLookupWorkers(cfg.Pipeline.LookupWorkers),
		usecase.WithLookupTimeout(cfg.Pipeline.LookupTimeout),
	)
}

// ProvidePortfolioOptimizer creates the budget-constrained selector.
func ProvidePortfolioOptimizer(m repository.Metrics, l *applogger.Logger) *usecase.PortfolioOptimizer {
	return usecase.NewPortfolioOptimizer(m, l.With(applogger.String("component", "portfolio")))
}

// ProvideRateLimiter creates the per-client API limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.RequestsPerSec, cfg.Server.RateLimit.Burst)
}

// ProvideHandler assembles the HTTP handler.
func ProvideHandler(
	l *applogger.Logger,
	analysis *usecase.AnalysisUseCase,
	predictor *pricing.Predictor,
	optimizer *pricing.Optimizer,
	finder *usecase.OpportunityFinder,
	portfolio *usecase.PortfolioOptimizer,
	store *internalrepo.PGSignalStore,
	comp repository.CompetitorStore,
	limiter *ratelimit.Limiter,
) *api.PipelineEchoHandler {
	return api.NewPipelineEchoHandler(l, api.Services{
		Analysis:   analysis,
		Predictor:  predictor,
		Elasticity: optimizer,
		Finder:     finder,
		Portfolio:  portfolio,
		Health: []api.HealthCheck{
			{Name: "postgres", Check: store.Health},
			{Name: "clickhouse", Check: comp.Health},
		},
	}, limiter)
}

// ProvideApp creates the application server. Resources close in reverse order.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.PipelineEchoHandler,
	reg *prometheus.Registry,
	store *internalrepo.PGSignalStore,
	comp repository.CompetitorStore,
	c *cache.LayeredCache,
	pub *internalrepo.KafkaPublisher,
) *server.App {
	resources := []server.Resource{
		{Name: "postgres", Close: store.Close},
		{Name: "clickhouse", Close: comp.Close},
		{Name: "cache", Close: c.Close},
	}
	if pub != nil {
		resources = append(resources, server.Resource{Name: "kafka", Close: pub.Close})
	}
	return server.New(cfg, l, h, reg, resources...)
}

// Components are the use cases a one-shot command needs, plus the app for cleanup.
type Components struct {
	App    *server.App
	Finder *usecase.OpportunityFinder
}

func ProvideComponents(app *server.App, finder *usecase.OpportunityFinder) *Components {
	return &Components{App: app, Finder: finder}
}
