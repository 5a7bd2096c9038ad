//go:build wireinject
// +build wireinject

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"paperlink-discovery/internal/api"
	"paperlink-discovery/internal/api/handlers"
	"paperlink-discovery/internal/config"
	"paperlink-discovery/internal/messaging"
	"paperlink-discovery/internal/messaging/embedded"
	"paperlink-discovery/internal/providers"
	"paperlink-discovery/internal/providers/arxiv"
	"paperlink-discovery/internal/providers/exa"
	"paperlink-discovery/internal/providers/semantic_scholar"
	"paperlink-discovery/internal/providers/tavily"
	"paperlink-discovery/internal/repository"
	"paperlink-discovery/internal/services"

	"paperlink-discovery/internal/discovery/agent"
	"paperlink-discovery/internal/discovery/cache"
	"paperlink-discovery/internal/discovery/coordinator"
	"paperlink-discovery/internal/discovery/ratelimit"
	"paperlink-discovery/internal/discovery/synthesis"
	"paperlink-discovery/internal/discovery/task"
	"paperlink-discovery/internal/discovery/workers"
	"paperlink-discovery/internal/discovery/workers/crossref"
	"paperlink-discovery/internal/discovery/workers/perplexity"
	"paperlink-discovery/internal/discovery/workers/semanticscholar"

	"github.com/nats-io/nats.go/jetstream"
)

// Application represents the complete application with all dependencies
type Application struct {
	Config          *config.Config
	Database        *repository.Database
	Messaging       *messaging.Client
	EmbeddedManager *embedded.Manager
	Services        *services.Container
	Handlers        *handlers.Container
	Router          *gin.Engine
	Logger          *slog.Logger
	DiscoveryAgent  *agent.Agent
}

// NewApplication creates the main application instance
func NewApplication(
	cfg *config.Config,
	db *repository.Database,
	messaging *messaging.Client,
	embeddedManager *embedded.Manager,
	services *services.Container,
	handlers *handlers.Container,
	router *gin.Engine,
	logger *slog.Logger,
	discoveryAgent *agent.Agent,
) *Application {
	return &Application{
		Config:          cfg,
		Database:        db,
		Messaging:       messaging,
		EmbeddedManager: embeddedManager,
		Services:        services,
		Handlers:        handlers,
		Router:          router,
		Logger:          logger,
		DiscoveryAgent:  discoveryAgent,
	}
}

// Provider sets for Wire dependency injection
var ConfigProviderSet = wire.NewSet(
	config.LoadConfig,
	ProvideLogger,
)

var DatabaseProviderSet = wire.NewSet(
	ProvideDatabase,
	ProvideRepositories,
)

var MessagingProviderSet = wire.NewSet(
	ProvideEmbeddedManager,
	ProvideMessagingFromEmbedded,
)

var ServicesProviderSet = wire.NewSet(
	ProvideServices,
	ProvideProviderManager,
)

var HandlersProviderSet = wire.NewSet(
	ProvideHandlers,
)

var APIProviderSet = wire.NewSet(
	ProvideConcreteSearchService,
	ProvideConcretePaperService,
	ProvideConcreteAuthorService,
	ProvideConcreteHealthHandler,
	ProvideRouter,
)

// DiscoveryProviderSet wires the Related-Paper Discovery Core (C1-C7).
var DiscoveryProviderSet = wire.NewSet(
	ProvideDiscoveryCacheKV,
	ProvideDiscoveryTaskKV,
	ProvideDiscoveryCache,
	ProvideRateLimitManager,
	ProvideCrossrefWorker,
	ProvideSemanticScholarWorker,
	ProvidePerplexityWorker,
	ProvideSourceWorkers,
	ProvideCreditLedger,
	ProvideTaskSubstrate,
	ProvideSynthesisEngine,
	ProvideCoordinator,
	ProvidePaperStore,
	ProvideDiscoveryAgent,
	ProvideDiscoveryHandler,
)

// ApplicationProviderSet combines all provider sets
var ApplicationProviderSet = wire.NewSet(
	ConfigProviderSet,
	DatabaseProviderSet,
	MessagingProviderSet,
	ServicesProviderSet,
	HandlersProviderSet,
	APIProviderSet,
	DiscoveryProviderSet,
	NewApplication,
)

// Provider functions

// ProvideLogger creates a structured logger instance
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// ProvideDatabase creates a database instance
func ProvideDatabase(cfg *config.Config, logger *slog.Logger) (*repository.Database, error) {
	return repository.NewDatabase(cfg, logger)
}

// ProvideRepositories creates repository instances
func ProvideRepositories(db *repository.Database, logger *slog.Logger) *repository.Container {
	return repository.NewContainer(db.DB, logger)
}

// ProvideEmbeddedManager creates an embedded NATS manager
func ProvideEmbeddedManager(cfg *config.Config, logger *slog.Logger) (*embedded.Manager, error) {
	return embedded.NewManager(&cfg.NATS, logger)
}

// ProvideMessagingFromEmbedded provides messaging client from embedded manager
func ProvideMessagingFromEmbedded(embeddedManager *embedded.Manager) *messaging.Client {
	return embeddedManager.GetClient()
}

// ProvideProviderManager creates a provider manager instance
func ProvideProviderManager(logger *slog.Logger) providers.ProviderManager {
	managerConfig := providers.ManagerConfig{
		AggregationStrategy: providers.StrategyMerge,
		MaxConcurrency:      5,
		Timeout:             30 * time.Second,
	}
	manager := providers.NewManager(logger, managerConfig)

	// Initialize providers
	initializeProviders(manager, logger)
	return manager
}

// initializeProviders sets up all search providers
func initializeProviders(manager providers.ProviderManager, logger *slog.Logger) {
	// Initialize ArXiv provider
	arxivConfig := providers.ProviderConfig{
		Enabled:    true,
		BaseURL:    "https://export.arxiv.org/api/query",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
	arxivProvider := arxiv.NewProvider(arxivConfig, logger)
	manager.RegisterProvider("arxiv", arxivProvider)

	// Initialize Semantic Scholar provider
	ssConfig := providers.ProviderConfig{
		Enabled:    true,
		BaseURL:    "https://api.semanticscholar.org/graph/v1",
		Timeout:    15 * time.Second,
		MaxRetries: 3,
		APIKey:     "", // Optional for basic usage
	}
	ssProvider := semantic_scholar.NewProvider(ssConfig, logger)
	manager.RegisterProvider("semantic_scholar", ssProvider)

	// Initialize Exa provider (requires API key)
	exaConfig := providers.ProviderConfig{
		Enabled:    false, // Disabled by default, enable when API key is available
		BaseURL:    "https://api.exa.ai",
		Timeout:    20 * time.Second,
		MaxRetries: 3,
		APIKey:     "", // Must be configured
	}
	exaProvider := exa.NewProvider(exaConfig, logger)
	manager.RegisterProvider("exa", exaProvider)

	// Initialize Tavily provider (requires API key)
	tavilyConfig := providers.ProviderConfig{
		Enabled:    false, // Disabled by default, enable when API key is available
		BaseURL:    "https://api.tavily.com",
		Timeout:    25 * time.Second,
		MaxRetries: 3,
		APIKey:     "", // Must be configured
	}
	tavilyProvider := tavily.NewProvider(tavilyConfig, logger)
	manager.RegisterProvider("tavily", tavilyProvider)

	logger.Info("Search providers initialized",
		slog.Int("total_providers", len(manager.GetAllProviders())),
		slog.Int("enabled_providers", len(manager.GetEnabledProviders())))
}

// ProvideServices creates service instances
func ProvideServices(repos *repository.Container, messaging *messaging.Client, providerManager providers.ProviderManager, logger *slog.Logger) *services.Container {
	return services.NewContainer(repos, messaging, providerManager, logger)
}

// ProvideHandlers creates HTTP handler instances
func ProvideHandlers(services *services.Container, logger *slog.Logger) *handlers.Container {
	return handlers.NewContainer(services, logger)
}

// ProvideConcreteSearchService creates a concrete search service
func ProvideConcreteSearchService(repos *repository.Container, messaging *messaging.Client, providerManager providers.ProviderManager, logger *slog.Logger) *services.SearchService {
	return services.NewSearchService(repos.Search, repos.Paper, messaging, logger).(*services.SearchService)
}

// ProvideConcretePaperService creates a concrete paper service
func ProvideConcretePaperService(repos *repository.Container, messaging *messaging.Client, logger *slog.Logger) *services.PaperService {
	return services.NewPaperService(repos.Paper, messaging, logger).(*services.PaperService)
}

// ProvideConcreteAuthorService creates a concrete author service
func ProvideConcreteAuthorService(repos *repository.Container, messaging *messaging.Client, logger *slog.Logger) *services.AuthorService {
	return services.NewAuthorService(repos.Author, repos.Paper, messaging, logger).(*services.AuthorService)
}

// ProvideConcreteHealthHandler creates a concrete health handler
func ProvideConcreteHealthHandler(services *services.Container, logger *slog.Logger) *handlers.HealthHandler {
	return handlers.NewHealthHandler(services.Health, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	searchService *services.SearchService,
	paperService *services.PaperService,
	authorService *services.AuthorService,
	healthHandler *handlers.HealthHandler,
	discoveryHandler *handlers.DiscoveryHandler,
	providerManager providers.ProviderManager,
	logger *slog.Logger,
) *gin.Engine {
	return api.NewRouter(
		searchService,
		paperService,
		authorService,
		healthHandler,
		discoveryHandler,
		logger,
	)
}

// ProvideDiscoveryHandler creates the discovery HTTP handler.
func ProvideDiscoveryHandler(discoveryAgent *agent.Agent, c *cache.Cache, rateLimiters *ratelimit.Manager, logger *slog.Logger) *handlers.DiscoveryHandler {
	return handlers.NewDiscoveryHandler(discoveryAgent, c, rateLimiters, logger)
}

// ProvideDiscoveryCacheKV binds the durable tier-2 bucket for the
// Discovery Cache (C3) to the embedded NATS JetStream deployment.
func ProvideDiscoveryCacheKV(ctx context.Context, client *messaging.Client, cfg *config.Config, logger *slog.Logger) (*cache.NATSKV, error) {
	bucket := cfg.NATS.KVStore.Bucket
	if bucket == "" {
		bucket = "discovery-cache"
	}
	ttl := time.Duration(cfg.Discovery.Cache.DurationHours) * time.Hour
	kv, err := client.JetStream().CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, err
	}
	return cache.NewNATSKV(kv), nil
}

// ProvideDiscoveryTaskKV binds the durable table for the Agent Task
// Substrate (C6) to its own JetStream KV bucket, separate from the
// cache's so task records outlive the cache's shorter TTL.
func ProvideDiscoveryTaskKV(ctx context.Context, client *messaging.Client, logger *slog.Logger) (*cache.NATSKV, error) {
	kv, err := client.JetStream().CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: "discovery-tasks",
	})
	if err != nil {
		return nil, err
	}
	return cache.NewNATSKV(kv), nil
}

// ProvideDiscoveryCache creates the two-tier Discovery Cache.
func ProvideDiscoveryCache(kv *cache.NATSKV, cfg *config.Config, logger *slog.Logger) *cache.Cache {
	return cache.New(kv, logger,
		cache.WithMaxEntries(cfg.Discovery.Cache.MaxEntries),
		cache.WithTTL(time.Duration(cfg.Discovery.Cache.DurationHours)*time.Hour),
	)
}

// ProvideRateLimitManager builds the per-source rate limiter + circuit
// breaker configs from discovery config, overlaying spec defaults.
func ProvideRateLimitManager(cfg *config.Config, logger *slog.Logger) *ratelimit.Manager {
	configs := ratelimit.DefaultConfigs()

	if c, ok := configs["CROSSREF"]; ok {
		if cfg.Discovery.Crossref.RateLimitCapacity > 0 {
			c.Capacity = float64(cfg.Discovery.Crossref.RateLimitCapacity)
		}
		if cfg.Discovery.Crossref.RateLimitRefillRate > 0 {
			c.RefillRatePerSecond = float64(cfg.Discovery.Crossref.RateLimitRefillRate)
		}
		configs["CROSSREF"] = c
	}
	if c, ok := configs["SEMANTIC_SCHOLAR"]; ok {
		if cfg.Discovery.SemanticScholar.RateLimitCapacity > 0 {
			c.Capacity = float64(cfg.Discovery.SemanticScholar.RateLimitCapacity)
		}
		if cfg.Discovery.SemanticScholar.RateLimitRefillRate > 0 {
			c.RefillRatePerSecond = float64(cfg.Discovery.SemanticScholar.RateLimitRefillRate)
		}
		configs["SEMANTIC_SCHOLAR"] = c
	}
	if c, ok := configs["PERPLEXITY"]; ok {
		if cfg.Discovery.Perplexity.RateLimitCapacity > 0 {
			c.Capacity = float64(cfg.Discovery.Perplexity.RateLimitCapacity)
		}
		if cfg.Discovery.Perplexity.RateLimitRefillRate > 0 {
			c.RefillRatePerSecond = float64(cfg.Discovery.Perplexity.RateLimitRefillRate)
		}
		configs["PERPLEXITY"] = c
	}

	return ratelimit.NewManager(configs, logger)
}

// ProvideCrossrefWorker creates the Crossref source worker (C2.1).
func ProvideCrossrefWorker(cfg *config.Config, limiter *ratelimit.Manager, logger *slog.Logger) *crossref.Worker {
	timeout, err := time.ParseDuration(cfg.Discovery.Crossref.Timeout)
	if err != nil {
		timeout = 10 * time.Second
	}
	return crossref.New(crossref.Config{
		BaseURL: cfg.Discovery.Crossref.BaseURL,
		Timeout: timeout,
	}, limiter, logger)
}

// ProvideSemanticScholarWorker creates the Semantic Scholar source
// worker (C2.2).
func ProvideSemanticScholarWorker(cfg *config.Config, limiter *ratelimit.Manager, logger *slog.Logger) *semanticscholar.Worker {
	timeout, err := time.ParseDuration(cfg.Discovery.SemanticScholar.Timeout)
	if err != nil {
		timeout = 10 * time.Second
	}
	return semanticscholar.New(semanticscholar.Config{
		BaseURL: cfg.Discovery.SemanticScholar.BaseURL,
		APIKey:  cfg.Discovery.SemanticScholar.APIKey,
		Timeout: timeout,
	}, limiter, logger)
}

// ProvidePerplexityWorker creates the Perplexity source worker (C2.3).
func ProvidePerplexityWorker(cfg *config.Config, limiter *ratelimit.Manager, logger *slog.Logger) *perplexity.Worker {
	timeout, err := time.ParseDuration(cfg.Discovery.Perplexity.Timeout)
	if err != nil {
		timeout = 20 * time.Second
	}
	return perplexity.New(perplexity.Config{
		BaseURL: cfg.Discovery.Perplexity.BaseURL,
		APIKey:  cfg.Discovery.Perplexity.APIKey,
		Model:   cfg.Discovery.Perplexity.Model,
		Timeout: timeout,
	}, limiter, logger)
}

// ProvideSourceWorkers assembles the worker fan-out list the
// coordinator drives (C5).
func ProvideSourceWorkers(crossrefWorker *crossref.Worker, ssWorker *semanticscholar.Worker, perplexityWorker *perplexity.Worker) []workers.SourceWorker {
	return []workers.SourceWorker{crossrefWorker, ssWorker, perplexityWorker}
}

// ProvideCreditLedger creates the task substrate's cost-hook
// collaborator. Discovery has no configured per-operation cost by
// default, so charges are advisory until an operator sets one.
func ProvideCreditLedger(logger *slog.Logger) *task.InMemoryCreditLedger {
	return task.NewInMemoryCreditLedger(0, map[string]float64{}, logger)
}

// ProvideTaskSubstrate creates the Agent Task Substrate (C6).
func ProvideTaskSubstrate(kv *cache.NATSKV, ledger *task.InMemoryCreditLedger, cfg *config.Config, logger *slog.Logger) *task.Substrate {
	s := task.New(kv, ledger, logger)
	policy := task.DefaultRetryPolicy()
	if base, err := time.ParseDuration(cfg.Discovery.Task.BaseDelay); err == nil && base > 0 {
		policy.BaseDelay = base
	}
	if max, err := time.ParseDuration(cfg.Discovery.Task.MaxDelay); err == nil && max > 0 {
		policy.MaxDelay = max
	}
	if cfg.Discovery.Task.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Discovery.Task.MaxAttempts
	}
	return s.WithRetryPolicy(policy)
}

// ProvideSynthesisEngine creates the Synthesis Engine (C4), reusing the
// Perplexity worker's bearer-token chat client as its optional AI
// rerank collaborator.
func ProvideSynthesisEngine(perplexityWorker *perplexity.Worker, logger *slog.Logger) *synthesis.Engine {
	return synthesis.New(perplexityWorker, logger)
}

// ProvideCoordinator creates the Discovery Coordinator (C5).
func ProvideCoordinator(c *cache.Cache, engine *synthesis.Engine, sourceWorkers []workers.SourceWorker, logger *slog.Logger) *coordinator.Coordinator {
	return coordinator.New(c, engine, sourceWorkers, logger)
}

// ProvidePaperStore adapts the catalog's PaperRepository to the
// discovery core's read-only PaperStore contract.
func ProvidePaperStore(repos *repository.Container) *agent.RepositoryPaperStore {
	return agent.NewRepositoryPaperStore(repos.Paper)
}

// ProvideDiscoveryAgent creates the Discovery Agent (C7), the discovery
// core's sole public entry point.
func ProvideDiscoveryAgent(paperStore *agent.RepositoryPaperStore, c *coordinator.Coordinator, substrate *task.Substrate, repos *repository.Container, logger *slog.Logger) *agent.Agent {
	return agent.New(paperStore, c, substrate, repos.Discovery, logger)
}

// ProvideDevelopmentConfig creates a development configuration
func ProvideDevelopmentConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback to development defaults
		cfg = &config.Config{}
		cfg.Server.Mode = "debug"
		cfg.Server.Port = 8080
		cfg.Database.Type = "sqlite"
		cfg.Database.SQLite.Path = "./dev-scifind.db"
		cfg.Database.SQLite.AutoMigrate = true
		cfg.NATS.URL = "nats://localhost:4222"
		cfg.NATS.Embedded.Enabled = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}
	return cfg
}

// ProvideTestConfig creates a test configuration
func ProvideTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Server.Port = 0 // Random port for testing
	cfg.Database.Type = "sqlite"
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.SQLite.AutoMigrate = true
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "text"
	return cfg
}

// InitializeApplication creates a fully configured application using Wire
func InitializeApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(ApplicationProviderSet)
	return &Application{}, func() {}, nil
}

// InitializeDevelopmentApplication creates an application instance for development
func InitializeDevelopmentApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(
		ProvideDevelopmentConfig,
		ProvideLogger,
		ProvideDatabase,
		ProvideEmbeddedManager,
		ProvideMessagingFromEmbedded,
		ProvideRepositories,
		ProvideProviderManager,
		ProvideServices,
		ProvideHandlers,
		ProvideConcreteSearchService,
		ProvideConcretePaperService,
		ProvideConcreteAuthorService,
		ProvideConcreteHealthHandler,
		ProvideRouter,
		DiscoveryProviderSet,
		NewApplication,
	)
	return &Application{}, func() {}, nil
}

// InitializeTestApplication creates an application instance for testing
func InitializeTestApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(
		ProvideTestConfig,
		ProvideLogger,
		ProvideDatabase,
		ProvideEmbeddedManager,
		ProvideMessagingFromEmbedded,
		ProvideRepositories,
		ProvideProviderManager,
		ProvideServices,
		ProvideHandlers,
		ProvideConcreteSearchService,
		ProvideConcretePaperService,
		ProvideConcreteAuthorService,
		ProvideConcreteHealthHandler,
		ProvideRouter,
		DiscoveryProviderSet,
		NewApplication,
	)
	return &Application{}, func() {}, nil
}
