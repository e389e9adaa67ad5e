package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorecheck/lorecheck/internal/api/handlers"
	mw "github.com/lorecheck/lorecheck/internal/api/middleware"
	"github.com/lorecheck/lorecheck/internal/config"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/embedding"
	"github.com/lorecheck/lorecheck/internal/extractor"
	"github.com/lorecheck/lorecheck/internal/fusion"
	"github.com/lorecheck/lorecheck/internal/llm"
	"github.com/lorecheck/lorecheck/internal/parse"
	"github.com/lorecheck/lorecheck/internal/pipeline"
	"github.com/lorecheck/lorecheck/internal/store"
	"go.uber.org/zap"
)

// App holds the router and the analysis pipeline for lifecycle management.
// The database is optional: without one the service analyzes manuscripts
// in-memory and skips persistence.
type App struct {
	Router       *chi.Mux
	Pipeline     *pipeline.Pipeline
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores (nil without a database)
	var (
		entityStore        domain.EntityStore
		consensusStore     domain.ConsensusStore
		contradictionStore domain.ContradictionStore
		lexiconStore       domain.LexiconStore
	)
	if db != nil {
		entityStore = store.NewEntityStore(db)
		consensusStore = store.NewConsensusStore(db)
		contradictionStore = store.NewContradictionStore(db)
		lexiconStore = store.NewLexiconStore(db)
	}

	// External clients via provider factory
	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.OpenAIAPIKey(), config.EmbeddingModel())
	if err != nil {
		logger.Warn("embedding client initialization failed",
			zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
	} else {
		logger.Info("embedding client initialized",
			zap.String("provider", config.EmbeddingProvider()))
	}

	llmClient, err := llm.NewClient(config.LLMProvider(), config.OpenAIAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed",
			zap.String("provider", config.LLMProvider()), zap.Error(err))
	} else if llmClient != nil {
		logger.Info("LLM client initialized", zap.String("provider", config.LLMProvider()))
		llmClient = llm.NewBreaker(llmClient, logger)
	}

	parseProvider, err := parse.NewProvider(config.ParseProvider(), config.ParseServiceURL())
	if err != nil {
		logger.Warn("parse provider initialization failed",
			zap.String("provider", config.ParseProvider()), zap.Error(err))
	} else if parseProvider != nil {
		logger.Info("parse provider initialized", zap.String("provider", config.ParseProvider()))
	}

	fusionCfg, err := fusion.LoadConfig(config.FusionConfigPath())
	if err != nil {
		logger.Warn("fusion config load failed, using defaults",
			zap.String("path", config.FusionConfigPath()), zap.Error(err))
		fusionCfg = fusion.DefaultConfig()
	}

	// Extraction strategies. The dependency extractor proposes nothing when
	// no parse provider is configured; pattern always runs.
	resolver := extractor.NewPossessiveResolver(logger)
	runner := extractor.NewRunner(logger,
		extractor.NewPatternExtractor(logger),
		extractor.NewDependencyExtractor(parseProvider, resolver, logger),
	)
	if embeddingClient != nil {
		runner.Register(extractor.NewEmbeddingExtractor(embeddingClient, lexiconStore, logger))
	}
	if llmClient != nil {
		runner.Register(extractor.NewGenerativeExtractor(
			llmClient,
			llm.AttributePrompt,
			config.LLMTimeout(),
			config.LLMMaxConcurrency(),
			config.LLMRateRPS(),
			logger,
		))
	}

	engine := fusion.NewEngine(fusionCfg, logger)
	p := pipeline.NewPipeline(runner, engine, logger).
		WithStores(consensusStore, contradictionStore).
		WithNotifier(pipeline.NewLogNotifier(logger))
	p.Workers = config.ExtractionWorkers()

	// Handlers
	manuscriptHandler := handlers.NewManuscriptHandler(p, entityStore, contradictionStore, logger)
	entityHandler := handlers.NewEntityHandler(entityStore, consensusStore)
	contradictionHandler := handlers.NewContradictionHandler(contradictionStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Pipeline:  p,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/manuscripts/{id}", func(r chi.Router) {
			r.Post("/analyze", manuscriptHandler.Analyze)
			r.Post("/reanalyze", manuscriptHandler.Reanalyze)
			r.Get("/contradictions", manuscriptHandler.ListContradictions)
		})

		r.Get("/entities/{id}/attributes", entityHandler.GetAttributes)

		r.Route("/contradictions/{id}", func(r chi.Router) {
			r.Get("/", contradictionHandler.GetByID)
			r.Post("/dismiss", contradictionHandler.Dismiss)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		writeJSONResponse(w, response)
	}
}

func writeJSONResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.EntityStore          = (*store.EntityStore)(nil)
	_ domain.ConsensusStore       = (*store.ConsensusStore)(nil)
	_ domain.ContradictionStore   = (*store.ContradictionStore)(nil)
	_ domain.LexiconStore         = (*store.LexiconStore)(nil)
	_ domain.EmbeddingClient      = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient      = (*embedding.MockClient)(nil)
	_ domain.BatchEmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.BatchEmbeddingClient = (*embedding.MockClient)(nil)
	_ domain.GenerativeClient     = (*llm.OpenAIClient)(nil)
	_ domain.GenerativeClient     = (*llm.MockClient)(nil)
	_ domain.GenerativeClient     = (*llm.Breaker)(nil)
	_ domain.ParseProvider        = (*parse.HTTPProvider)(nil)
	_ domain.AlertNotifier        = (*pipeline.LogNotifier)(nil)
)
