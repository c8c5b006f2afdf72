// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docserver provides the README generation service.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, the stack analyzer, the generation
// backend registry, quota enforcement, the content cache, and
// observability infrastructure.
//
// # Usage
//
//	cfg := docserver.Config{Port: 12300}
//	svc, err := docserver.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package docserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/devdocs-ai/devdocs/services/analyzer"
	"github.com/devdocs-ai/devdocs/services/cache"
	"github.com/devdocs-ai/devdocs/services/docserver/observability"
	"github.com/devdocs-ai/devdocs/services/docserver/pipeline"
	"github.com/devdocs-ai/devdocs/services/docserver/routes"
	"github.com/devdocs-ai/devdocs/services/github"
	"github.com/devdocs-ai/devdocs/services/llm"
	"github.com/devdocs-ai/devdocs/services/quota"
	storage "github.com/devdocs-ai/devdocs/services/storage/badger"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the docserver service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify it.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds docserver configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12300
	Port int

	// DataDir is where the Badger database lives. Default: ./data
	DataDir string

	// InMemoryStorage keeps quota counters and cached content in
	// memory only. For tests.
	InMemoryStorage bool

	// OTelEndpoint is the OpenTelemetry collector endpoint. If
	// empty, tracing export is disabled.
	OTelEndpoint string

	// DisableMetrics turns off the Prometheus pipeline
	// instrumentation; metrics are on by default.
	DisableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release",
	// "test"). Default: uses GIN_MODE env var or "debug".
	GinMode string

	// RateLimit caps requests per window per client IP. Default: 50.
	RateLimit int64

	// RateLimitWindow is the sliding window size. Default: 10m.
	RateLimitWindow time.Duration

	// FailOpen lets requests through when the quota store fails.
	// Default: true.
	FailOpen *bool

	// CacheTTL is how long generated content stays cached.
	// Default: 24h.
	CacheTTL time.Duration

	// Backends overrides the generation backend registry. When nil,
	// every backend whose environment is configured is registered.
	Backends []llm.Backend

	// Logger is the service logger. Default: slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after
// New() returns.
type service struct {
	config        Config
	router        *gin.Engine
	db            *storage.DB
	pipeline      *pipeline.Pipeline
	metrics       *observability.GenerationMetrics
	logger        *slog.Logger
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a docserver Service with the given configuration.
//
// # Description
//
// New initializes all components in order: configuration defaults,
// OpenTelemetry tracing (when an endpoint is configured), Prometheus
// metrics, Badger storage, the generation backend registry, the quota
// layer, the content cache, the request pipeline, and finally the
// HTTP routes. Backends whose environment is missing are skipped with
// a log line; construction fails only when no backend at all is
// available.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run docserver.
//   - error: Non-nil if initialization fails.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	s.logger = s.config.Logger

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if !s.config.DisableMetrics {
		if observability.DefaultMetrics == nil {
			observability.InitMetrics()
		}
		s.metrics = observability.DefaultMetrics
	}

	if err := s.initStorage(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	backends, err := s.assembleBackends()
	if err != nil {
		s.cleanup()
		return nil, err
	}

	if err := s.initPipeline(backends); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	s.initRouter()
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("starting docserver", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12300
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 50
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = 10 * time.Minute
	}
	if cfg.FailOpen == nil {
		failOpen := true
		cfg.FailOpen = &failOpen
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing over an
// insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("docserver")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStorage opens the Badger database backing quota counters and
// the content cache.
func (s *service) initStorage() error {
	storageCfg := storage.DefaultConfig()
	storageCfg.Path = s.config.DataDir
	storageCfg.InMemory = s.config.InMemoryStorage
	if s.config.InMemoryStorage {
		storageCfg = storage.InMemoryConfig()
	}

	db, err := storage.OpenDB(storageCfg)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// assembleBackends builds the generation backend registry. Each
// constructor is tried; the ones whose environment is missing are
// skipped. The registry is immutable once handed to the orchestrator.
func (s *service) assembleBackends() ([]llm.Backend, error) {
	if s.config.Backends != nil {
		return s.config.Backends, nil
	}

	ctx := context.Background()
	var backends []llm.Backend

	constructors := []struct {
		provider llm.Provider
		build    func() (llm.Backend, error)
	}{
		{llm.ProviderGroq, func() (llm.Backend, error) {
			c, err := llm.NewGroqClient()
			if err != nil {
				return nil, err
			}
			return c, nil
		}},
		{llm.ProviderGemini, func() (llm.Backend, error) {
			c, err := llm.NewGeminiClient(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		}},
		{llm.ProviderOpenAI, func() (llm.Backend, error) {
			c, err := llm.NewOpenAIClient()
			if err != nil {
				return nil, err
			}
			return c, nil
		}},
		{llm.ProviderAnthropic, func() (llm.Backend, error) {
			c, err := llm.NewAnthropicClient()
			if err != nil {
				return nil, err
			}
			return c, nil
		}},
		{llm.ProviderOllama, func() (llm.Backend, error) {
			c, err := llm.NewOllamaClient()
			if err != nil {
				return nil, err
			}
			return c, nil
		}},
	}

	for _, c := range constructors {
		backend, err := c.build()
		if err != nil {
			s.logger.Info("generation backend not configured, skipping",
				"provider", c.provider, "reason", err)
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no generation backends configured; set at least one provider API key")
	}
	return backends, nil
}

// initPipeline wires the quota layer, caches, and orchestrator into
// the request pipeline.
func (s *service) initPipeline(backends []llm.Backend) error {
	store := quota.NewBadgerCounterStore(s.db)
	policy := quota.NewTierPolicy()
	failOpen := *s.config.FailOpen

	limiter := quota.NewRateLimiter(store, quota.RateLimitConfig{
		Limit:    s.config.RateLimit,
		Window:   s.config.RateLimitWindow,
		FailOpen: failOpen,
	}, s.logger)

	meter := quota.NewUsageMeter(store, policy, failOpen, s.logger)

	orchestrator := llm.NewOrchestrator(backends, llm.Options{
		Logger: s.logger,
		AttemptObserver: func(provider llm.Provider, outcome string) {
			s.metrics.RecordBackendAttempt(string(provider), outcome)
		},
	})

	p, err := pipeline.New(pipeline.Config{
		Analyzer:      analyzer.New(),
		Policy:        policy,
		RateLimiter:   limiter,
		UsageMeter:    meter,
		ContentCache:  cache.NewContentCache(s.db, s.config.CacheTTL, s.logger),
		AnalysisCache: cache.NewAnalysisCache(0),
		Generator:     orchestrator,
		Fetcher:       github.NewClient(),
		Metrics:       s.metrics,
		Logger:        s.logger,
	})
	if err != nil {
		return err
	}
	s.pipeline = p
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("docserver"))

	routes.SetupRoutes(s.router, s.pipeline, s.metrics)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("storage close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
