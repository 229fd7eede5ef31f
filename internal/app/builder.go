package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/loresync/internal/api"
	"github.com/stacklok/loresync/internal/coerce"
	"github.com/stacklok/loresync/internal/config"
	"github.com/stacklok/loresync/internal/db"
	"github.com/stacklok/loresync/internal/discovery"
	"github.com/stacklok/loresync/internal/gate"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/records"
	"github.com/stacklok/loresync/internal/resolve"
	"github.com/stacklok/loresync/internal/schema"
	"github.com/stacklok/loresync/internal/status"
	pkgsync "github.com/stacklok/loresync/internal/sync"
	"github.com/stacklok/loresync/internal/sync/coordinator"
	"github.com/stacklok/loresync/internal/sync/state"
	"github.com/stacklok/loresync/internal/telemetry"
	"github.com/stacklok/loresync/internal/versions"
)

const (
	defaultHTTPAddress = ":8080"
	// Syncs are long-running, so the request timeout is far above a typical API's.
	defaultRequestTimeout = 15 * time.Minute
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 30*time.Second
	defaultIdleTimeout    = 60 * time.Second

	tracerName = "github.com/stacklok/loresync"
)

// LoreSyncAppOptions is a function that configures the app builder
type LoreSyncAppOptions func(*loreSyncAppConfig) error

// loreSyncAppConfig collects the builder inputs. Every component can be
// injected, which is how tests swap in fakes; anything left nil is built
// from the configuration.
type loreSyncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	syncManager  pkgsync.Manager
	stateService state.StateService
	recordStore  records.Store
	schemaCache  schema.Cache
	pool         *pgxpool.Pool
	telemetry    *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...LoreSyncAppOptions) (*loreSyncAppConfig, error) {
	cfg := &loreSyncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewLoreSyncApp builds every component from the configuration
func NewLoreSyncApp(
	ctx context.Context,
	opts ...LoreSyncAppOptions,
) (*LoreSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Release whatever was acquired if a later step fails
	var cleanups []func()
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		tel := cfg.telemetry
		cleanups = append(cleanups, func() { shutdownTelemetry(tel) })
	}

	if cfg.pool == nil && cfg.config.GetStorageType() == config.StorageTypeDatabase && needsPool(cfg) {
		cfg.pool, err = db.NewPool(ctx, cfg.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		pool := cfg.pool
		cleanups = append(cleanups, pool.Close)
	}

	if err := buildStorageComponents(cfg); err != nil {
		return nil, fmt.Errorf("failed to build storage components: %w", err)
	}

	if cfg.syncManager == nil {
		cfg.syncManager, err = buildSyncManager(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build sync manager: %w", err)
		}
	}

	var syncCoordinator coordinator.Coordinator
	if cfg.config.Schedule != nil {
		syncCoordinator = coordinator.New(cfg.syncManager, cfg.stateService, cfg.config)
		slog.Info("Scheduled syncs enabled", "interval", cfg.config.Schedule.GetInterval())
	}

	httpServer, err := buildHTTPServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false
	cancelFunc := func() {
		cancel()
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return &LoreSyncApp{
		config: cfg.config,
		components: &AppComponents{
			Manager:     cfg.syncManager,
			State:       cfg.stateService,
			Coordinator: syncCoordinator,
			Telemetry:   cfg.telemetry,
			Pool:        cfg.pool,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// needsPool reports whether any database-backed component is still missing.
func needsPool(cfg *loreSyncAppConfig) bool {
	if cfg.stateService == nil {
		return true
	}
	if cfg.syncManager != nil {
		return false
	}
	return cfg.recordStore == nil || cfg.schemaCache == nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		slog.Warn("Failed to shut down telemetry", "error", err)
	}
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds a single HTTP request, including a sync it triggers
func WithRequestTimeout(d time.Duration) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		if cfg.writeTimeout <= d {
			cfg.writeTimeout = d + 30*time.Second
		}
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithStateService allows injecting a custom state service (for testing)
func WithStateService(s state.StateService) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.stateService = s
		return nil
	}
}

// WithRecordStore allows injecting a custom source record store (for testing)
func WithRecordStore(s records.Store) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.recordStore = s
		return nil
	}
}

// WithSchemaCache allows injecting a custom schema cache (for testing)
func WithSchemaCache(c schema.Cache) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.schemaCache = c
		return nil
	}
}

// WithPool supplies an existing database pool. The app does not close it.
func WithPool(pool *pgxpool.Pool) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.pool = pool
		return nil
	}
}

// WithTelemetry supplies already initialized telemetry. The app does not shut it down.
func WithTelemetry(t *telemetry.Telemetry) LoreSyncAppOptions {
	return func(cfg *loreSyncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildStorageComponents picks file or database backends for state, source
// records and the schema cache. This is the single storage decision point.
func buildStorageComponents(b *loreSyncAppConfig) error {
	storageType := b.config.GetStorageType()
	baseDir := b.config.GetFileStorageBaseDir()
	slog.Info("Initializing storage", "type", storageType)

	if storageType == config.StorageTypeFile {
		if err := os.MkdirAll(baseDir, 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if b.stateService == nil {
		svc, err := state.NewStateService(b.config, status.NewFileStatusPersistence(baseDir), b.pool)
		if err != nil {
			return fmt.Errorf("failed to create state service: %w", err)
		}
		b.stateService = svc
	}

	if b.syncManager != nil {
		return nil
	}

	if b.recordStore == nil {
		if storageType == config.StorageTypeDatabase {
			b.recordStore = records.NewPostgresStore(b.pool)
		} else {
			b.recordStore = records.NewFileStore(baseDir)
		}
	}

	if b.schemaCache == nil {
		if storageType == config.StorageTypeDatabase {
			b.schemaCache = schema.NewDBCache(b.pool)
		} else {
			b.schemaCache = schema.NewFileCache(baseDir)
		}
	}
	return nil
}

// buildWorkspaceClient builds the gate and the workspace client behind it
func buildWorkspaceClient(b *loreSyncAppConfig) (*notion.Client, error) {
	token, err := b.config.Workspace.GetToken()
	if err != nil {
		return nil, err
	}

	gateMetrics, err := telemetry.NewGateMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create gate metrics: %w", err)
	}

	g := gate.New(gate.Options{
		Requests:       b.config.Gate.Requests,
		Window:         b.config.Gate.GetWindow(),
		CallTimeout:    b.config.Gate.GetCallTimeout(),
		MaxRetries:     b.config.Gate.GetMaxRetries(),
		InitialBackoff: b.config.Gate.GetInitialBackoff(),
		MaxBackoff:     b.config.Gate.GetMaxBackoff(),
		Tracer:         b.telemetry.Tracer(tracerName),
		Metrics:        gateMetrics,
	})

	return notion.NewClient(notion.Options{
		BaseURL: b.config.Workspace.BaseURL,
		Version: b.config.Workspace.Version,
		Token:   token,
		Gate:    g,
	})
}

// buildSyncManager wires the orchestrator and its collaborators
func buildSyncManager(b *loreSyncAppConfig) (pkgsync.Manager, error) {
	slog.Info("Initializing sync components")

	client, err := buildWorkspaceClient(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace client: %w", err)
	}

	databases, err := b.config.Sync.LogicalDatabases()
	if err != nil {
		return nil, fmt.Errorf("invalid sync databases: %w", err)
	}
	aliases, err := b.config.Sync.AliasOverrides()
	if err != nil {
		return nil, fmt.Errorf("invalid sync aliases: %w", err)
	}

	meterProvider := b.telemetry.MeterProvider()
	tracer := b.telemetry.Tracer(tracerName,
		trace.WithInstrumentationVersion(versions.GetVersionInfo().Version))

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	schemaMetrics, err := telemetry.NewSchemaMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema metrics: %w", err)
	}

	provider := schema.NewProvider(b.schemaCache, client,
		schema.WithMetrics(schemaMetrics),
		schema.WithTracer(tracer),
	)

	discoverer := discovery.New(client, b.stateService, discovery.Options{
		TemplateSignatures: b.config.Discovery.TemplateSignatures,
		MaxCandidatePages:  b.config.Discovery.MaxCandidatePages,
		MinEmbeddedMatches: b.config.Discovery.MinEmbeddedMatches,
	}, discovery.WithTracer(tracer))

	manager := pkgsync.NewManager(pkgsync.Dependencies{
		Workspace:  client,
		Discoverer: discoverer,
		Schemas:    provider,
		Records:    b.recordStore,
		State:      b.stateService,
		Resolver:   resolve.New(aliases),
		Coercer:    coerce.Coercer{},
	}, pkgsync.Options{
		Databases:    databases,
		VerifyWrites: b.config.Sync.ShouldVerifyWrites(),
		StaleAfter:   b.config.Sync.GetStaleAfter(),
		Metrics:      syncMetrics,
		Tracer:       tracer,
	})

	slog.Info("Sync components initialized successfully", "databases", len(databases))
	return manager, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *loreSyncAppConfig) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first so rejected requests are observed too
	httpMetrics, err := telemetry.NewHTTPMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		httpMetrics.Middleware,
	}, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if h := b.telemetry.MetricsHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
		slog.Info("Prometheus metrics endpoint enabled", "path", "/metrics")
	}

	router := api.NewServer(b.syncManager, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
