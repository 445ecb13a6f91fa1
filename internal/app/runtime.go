package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/supabase"
)

// runtimeDeps собирает адаптеры выбранного бэкенда.
type runtimeDeps struct {
	auth       domain.AuthConnector
	catalog    domain.CatalogSource
	orderStore domain.OrderStore
	outboxRepo domain.OutboxRepository
	checkers   map[string]healthcheck.Checker
	closers    []func() error
}

func (d *runtimeDeps) addChecker(name string, checker healthcheck.Checker) {
	if d.checkers == nil {
		d.checkers = make(map[string]healthcheck.Checker)
	}
	d.checkers[name] = checker
}

// Close освобождает ресурсы в обратном порядке.
func (d *runtimeDeps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies создаёт хранилища, аутентификацию и каталог для cfg.Backend.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDeps, error) {
	if logger == nil {
		logger = log.New().WithField("component", "app")
	}

	var (
		deps *runtimeDeps
		err  error
	)
	switch cfg.Backend {
	case BackendMemory, "":
		deps, err = initMemoryBackend(cfg, logger)
	case BackendPostgres:
		deps, err = initPostgresBackend(ctx, cfg, logger)
	case BackendSupabase:
		deps, err = initSupabaseBackend(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr != "" {
		initCatalogCache(deps, cfg, logger)
	}
	if cfg.OrderMode == OrderModeLocal {
		deps.orderStore = nil
	}
	return deps, nil
}

func newDemoDirectory(cfg Config, logger *log.Entry) (*memory.Directory, error) {
	dir := memory.NewDirectory(memory.WithDirectoryLogger(logger.WithField("component", "memory-auth")))
	if cfg.DemoUsers != "" {
		if err := dir.ParseDemoUsers(cfg.DemoUsers); err != nil {
			return nil, fmt.Errorf("demo users: %w", err)
		}
	}
	return dir, nil
}

func initMemoryBackend(cfg Config, logger *log.Entry) (*runtimeDeps, error) {
	dir, err := newDemoDirectory(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("using in-memory backend")
	return &runtimeDeps{
		auth:       dir,
		catalog:    memory.NewCatalogRepository(memory.SeedProducts()),
		orderStore: memory.NewOrderStore(),
		outboxRepo: memory.NewOutboxRepository(),
	}, nil
}

func initPostgresBackend(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDeps, error) {
	dir, err := newDemoDirectory(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithPool(postgres.PoolOptions{
		MaxOpen: cfg.PostgresMaxConns,
		MaxIdle: cfg.PostgresMaxConns / 2,
	}))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	logger.WithField("max_open_conns", store.PoolStats().MaxOpenConnections).Info("using postgres backend")

	deps := &runtimeDeps{
		auth:       dir,
		catalog:    postgres.NewCatalogRepository(store),
		orderStore: postgres.NewOrderStore(store),
		outboxRepo: postgres.NewOutboxRepository(store),
		closers:    []func() error{store.Close},
	}
	deps.addChecker("postgres", healthcheck.NewPingChecker("postgres", store.Ping))
	return deps, nil
}

func initSupabaseBackend(cfg Config, logger *log.Entry) (*runtimeDeps, error) {
	client, err := supabase.NewClient(supabase.Config{
		ProjectURL: cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		JWTSecret:  cfg.SupabaseJWTSecret,
	}, logger.WithField("component", "supabase"))
	if err != nil {
		return nil, err
	}
	if cfg.SupabaseJWTSecret == "" {
		logger.Warn("SUPABASE_JWT_SECRET is not set, access tokens are not verified locally")
	}
	logger.WithField("project", cfg.SupabaseURL).Info("using supabase backend")

	deps := &runtimeDeps{
		auth:       supabase.NewAuth(client, supabase.NewTokenVerifier(cfg.SupabaseJWTSecret)),
		catalog:    supabase.NewCatalogRepository(client),
		orderStore: supabase.NewOrderStore(client),
		// Outbox Supabase не хранит: события живут в памяти процесса.
		outboxRepo: memory.NewOutboxRepository(),
	}
	deps.addChecker("supabase", healthcheck.NewPingChecker("supabase", client.Health))
	return deps, nil
}

// initCatalogCache ставит redis-кэш перед источником каталога. Недоступный
// redis не мешает старту: кэш промахивается и каталог читается из источника.
func initCatalogCache(deps *runtimeDeps, cfg Config, logger *log.Entry) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	deps.catalog = catalog.NewCachedSource(
		deps.catalog,
		catalog.NewRedisCache(client, cfg.CatalogCacheTTL),
		logger.WithField("component", "catalog-cache"),
	)
	deps.closers = append(deps.closers, client.Close)
	deps.addChecker("redis", healthcheck.NewPingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}).Optional())
	logger.WithField("addr", cfg.RedisAddr).Info("catalog cache enabled")
}
