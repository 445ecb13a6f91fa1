package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend выбирает хранилище заказов, каталога и аутентификации.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendSupabase Backend = "supabase"
)

// OrderMode выбирает, записывается ли заказ в хранилище.
type OrderMode string

const (
	OrderModeStore OrderMode = "store"
	// OrderModeLocal: заказ собирается без записи, id генерируется локально.
	OrderModeLocal OrderMode = "local"
)

const defaultAccessCodes = "420:Verde:admin,1111:Long Money Exotics:admin"

// Config содержит настройки запуска витрины.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	Backend             Backend
	PostgresDSN         string
	PostgresAutoMigrate bool
	PostgresMaxConns    int
	SupabaseURL         string
	SupabaseAnonKey     string
	SupabaseJWTSecret   string
	// DemoUsers: список "email:password[:brand]" для memory-аутентификации.
	DemoUsers string

	RedisAddr       string
	CatalogCacheTTL time.Duration

	KafkaBrokers       string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	AccessCodes        string
	CheckoutCompensate bool
	OrderMode          OrderMode
	SessionIdleTimeout time.Duration
	RequestTimeout     time.Duration
}

// DefaultConfig возвращает настройки для локального запуска на memory-бэкенде.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		Backend:             BackendMemory,
		PostgresAutoMigrate: true,
		CatalogCacheTTL:     5 * time.Minute,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		AccessCodes:         defaultAccessCodes,
		OrderMode:           OrderModeStore,
		SessionIdleTimeout:  30 * time.Minute,
		RequestTimeout:      15 * time.Second,
	}
}

// ConfigFromEnv читает .env (если есть) и переменные окружения поверх DefaultConfig.
func ConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	p := envParser{}

	p.str("STOREFRONT_HTTP_ADDR", &cfg.HTTPAddr)
	p.str("STOREFRONT_GRPC_ADDR", &cfg.GRPCAddr)
	p.str("STOREFRONT_METRICS_ADDR", &cfg.MetricsAddr)
	p.str("STOREFRONT_LOG_LEVEL", &cfg.LogLevel)

	var backend string
	p.str("STOREFRONT_BACKEND", &backend)
	if backend != "" {
		cfg.Backend = Backend(strings.ToLower(backend))
	}
	p.str("STOREFRONT_POSTGRES_DSN", &cfg.PostgresDSN)
	p.boolean("STOREFRONT_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	p.integer("STOREFRONT_POSTGRES_MAX_CONNS", &cfg.PostgresMaxConns)
	p.str("SUPABASE_URL", &cfg.SupabaseURL)
	p.str("SUPABASE_ANON_KEY", &cfg.SupabaseAnonKey)
	p.str("SUPABASE_JWT_SECRET", &cfg.SupabaseJWTSecret)
	p.str("STOREFRONT_DEMO_USERS", &cfg.DemoUsers)

	p.str("STOREFRONT_REDIS_ADDR", &cfg.RedisAddr)
	p.duration("STOREFRONT_CATALOG_CACHE_TTL", &cfg.CatalogCacheTTL)

	p.str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	p.duration("STOREFRONT_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	p.integer("STOREFRONT_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	p.integer("STOREFRONT_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)

	p.str("STOREFRONT_ACCESS_CODES", &cfg.AccessCodes)
	p.boolean("STOREFRONT_CHECKOUT_COMPENSATE", &cfg.CheckoutCompensate)
	var mode string
	p.str("STOREFRONT_ORDER_MODE", &mode)
	if mode != "" {
		cfg.OrderMode = OrderMode(strings.ToLower(mode))
	}
	p.duration("STOREFRONT_SESSION_IDLE_TIMEOUT", &cfg.SessionIdleTimeout)
	p.duration("STOREFRONT_REQUEST_TIMEOUT", &cfg.RequestTimeout)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет бэкенд и обязательные для него настройки.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("STOREFRONT_POSTGRES_DSN is required for postgres backend"))
		}
	case BackendSupabase:
		if strings.TrimSpace(c.SupabaseURL) == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required for supabase backend"))
		}
		if strings.TrimSpace(c.SupabaseAnonKey) == "" {
			errs = append(errs, errors.New("SUPABASE_ANON_KEY is required for supabase backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported backend %q", c.Backend))
	}

	switch c.OrderMode {
	case OrderModeStore, OrderModeLocal:
	default:
		errs = append(errs, fmt.Errorf("unsupported order mode %q", c.OrderMode))
	}

	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}
	return errors.Join(errs...)
}

// Brokers разбивает KAFKA_BROKERS на адреса.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type envParser struct {
	errs []error
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (p *envParser) boolean(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

func (p *envParser) duration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

func (p *envParser) integer(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}
