package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	applicationName = "storefront"
	pingTimeout     = 5 * time.Second
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// PoolOptions ограничивает пул соединений database/sql.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPoolOptions рассчитан на одну реплику витрины.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpen:     20,
		MaxIdle:     10,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// StoreOption настраивает Open.
type StoreOption func(*PoolOptions)

// WithPool заменяет параметры пула целиком; нулевые поля берутся из DefaultPoolOptions.
func WithPool(p PoolOptions) StoreOption {
	return func(dst *PoolOptions) {
		def := DefaultPoolOptions()
		if p.MaxOpen <= 0 {
			p.MaxOpen = def.MaxOpen
		}
		if p.MaxIdle <= 0 {
			p.MaxIdle = def.MaxIdle
		}
		if p.MaxLifetime <= 0 {
			p.MaxLifetime = def.MaxLifetime
		}
		if p.MaxIdleTime <= 0 {
			p.MaxIdleTime = def.MaxIdleTime
		}
		*dst = p
	}
}

// Store владеет пулом соединений, общим для каталога, заказов и outbox.
type Store struct {
	db *sql.DB
}

// Open разбирает DSN через pgx, открывает пул и дожидается ответа базы.
func Open(ctx context.Context, dsn string, opts ...StoreOption) (*Store, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := connCfg.RuntimeParams["application_name"]; !ok {
		connCfg.RuntimeParams["application_name"] = applicationName
	}

	pool := DefaultPoolOptions()
	for _, opt := range opts {
		opt(&pool)
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
	db.SetConnMaxIdleTime(pool.MaxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres %s:%d unreachable: %w", connCfg.Host, connCfg.Port, err)
	}
	return store, nil
}

// NewStoreFromDB оборачивает готовый *sql.DB, например sqlmock.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB отдаёт пул репозиториям пакета и миграциям.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping используется health-check'ом postgres.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// PoolStats снимает статистику пула для логов.
func (s *Store) PoolStats() sql.DBStats {
	if s == nil || s.db == nil {
		return sql.DBStats{}
	}
	return s.db.Stats()
}

// EnsureSchema доводит схему до последней встроенной миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close безопасно вызывать на nil.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
