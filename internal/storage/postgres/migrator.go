package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	migrationsDir   = "sql/migrations"
	migrationsTable = "storefront_schema_migrations"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

// MigrationState описывает состояние схемы в таблице миграций.
type MigrationState struct {
	Version uint
	Dirty   bool
}

// newMigrator собирает migrate.Migrate поверх отдельного соединения пула.
// Close мигратора закрывает только это соединение, пул остаётся открытым.
func (s *Store) newMigrator(ctx context.Context) (*migrate.Migrate, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotInitialized
	}

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("acquire migration connection: %w", err)
	}

	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		_ = src.Close()
		return nil, fmt.Errorf("init migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		_ = src.Close()
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// MigrateUp применяет up-миграции. steps <= 0 означает "все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	m, err := s.newMigrator(ctx)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if steps <= 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown откатывает steps миграций. steps <= 0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	m, err := s.newMigrator(ctx)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrateForce выставляет версию без выполнения SQL, снимая флаг dirty.
func (s *Store) MigrateForce(ctx context.Context, version int) error {
	m, err := s.newMigrator(ctx)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Force(version); err != nil {
		return fmt.Errorf("migrate force %d: %w", version, err)
	}
	return nil
}

// MigrationStatus возвращает текущую версию схемы.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	m, err := s.newMigrator(ctx)
	if err != nil {
		return MigrationState{}, err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationState{}, nil
	}
	if err != nil {
		return MigrationState{}, fmt.Errorf("migration status: %w", err)
	}
	return MigrationState{Version: version, Dirty: dirty}, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}
