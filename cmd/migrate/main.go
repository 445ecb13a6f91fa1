// Команда migrate управляет схемой PostgreSQL витрины вне основного процесса.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const runTimeout = 30 * time.Second

type options struct {
	direction string
	steps     int
	version   int
	dsn       string
}

var errUsage = errors.New("usage")

// parseOptions разбирает флаги; DSN без флага берётся из STOREFRONT_POSTGRES_DSN.
func parseOptions(args []string, getenv func(string) string) (options, error) {
	var opts options
	fset := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.StringVar(&opts.direction, "direction", "up", "up|down|status|force")
	fset.IntVar(&opts.steps, "steps", 0, "migrations to apply or roll back (up: 0 = all, down: 0 = 1)")
	fset.IntVar(&opts.version, "version", -1, "schema version for -direction=force")
	fset.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN")
	if err := fset.Parse(args); err != nil {
		return options{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(getenv("STOREFRONT_POSTGRES_DSN"))
	}

	switch {
	case opts.dsn == "":
		return options{}, fmt.Errorf("%w: STOREFRONT_POSTGRES_DSN or -dsn is required", errUsage)
	case opts.direction == "force" && opts.version < 0:
		return options{}, fmt.Errorf("%w: -version is required for force", errUsage)
	case opts.steps < 0:
		return options{}, fmt.Errorf("%w: -steps must not be negative", errUsage)
	}
	switch opts.direction {
	case "up", "down", "status", "force":
	default:
		return options{}, fmt.Errorf("%w: unsupported direction %q", errUsage, opts.direction)
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	switch opts.direction {
	case "up":
		err = store.MigrateUp(ctx, opts.steps)
	case "down":
		err = store.MigrateDown(ctx, opts.steps)
	case "force":
		err = store.MigrateForce(ctx, opts.version)
	}
	if err != nil {
		return err
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s: version=%d dirty=%t\n", opts.direction, state.Version, state.Dirty)
	return err
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warn(".env is not readable")
	}

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("migrate: bad arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		cancel()
		log.WithError(err).WithField("direction", opts.direction).Fatal("migrate failed")
	}
}
