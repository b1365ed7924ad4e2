// Package bootstrap prepares process infrastructure: logger, database,
// migrations, storage, seed data and the application services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/appealbot/core/config"
	coredatabase "github.com/m3rciful/appealbot/core/database"
	"github.com/m3rciful/appealbot/core/logger"
)

// Options configure Run. S is the storage type handed to the modules.
type Options[S any] struct {
	Config *coreconfig.Config
	// Database is skipped entirely when no host is configured.
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error

	// NewStorage builds the storage; db is nil without a database.
	NewStorage func(db *sqlx.DB) (S, error)
	Modules    Modules[S]
}

// Result holds what Run prepared.
type Result[S any] struct {
	DB       *sqlx.DB
	Storage  S
	Services any
}

// Close releases the database connection, if any.
func (r *Result[S]) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run executes the pipeline in order and releases the database when a later
// step fails.
func Run[S any](ctx context.Context, opts Options[S]) (*Result[S], error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	if opts.LoggerInit == nil {
		opts.LoggerInit = logger.InitLogger
	}
	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}

	db, err := openDatabase(ctx, opts)
	if err != nil {
		return nil, err
	}
	res := &Result[S]{DB: db}
	if err := prepare(ctx, opts, res); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func prepare[S any](ctx context.Context, opts Options[S], res *Result[S]) error {
	var err error
	if opts.NewStorage != nil {
		if res.Storage, err = opts.NewStorage(res.DB); err != nil {
			return fmt.Errorf("bootstrap: storage: %w", err)
		}
	}
	for i, seeder := range opts.Modules.Seeders {
		if seeder.Seed == nil {
			continue
		}
		name := seeder.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if err := seeder.Seed(ctx, res.Storage); err != nil {
			return fmt.Errorf("bootstrap: seeder %s: %w", name, err)
		}
		logger.LogEvent(ctx, logger.SEED, slog.LevelDebug, "seed.done", slog.String("seeder", name))
	}
	if opts.Modules.Services != nil {
		if res.Services, err = opts.Modules.Services(ctx, res.Storage); err != nil {
			return fmt.Errorf("bootstrap: services: %w", err)
		}
	}
	return nil
}

func openDatabase[S any](ctx context.Context, opts Options[S]) (*sqlx.DB, error) {
	if !opts.Database.Enabled() {
		logger.LogEvent(ctx, logger.DB, slog.LevelWarn, "db.disabled",
			slog.String("reason", "database.host is empty, data is kept in memory"),
		)
		return nil, nil
	}
	connect, migrate := opts.Connect, opts.Migrate
	if connect == nil {
		connect = coredatabase.Connect
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}
	return db, nil
}
