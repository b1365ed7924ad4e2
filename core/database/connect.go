package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/appealbot/core/logger"
)

// Connect opens the Postgres pool described by cfg and pings it.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	target := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	target = append(target, slog.Duration("duration", logger.Took(start)))
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect", append(target, logger.Err(err))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", append(target, slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// WaitForPostgres pings the database until it answers or ctx ends.
func WaitForPostgres(ctx context.Context, dsn string, every time.Duration) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		pingErr := db.PingContext(ctx)
		if pingErr == nil {
			return nil
		}
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.wait", logger.Err(pingErr))
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database: %w", pingErr)
		case <-ticker.C:
		}
	}
}
