package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/appealbot/core/logger"
)

// RunMigrations applies all embedded up migrations.
func RunMigrations(cfg Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := WaitForPostgres(ctx, cfg.DSN(), 2*time.Second); err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate.wait", logger.Err(err))
		return fmt.Errorf("database not ready: %w", err)
	}

	files := listMigrationFiles(migrationFS, migrationDir)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "db.migrate.resolve", logger.List("files", files, 6)...)

	src, err := iofs.New(migrationFS, migrationDir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate.init", logger.Err(err))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "db.migrate.close", logger.Err(errors.Join(srcErr, dbErr)))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	took := logger.Took(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate.apply",
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", took),
			logger.Err(err),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}

	to, _, _ := m.Version()
	applied := selectApplied(files, uint64(from), uint64(to))
	attrs := []slog.Attr{
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Duration("duration", took),
	}
	attrs = append(attrs, logger.List("applied", applied, 6)...)
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "db.migrate.summary", attrs...)
	return nil
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
