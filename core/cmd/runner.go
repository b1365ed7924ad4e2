// Package cmd is the shared process entry point: load config, bootstrap the
// app, then run the bot and its services until a signal arrives.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/appealbot/core/config"
	"github.com/m3rciful/appealbot/core/logger"
	coretelegram "github.com/m3rciful/appealbot/core/telegram"
)

// ConfigCarrier exposes the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp describes how to run the bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Service is a long-running task started next to the bot. It returns once
// ctx is cancelled.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// ServiceApp is implemented by apps that run background services.
type ServiceApp interface {
	Services() []Service
}

// Closer is implemented by apps holding resources released after the run.
type Closer interface {
	Close() error
}

// Options wire the process. LoadConfig and Bootstrap are required.
type Options struct {
	// ConfigEnvVar names the variable holding the config path. Defaults to CONFIG_PATH.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: set %s or a default config path", env)
}

// Run blocks until SIGINT or SIGTERM, or until the bot or a service stops.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path, err := opts.configPath()
	if err != nil {
		return err
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: config carries no core section")
	}

	started := time.Now()
	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	if opts.ShutdownLogger == nil {
		opts.ShutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()
	if c, ok := app.(Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Event(context.Background(), "app", slog.LevelError, "app.close", logger.Err(err))
			}
		}()
	}

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	withLifecycleLogs(&runOpts, started)

	if opts.RunTelegram == nil {
		opts.RunTelegram = coretelegram.RunTelegram
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var services []Service
	if sa, ok := app.(ServiceApp); ok {
		services = sa.Services()
	}
	return serve(ctx, func(ctx context.Context) error { return opts.RunTelegram(ctx, runOpts) }, services)
}

// withLifecycleLogs reports readiness after OnStart and shutdown before OnStop.
func withLifecycleLogs(opts *coretelegram.RunOptions, started time.Time) {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Event(ctx, "app", slog.LevelInfo, "ready", slog.Duration("startup_duration", logger.Took(started)))
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Event(ctx, "app", slog.LevelInfo, "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

// serve runs the bot and the services with one shared lifetime: whichever
// ends first stops the rest.
func serve(parent context.Context, bot func(context.Context) error, services []Service) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		return bot(gctx)
	})
	for _, svc := range services {
		if svc.Run == nil {
			continue
		}
		group.Go(func() error {
			defer cancel()
			if err := svc.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", svc.Name, err)
			}
			return nil
		})
	}
	return group.Wait()
}
