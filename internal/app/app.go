// Package app assembles the appeal bot from its configuration: storage,
// Telegram transport, workflow engine and the attachment relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/appealbot/core/bootstrap"
	corecmd "github.com/m3rciful/appealbot/core/cmd"
	"github.com/m3rciful/appealbot/core/logger"
	tg "github.com/m3rciful/appealbot/core/telegram"
	tgsender "github.com/m3rciful/appealbot/core/telegram/sender"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/bot"
	"github.com/m3rciful/appealbot/internal/config"
	"github.com/m3rciful/appealbot/internal/relay"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
	"github.com/m3rciful/appealbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// App holds the wired components for one process.
type App struct {
	cfg        *config.Config
	bot        *tele.Bot
	reg        *tg.Registry
	dispatcher *tgsender.Dispatcher
	engine     *workflow.Engine
	routes     []tg.Route
	bridge     *relay.Bridge
	relay      *relay.Server
	closers    []func() error
}

var (
	_ corecmd.TelegramApp = (*App)(nil)
	_ corecmd.ServiceApp  = (*App)(nil)
	_ corecmd.Closer      = (*App)(nil)
)

// NewStorage returns the Postgres store when db is set and an in-memory one otherwise.
func NewStorage(db *sqlx.DB) (store.Store, error) {
	if db == nil {
		return store.NewMemory(), nil
	}
	return store.NewPostgres(db), nil
}

// SeedAdmin stores the configured admin account with the admin role.
func SeedAdmin(adminID int64) bootstrap.Seeder[store.Store] {
	return bootstrap.Seeder[store.Store]{Name: "admin", Seed: func(ctx context.Context, st store.Store) error {
		if adminID == 0 {
			return nil
		}
		if err := st.EnsureUser(ctx, adminID); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		change, err := st.SetRole(ctx, adminID, role.Admin)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.LogEvent(ctx, logger.SEED, slog.LevelInfo, "seed.admin",
			slog.Int64("admin_id", adminID),
			slog.String("result", change.String()),
		)
		return nil
	}}
}

// Provider builds the App over cfg once storage is ready. The bot is created
// with tg.NewBot unless newBot is set.
func Provider(cfg *config.Config, newBot func(*config.Config) (*tele.Bot, error)) bootstrap.Provider[store.Store] {
	return func(_ context.Context, st store.Store) (any, error) {
		if cfg == nil || st == nil {
			return nil, errors.New("app: config and store are required")
		}
		if newBot == nil {
			newBot = func(cfg *config.Config) (*tele.Bot, error) { return tg.NewBot(&cfg.Config) }
		}
		b, err := newBot(cfg)
		if err != nil {
			return nil, err
		}
		return New(cfg, st, b)
	}
}

// New wires the components over st and b.
func New(cfg *config.Config, st store.Store, b *tele.Bot) (*App, error) {
	if cfg == nil || st == nil || b == nil {
		return nil, errors.New("app: config, store and bot are required")
	}
	st = store.WithAdmin(st, cfg.Telegram.AdminID)

	reg := tg.NewRegistry()
	dispatcher := tgsender.NewDispatcher(tgsender.Options{MaxRetries: 2})
	transport, err := bot.NewTransport(bot.TransportOptions{
		API:      b,
		Registry: reg,
		Async:    dispatcher,
		Rate:     cfg.Workflow.SendRate,
	})
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	sessions := state.NewMemoryManager()
	engine, err := workflow.New(workflow.Options{
		Store:        st,
		Sessions:     sessions,
		Transport:    transport,
		RelayURL:     cfg.Relay.PublicURL,
		AlbumLatency: cfg.Workflow.AlbumLatency(),
	})
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	routes, err := bot.Register(reg, engine, sessions)
	if err != nil {
		engine.Close()
		dispatcher.Close()
		return nil, err
	}

	bridge := relay.NewBridge(st, cfg.Relay.BridgeQueue, cfg.Relay.BridgeTimeout())
	server := relay.NewServer(relay.Config{
		Listen:  cfg.Relay.Listen,
		Port:    cfg.Relay.Port,
		TLSCert: cfg.Relay.TLSCert,
		TLSKey:  cfg.Relay.TLSKey,
	}, bridge, bot.NewFiles(b))

	return &App{
		cfg:        cfg,
		bot:        b,
		reg:        reg,
		dispatcher: dispatcher,
		engine:     engine,
		routes:     routes,
		bridge:     bridge,
		relay:      server,
	}, nil
}

// TelegramRunOptions describes how the core runtime starts the bot.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.reg,
		Bot:         a.bot,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      a.routes,
		OnStop: func(context.Context, tg.Runtime) error {
			// Pending albums still need the dispatcher, which closes next.
			a.engine.Close()
			return nil
		},
	}, nil
}

// Services returns the relay server and its storage bridge.
func (a *App) Services() []corecmd.Service {
	return []corecmd.Service{
		{Name: "relay.bridge", Run: a.bridge.Serve},
		{Name: "relay.server", Run: a.relay.Run},
	}
}

// AddCloser registers fn to run on Close, after albums are flushed.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close flushes buffered albums and releases registered resources. It is
// safe to call after OnStop.
func (a *App) Close() error {
	a.engine.Close()
	var errs []error
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
