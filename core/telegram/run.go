package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/appealbot/core/config"
	"github.com/m3rciful/appealbot/core/logger"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/appealbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint: a command string, a
// tele.Callback or one of the On* constants.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram. Only Config is required.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// Bot is built with NewBot when nil.
	Bot *tele.Bot

	DispatcherOptions tgsender.Options
	// Dispatcher is created from DispatcherOptions when nil. RunTelegram
	// closes it on return either way.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook leaves a registered webhook in place in long polling mode.
	KeepWebhook bool

	// OnStart runs after handlers are installed and before polling starts.
	// An error aborts the run.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs once polling has stopped, before the dispatcher closes.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// NewBot builds a bot with the configured poller and HTTP client.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config")
	}
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})
	b, err := tele.NewBot(tele.Settings{
		Token:       cfg.Telegram.Token,
		Poller:      poller,
		Client:      BuildHTTPClient(HTTPClientOptions{PollTimeout: pollTimeout(poller)}),
		Synchronous: cfg.Telegram.IsSynchronous(),
		OnError:     reportError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return b, nil
}

// reportError receives handler errors that reached telebot.
func reportError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.error", logger.Err(err))
}

// RunTelegram installs the handlers and polls until ctx is done or the
// poller stops on its own.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	started := time.Now()
	b := opts.Bot
	if b == nil {
		var err error
		if b, err = NewBot(opts.Config); err != nil {
			return err
		}
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	defer dispatcher.Close()

	announce(ctx, b, opts.Config, logger.Took(started))
	if _, longPoll := b.Poller.(*tele.LongPoller); longPoll && !opts.KeepWebhook {
		dropWebhook(ctx, b)
	}
	install(b, opts)
	InitBotCommands(b, opts.Registry)

	rt := Runtime{Bot: b, Dispatcher: dispatcher, Registry: opts.Registry}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := poll(ctx, b)
	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func install(b *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			b.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			b.Handle(r.Endpoint, r.Handler)
		}
	}
}

// poll blocks in bot.Start until ctx ends or the poller returns.
func poll(ctx context.Context, b *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.Stop()
		<-done
		return ctx.Err()
	}
}

func announce(ctx context.Context, b *tele.Bot, cfg *coreconfig.Config, took time.Duration) {
	attrs := []slog.Attr{
		slog.Bool("synchronous", cfg.Telegram.IsSynchronous()),
		slog.Duration("duration", took),
	}
	switch p := b.Poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
		)
	default:
		attrs = append(attrs, slog.String("mode", fmt.Sprintf("%T", p)))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.mode", attrs...)
}

// dropWebhook removes a webhook left by an earlier deployment, which would
// make getUpdates fail.
func dropWebhook(ctx context.Context, b *tele.Bot) {
	if err := b.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.webhook.delete", logger.Err(err))
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "tg.webhook.delete")
}
