package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/appealbot/core/logger"
	tg "github.com/m3rciful/appealbot/core/telegram"
	"github.com/m3rciful/appealbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"
	"github.com/m3rciful/appealbot/core/telegram/router"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// Engine is the part of *workflow.Engine the bot feeds.
type Engine interface {
	Handle(ctx context.Context, ev workflow.Event) error
	Commands() []workflow.Command
	Callbacks() []string
}

// Handler converts updates into events and hands them to engine. The engine
// reports its own failures, so the handler never returns them to telebot.
func Handler(engine Engine) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev, ok := EventFrom(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		if err := engine.Handle(ctx, ev); err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.failed", logger.Err(err))
		}
		return nil
	}
}

// conversation routes text and media of users with an open flow.
type conversation struct {
	sessions state.Manager
	handle   tele.HandlerFunc
}

func (f conversation) InProgress(userID int64) bool { return f.sessions.InProgress(userID) }

func (f conversation) ManagerHandler(c tele.Context) error { return f.handle(c) }

// Register fills reg with the commands and buttons of engine and returns the
// routes to install on the bot.
func Register(reg *tg.Registry, engine Engine, sessions state.Manager) ([]tg.Route, error) {
	handle := Handler(engine)

	for _, cmd := range engine.Commands() {
		err := reg.RegisterCommand("/"+cmd.Name, commands.Command{
			Handler:     handle,
			Description: cmd.Description,
			Level:       cmd.MinRole.Rank(),
			Hidden:      cmd.Hidden,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, unique := range engine.Callbacks() {
		if err := reg.RegisterCallback(unique, handle); err != nil {
			return nil, err
		}
	}
	// Step buttons are only known to the current step.
	reg.SetCallbackNotFound(handle)

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(conversation{sessions: sessions, handle: handle}, router.TextOptions{})...)
	return routes, nil
}
