package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/telegram/format"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

func (e *Engine) registerCommands() {
	e.command("start", "Start the bot", role.User, false, e.cmdStart)
	e.command("profile", "Show your profile", role.User, false, e.cmdProfile)
	e.command("myid", "Show your id", role.User, true, e.cmdMyID)
	e.command("appeals", "Appeal statistics", role.Moderator, false, e.cmdAppeals)
	e.command("users", "Ban or unban users", role.Moderator, false, e.cmdUsers)
	e.command("moderators", "Manage moderators", role.Admin, false, e.cmdModerators)

	e.callback(cbNoop, role.User, func(context.Context, Event) error { return nil })
	e.callback(cbPanelClose, role.Moderator, e.closePanel)
}

// CommandsFor returns the visible commands r may run, in menu order.
func (e *Engine) CommandsFor(r role.Role) []Command {
	var out []Command
	for _, c := range e.commands {
		if !c.Hidden && r.AtLeast(c.MinRole) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) cmdStart(ctx context.Context, ev Event) error {
	if err := e.store.EnsureUser(ctx, ev.UserID); err != nil {
		return err
	}
	id, err := e.tr.Send(ctx, ev.ChatID, textHello, startKeyboard)
	if err != nil {
		return err
	}
	e.tr.Unpin(ctx, ev.ChatID)
	if err := e.tr.Pin(ctx, ev.ChatID, id); err != nil {
		logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "start.pin.fail", logger.Err(err))
	}

	r, err := e.store.GetRole(ctx, ev.UserID, true)
	if err != nil {
		return err
	}
	if err := e.tr.SetCommands(ctx, ev.ChatID, r); err != nil {
		logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "start.commands.fail", logger.Err(err))
	}
	return nil
}

func (e *Engine) cmdMyID(ctx context.Context, ev Event) error {
	_, err := e.tr.Send(ctx, ev.ChatID, fmt.Sprintf(textYourID, format.Code(strconv.FormatInt(ev.UserID, 10))), nil)
	return err
}

func (e *Engine) cmdProfile(ctx context.Context, ev Event) error {
	prof, err := e.store.GetProfile(ctx, ev.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return e.startRegistration(ctx, ev, false)
	}
	if err != nil {
		return err
	}
	_, err = e.tr.Send(ctx, ev.ChatID, profileCard(prof), profileKeyboard)
	return err
}

// cmdAppeals reports how many appeals exist and when the last one arrived.
func (e *Engine) cmdAppeals(ctx context.Context, ev Event) error {
	appeals, err := e.store.ListAppeals(ctx, 0)
	if err != nil {
		return err
	}
	if len(appeals) == 0 {
		_, err = e.tr.Send(ctx, ev.ChatID, textNoAppeals, nil)
		return err
	}
	var fresh int64
	last := appeals[0].CreatedAt
	for _, a := range appeals {
		if a.Status == store.AppealStatusNew {
			fresh++
		}
		if a.CreatedAt.After(last) {
			last = a.CreatedAt
		}
	}
	text := fmt.Sprintf(textAppealsSummary,
		humanize.Comma(fresh),
		humanize.Comma(int64(len(appeals))),
		humanize.RelTime(last, e.now(), "ago", "from now"),
	)
	_, err = e.tr.Send(ctx, ev.ChatID, text, nil)
	return err
}

func (e *Engine) closePanel(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)
	e.tr.Delete(ctx, ev.ChatID, nonZero(ev.MessageID)...)
	return nil
}
