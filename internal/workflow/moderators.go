package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/telegram/callbacks"
	"github.com/m3rciful/appealbot/core/telegram/format"
	"github.com/m3rciful/appealbot/core/telegram/keyboard"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

const paySep = "|"

func (e *Engine) registerModeratorsPanel() {
	e.callback(cbModAdd, role.Admin, e.onModAdd)
	e.callback(cbModPage, role.Admin, e.onModPage)
	e.callback(cbModCard, role.Admin, e.onModCard)
	e.callback(cbModDemote, role.Admin, e.onModDemote)

	e.table.Register(StateModeratorID, state.EventText, e.onModeratorID)
}

var moderatorsKeyboard = Keyboard{
	keyboard.Row(button(textAppoint, cbModAdd, "")),
	keyboard.Row(button(textModList, cbModPage, "0")),
	closeRow,
}

func (e *Engine) cmdModerators(ctx context.Context, ev Event) error {
	_, err := e.tr.Send(ctx, ev.ChatID, textChooseAction, moderatorsKeyboard)
	return err
}

func (e *Engine) onModAdd(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)
	return e.askTargets(ctx, ev, textInputModID, StateModeratorID)
}

func (e *Engine) onModeratorID(ctx context.Context, ev Event) error {
	uid := ev.UserID
	prompt := e.tempInt(uid, keyPromptMsg)

	target, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil || target <= 0 {
		_, err := e.tr.Send(ctx, ev.ChatID, textBadID, nil)
		return err
	}
	e.sessions.Clear(uid)

	change, err := e.store.SetRole(ctx, target, role.Moderator)
	if err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.WF, slog.LevelInfo, "moderator.appoint",
		slog.Int64("target", target),
		slog.String("result", change.String()),
	)

	var text string
	switch change {
	case store.RoleApplied:
		e.notifyRole(ctx, target, role.Moderator, textYouModerator)
		text = fmt.Sprintf(textModAppointed, format.Markdown(e.tr.DisplayName(ctx, target)))
	case store.RoleNoOpSameRole:
		text = textAlreadyModer
	default:
		text = textPrivileged
	}
	if _, err := e.tr.Send(ctx, ev.ChatID, text, nil); err != nil {
		return err
	}
	e.tr.Delete(ctx, ev.ChatID, nonZero(prompt, ev.MessageID)...)
	return nil
}

// notifyRole tells target about its new role and reinstalls its command menu.
// Failures are logged; the role change itself already happened.
func (e *Engine) notifyRole(ctx context.Context, target int64, r role.Role, text string) {
	if _, err := e.tr.Send(ctx, target, text, nil); err != nil {
		logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "role.notify.fail",
			slog.Int64("target", target), logger.Err(err))
	}
	if err := e.tr.SetCommands(ctx, target, r); err != nil {
		logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "role.commands.fail",
			slog.Int64("target", target), logger.Err(err))
	}
}

func (e *Engine) onModPage(ctx context.Context, ev Event) error {
	page, err := callbacks.Int(ev.Payload)
	if err != nil {
		e.toast(ctx, textExpired)
		return nil
	}
	return e.showModerators(ctx, ev, page)
}

// showModerators edits the panel into one page of the moderator list. An
// empty list leaves the panel as it is.
func (e *Engine) showModerators(ctx context.Context, ev Event, page int) error {
	mods, err := e.store.ListByRole(ctx, role.Moderator)
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		e.toast(ctx, textNoModerators)
		return nil
	}
	pages := (len(mods) + ModeratorsPageSize - 1) / ModeratorsPageSize
	page = min(max(page, 0), pages-1)

	from := page * ModeratorsPageSize
	to := min(from+ModeratorsPageSize, len(mods))
	kb := make(Keyboard, 0, ModeratorsPageSize+3)
	for _, m := range mods[from:to] {
		kb = append(kb, keyboard.Row(button(e.tr.DisplayName(ctx, m.ID), cbModCard, callbacks.Join(paySep, m.ID, page))))
	}

	nav := keyboard.Row()
	if page > 0 {
		nav = append(nav, button(textPrev, cbModPage, strconv.Itoa(page-1)))
	}
	nav = append(nav, button(fmt.Sprintf("%d/%d", page+1, pages), cbNoop, ""))
	if page < pages-1 {
		nav = append(nav, button(textNext, cbModPage, strconv.Itoa(page+1)))
	}
	kb = append(kb, nav, returnRow(panelModerators), closeRow)

	return e.tr.Edit(ctx, ev.ChatID, ev.MessageID, textModList, kb)
}

func (e *Engine) onModCard(ctx context.Context, ev Event) error {
	target, page, err := callbacks.TwoInt64(ev.Payload, paySep)
	if err != nil {
		e.toast(ctx, textExpired)
		return nil
	}
	u, err := e.store.GetUser(ctx, target)
	if errors.Is(err, store.ErrNotFound) || (err == nil && u.Role != role.Moderator) {
		e.toast(ctx, textNotModerator)
		return e.showModerators(ctx, ev, int(page))
	}
	if err != nil {
		return err
	}

	text := fmt.Sprintf(textModInfo, format.Markdown(e.tr.DisplayName(ctx, target)), humanize.Time(u.RegisteredAt))
	kb := Keyboard{
		keyboard.Row(button(textDemote, cbModDemote, callbacks.Join(paySep, target, page))),
		keyboard.Row(button(textReturn, cbModPage, strconv.FormatInt(page, 10))),
		closeRow,
	}
	return e.tr.Edit(ctx, ev.ChatID, ev.MessageID, text, kb)
}

func (e *Engine) onModDemote(ctx context.Context, ev Event) error {
	target, page, err := callbacks.TwoInt64(ev.Payload, paySep)
	if err != nil {
		e.toast(ctx, textExpired)
		return nil
	}
	current, err := e.store.GetRole(ctx, target, false)
	if errors.Is(err, store.ErrNotFound) || (err == nil && current != role.Moderator) {
		e.toast(ctx, textNotModerator)
		return e.showModerators(ctx, ev, int(page))
	}
	if err != nil {
		return err
	}

	change, err := e.store.SetRole(ctx, target, role.User)
	if err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.WF, slog.LevelInfo, "moderator.demote",
		slog.Int64("target", target),
		slog.String("result", change.String()),
	)
	switch change {
	case store.RoleApplied:
		e.notifyRole(ctx, target, role.User, textYouUser)
		e.toast(ctx, fmt.Sprintf(textModDemoted, e.tr.DisplayName(ctx, target)))
	case store.RoleNoOpPrivileged:
		e.toast(ctx, textPrivileged)
	default:
		e.toast(ctx, textNotModerator)
	}

	mods, err := e.store.ListByRole(ctx, role.Moderator)
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		return e.tr.Edit(ctx, ev.ChatID, ev.MessageID, textChooseAction, moderatorsKeyboard)
	}
	return e.showModerators(ctx, ev, int(page))
}
