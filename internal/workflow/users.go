package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/m3rciful/appealbot/core/telegram/format"
	"github.com/m3rciful/appealbot/core/telegram/keyboard"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/moderation"
	"github.com/m3rciful/appealbot/internal/role"
)

const (
	panelUsers      = "users"
	panelModerators = "moderators"
)

func (e *Engine) registerUsersPanel() {
	e.callback(cbBan, role.Moderator, e.onBan)
	e.callback(cbUnban, role.Moderator, e.onUnban)
	e.callback(cbPanelReturn, role.Moderator, e.onPanelReturn)

	e.table.Register(StateBanTerm, state.EventCallback, e.onBanTerm)
	e.table.Register(StateBanReason, state.EventCallback, e.onBanReason)
	e.table.Register(StateBanIDs, state.EventText, e.onBanIDs)
	e.table.Register(StateUnbanIDs, state.EventText, e.onUnbanIDs)
}

var (
	closeRow      = keyboard.Row(button(textClose, cbPanelClose, ""))
	usersKeyboard = Keyboard{
		keyboard.Row(button(textBan, cbBan, ""), button(textUnban, cbUnban, "")),
		closeRow,
	}
)

func returnRow(panel string) []keyboard.InlineBtn {
	return keyboard.Row(button(textReturn, cbPanelReturn, panel))
}

func banTermKeyboard() Keyboard {
	kb := make(Keyboard, 0, len(BanTerms)+1)
	for i, t := range BanTerms {
		kb = append(kb, keyboard.Row(button(t.Label, cbBanTerm, strconv.Itoa(i))))
	}
	return append(kb, returnRow(panelUsers))
}

func banReasonKeyboard() Keyboard {
	kb := make(Keyboard, 0, len(BanReasons)+1)
	for i, r := range BanReasons {
		kb = append(kb, keyboard.Row(button(r, cbBanReason, strconv.Itoa(i))))
	}
	return append(kb, returnRow(panelUsers))
}

func (e *Engine) cmdUsers(ctx context.Context, ev Event) error {
	_, err := e.tr.Send(ctx, ev.ChatID, textChooseAction, usersKeyboard)
	return err
}

func (e *Engine) onPanelReturn(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)
	switch ev.Payload {
	case panelUsers:
		return e.tr.Edit(ctx, ev.ChatID, ev.MessageID, textChooseAction, usersKeyboard)
	case panelModerators:
		r, err := e.store.GetRole(ctx, ev.UserID, true)
		if err != nil {
			return err
		}
		if !r.AtLeast(role.Admin) {
			e.toast(ctx, textNotAllowed)
			return nil
		}
		return e.tr.Edit(ctx, ev.ChatID, ev.MessageID, textChooseAction, moderatorsKeyboard)
	}
	e.toast(ctx, textExpired)
	return nil
}

func (e *Engine) onBan(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)
	if err := e.tr.Edit(ctx, ev.ChatID, ev.MessageID, textChooseBanTerm, banTermKeyboard()); err != nil {
		return err
	}
	e.sessions.SetState(ev.UserID, StateBanTerm)
	return nil
}

func (e *Engine) onBanTerm(ctx context.Context, ev Event) error {
	idx, err := strconv.Atoi(ev.Payload)
	if ev.Unique != cbBanTerm || err != nil || idx < 0 || idx >= len(BanTerms) {
		e.toast(ctx, textExpired)
		return nil
	}
	if err := e.tr.Edit(ctx, ev.ChatID, ev.MessageID, textChooseBanReason, banReasonKeyboard()); err != nil {
		return err
	}
	e.sessions.SetTemp(ev.UserID, keyBanTerm, BanTerms[idx].Days)
	e.sessions.SetState(ev.UserID, StateBanReason)
	return nil
}

func (e *Engine) onBanReason(ctx context.Context, ev Event) error {
	idx, err := strconv.Atoi(ev.Payload)
	if ev.Unique != cbBanReason || err != nil || idx < 0 || idx >= len(BanReasons) {
		e.toast(ctx, textExpired)
		return nil
	}
	e.sessions.SetTemp(ev.UserID, keyBanReason, BanReasons[idx])
	return e.askTargets(ctx, ev, textInputBanIDs, StateBanIDs)
}

func (e *Engine) onUnban(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)
	return e.askTargets(ctx, ev, textInputUnbanIDs, StateUnbanIDs)
}

// askTargets replaces the panel with the id prompt.
func (e *Engine) askTargets(ctx context.Context, ev Event, prompt string, next state.State) error {
	e.tr.Delete(ctx, ev.ChatID, nonZero(ev.MessageID)...)
	id, err := e.tr.Send(ctx, ev.ChatID, prompt, nil)
	if err != nil {
		return err
	}
	e.sessions.SetTemp(ev.UserID, keyPromptMsg, id)
	e.sessions.SetState(ev.UserID, next)
	return nil
}

func (e *Engine) onBanIDs(ctx context.Context, ev Event) error {
	return e.runBatch(ctx, ev, moderation.Ban)
}

func (e *Engine) onUnbanIDs(ctx context.Context, ev Event) error {
	return e.runBatch(ctx, ev, moderation.Unban)
}

// runBatch applies the pending ban or unban to every id in the message and
// replies with a summary.
func (e *Engine) runBatch(ctx context.Context, ev Event, mode moderation.Mode) error {
	uid := ev.UserID
	term, _ := e.sessions.GetTemp(uid, keyBanTerm)
	days, _ := term.(int)
	reason := e.sessions.GetTempString(uid, keyBanReason)
	prompt := e.tempInt(uid, keyPromptMsg)
	e.sessions.Clear(uid)

	actor, err := e.store.GetRole(ctx, uid, true)
	if err != nil {
		return err
	}
	if !actor.AtLeast(role.Moderator) {
		_, err := e.tr.Send(ctx, ev.ChatID, textNotAllowed, nil)
		return err
	}

	res := e.mod.Process(ctx, moderation.Request{
		ActorID:   uid,
		ActorRole: actor,
		Targets:   ev.Text,
		Mode:      mode,
		TermDays:  days,
		Reason:    reason,
	})

	names := e.displayNames(ctx, res.Applied)
	var text string
	if mode == moderation.Unban {
		text = fmt.Sprintf(textUnbanDone, names, res.Skipped())
	} else {
		until, ago := "-", "-"
		if !res.BanEnd.IsZero() {
			until, ago = res.BanEnd.Format("2006-01-02 15:04"), humanize.Time(res.BanEnd)
		}
		text = fmt.Sprintf(textBanDone, names, days, until, ago, format.Markdown(reason), res.Skipped())
	}
	if _, err := e.tr.Send(ctx, ev.ChatID, text, nil); err != nil {
		return err
	}
	e.tr.Delete(ctx, ev.ChatID, nonZero(prompt, ev.MessageID)...)
	return nil
}

func (e *Engine) displayNames(ctx context.Context, ids []int64) string {
	if len(ids) == 0 {
		return textNobody
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = format.Markdown(e.tr.DisplayName(ctx, id))
	}
	return strings.Join(names, ", ")
}
