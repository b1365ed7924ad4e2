package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/appealbot/core/telegram/format"
	"github.com/m3rciful/appealbot/core/telegram/keyboard"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

func (e *Engine) registerRegistration() {
	e.callback(cbProfileChange, role.User, e.changeProfile)

	e.table.Register(StateFullName, state.EventText, e.onFullName)
	e.table.Register(StateContact, state.EventText, e.onContact)
}

var profileKeyboard = Keyboard{keyboard.Row(button(textChangeProfile, cbProfileChange, ""))}

func profileCard(p store.Profile) string {
	return fmt.Sprintf(textYourProfile, format.Markdown(p.FullName), format.Markdown(p.Contact))
}

// startRegistration asks for the full name. With resume set a finished
// registration continues into a new appeal.
func (e *Engine) startRegistration(ctx context.Context, ev Event, resume bool) error {
	id, err := e.tr.Send(ctx, ev.ChatID, textInputName, nil)
	if err != nil {
		return err
	}
	if resume {
		e.sessions.SetTemp(ev.UserID, keyResumeAppeal, true)
	}
	e.appendTempInts(ev.UserID, keyRegMsgs, id)
	e.sessions.SetState(ev.UserID, StateFullName)
	return nil
}

func (e *Engine) changeProfile(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)
	e.tr.Delete(ctx, ev.ChatID, nonZero(ev.MessageID)...)
	return e.startRegistration(ctx, ev, false)
}

func (e *Engine) onFullName(ctx context.Context, ev Event) error {
	name := strings.TrimSpace(ev.Text)
	e.appendTempInts(ev.UserID, keyRegMsgs, nonZero(ev.MessageID)...)
	if name == "" {
		id, err := e.tr.Send(ctx, ev.ChatID, textInputName, nil)
		if err != nil {
			return err
		}
		e.appendTempInts(ev.UserID, keyRegMsgs, id)
		return nil
	}
	e.sessions.SetTemp(ev.UserID, keyFullName, store.Truncate(name, store.MaxFullName))

	id, err := e.tr.Send(ctx, ev.ChatID, textInputContact, nil)
	if err != nil {
		return err
	}
	e.appendTempInts(ev.UserID, keyRegMsgs, id)
	e.sessions.SetState(ev.UserID, StateContact)
	return nil
}

func (e *Engine) onContact(ctx context.Context, ev Event) error {
	contact := strings.TrimSpace(ev.Text)
	e.appendTempInts(ev.UserID, keyRegMsgs, nonZero(ev.MessageID)...)
	if contact == "" {
		id, err := e.tr.Send(ctx, ev.ChatID, textInputContact, nil)
		if err != nil {
			return err
		}
		e.appendTempInts(ev.UserID, keyRegMsgs, id)
		return nil
	}

	prof := store.Profile{
		UserID:   ev.UserID,
		FullName: e.sessions.GetTempString(ev.UserID, keyFullName),
		Contact:  store.Truncate(contact, store.MaxContact),
	}
	if err := e.store.UpsertProfile(ctx, prof); err != nil {
		return err
	}

	resume := e.sessions.GetTempBool(ev.UserID, keyResumeAppeal)
	msgs := e.tempInts(ev.UserID, keyRegMsgs)
	e.sessions.Clear(ev.UserID)

	if _, err := e.tr.Send(ctx, ev.ChatID, profileCard(prof), profileKeyboard); err != nil {
		return err
	}
	e.tr.Delete(ctx, ev.ChatID, msgs...)
	if resume {
		return e.enterCategory(ctx, ev)
	}
	return nil
}
