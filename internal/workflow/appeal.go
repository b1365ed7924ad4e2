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
	"github.com/m3rciful/appealbot/core/metrics"
	"github.com/m3rciful/appealbot/core/telegram/format"
	"github.com/m3rciful/appealbot/core/telegram/keyboard"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

func (e *Engine) registerAppeal() {
	e.callback(cbAppealStart, role.User, e.startAppeal)
	e.callback(cbAppealBack, role.User, e.stepBack)

	e.table.Register(StateCategory, state.EventCallback, e.onCategory)
	e.table.Register(StateAddress, state.EventText, e.onAddress)
	e.table.Register(StateBody, state.EventText, e.onBody)
	e.table.Register(StateBody, state.EventMedia, e.onBody)
	e.table.Register(StatePolice, state.EventText, e.onPoliceText)
	e.table.Register(StatePolice, state.EventCallback, e.onPoliceSkip)
}

var (
	startKeyboard  = Keyboard{keyboard.Row(button(textSendAppeal, cbAppealStart, ""))}
	backKeyboard   = Keyboard{keyboard.Row(button(textReturn, cbAppealBack, ""))}
	policeKeyboard = Keyboard{
		keyboard.Row(button(textNoPolice, cbPoliceSkip, "")),
		keyboard.Row(button(textReturn, cbAppealBack, "")),
	}
)

func categoryKeyboard() Keyboard {
	kb := make(Keyboard, 0, len(Categories))
	for i, c := range Categories {
		kb = append(kb, keyboard.Row(button(c, cbCategory, strconv.Itoa(i))))
	}
	return kb
}

// draft is the appeal collected in session data.
type draft struct {
	mainMsg     int
	category    string
	address     string
	body        string
	police      string
	attachments string
}

func (e *Engine) draft(userID int64) draft {
	return draft{
		mainMsg:     e.tempInt(userID, keyMainMsg),
		category:    e.sessions.GetTempString(userID, keyCategory),
		address:     e.sessions.GetTempString(userID, keyAddress),
		body:        e.sessions.GetTempString(userID, keyBody),
		police:      e.sessions.GetTempString(userID, keyPolice),
		attachments: e.sessions.GetTempString(userID, keyAttachments),
	}
}

// summary renders the running appeal header edited in place as steps complete.
func (d draft) summary() string {
	lines := []string{fmt.Sprintf(textCategoryLine, format.Markdown(d.category))}
	if d.address != "" {
		lines = append(lines, fmt.Sprintf(textAddressLine, format.Markdown(d.address)))
	}
	if d.police != "" {
		lines = append(lines, fmt.Sprintf(textPoliceLine, format.Markdown(d.police)))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) startAppeal(ctx context.Context, ev Event) error {
	e.sessions.Clear(ev.UserID)

	u, err := e.store.GetUser(ctx, ev.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := e.store.EnsureUser(ctx, ev.UserID); err != nil {
			return err
		}
	case err != nil:
		return err
	case u.BannedAt(e.now()):
		_, err := e.tr.Send(ctx, ev.ChatID, fmt.Sprintf(textBanned,
			u.BanEnd.Format("2006-01-02 15:04"), humanize.Time(*u.BanEnd)), nil)
		return err
	}

	if _, err := e.store.GetProfile(ctx, ev.UserID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return e.startRegistration(ctx, ev, true)
	}
	return e.enterCategory(ctx, ev)
}

func (e *Engine) enterCategory(ctx context.Context, ev Event) error {
	if _, err := e.tr.Send(ctx, ev.ChatID, textPickCategory, categoryKeyboard()); err != nil {
		return err
	}
	e.sessions.SetState(ev.UserID, StateCategory)
	return nil
}

func (e *Engine) onCategory(ctx context.Context, ev Event) error {
	idx, err := strconv.Atoi(ev.Payload)
	if ev.Unique != cbCategory || err != nil || idx < 0 || idx >= len(Categories) {
		e.toast(ctx, textExpired)
		return nil
	}
	e.sessions.SetTemp(ev.UserID, keyCategory, Categories[idx])
	e.sessions.SetTemp(ev.UserID, keyMainMsg, ev.MessageID)

	if err := e.tr.Edit(ctx, ev.ChatID, ev.MessageID, e.draft(ev.UserID).summary(), nil); err != nil {
		return err
	}
	return e.askAddress(ctx, ev)
}

func (e *Engine) askAddress(ctx context.Context, ev Event) error {
	id, err := e.tr.Send(ctx, ev.ChatID, textInputAddress, backKeyboard)
	if err != nil {
		return err
	}
	e.sessions.SetTemp(ev.UserID, keyPromptMsg, id)
	e.sessions.SetState(ev.UserID, StateAddress)
	return nil
}

func (e *Engine) onAddress(ctx context.Context, ev Event) error {
	address := strings.TrimSpace(ev.Text)
	if address == "" {
		_, err := e.tr.Send(ctx, ev.ChatID, textInputAddress, backKeyboard)
		return err
	}
	e.sessions.SetTemp(ev.UserID, keyAddress, store.Truncate(address, store.MaxAddress))

	d := e.draft(ev.UserID)
	if err := e.tr.Edit(ctx, ev.ChatID, d.mainMsg, d.summary(), nil); err != nil {
		return err
	}
	e.tr.Delete(ctx, ev.ChatID, nonZero(e.tempInt(ev.UserID, keyPromptMsg), ev.MessageID)...)
	return e.askBody(ctx, ev)
}

func (e *Engine) askBody(ctx context.Context, ev Event) error {
	id, err := e.tr.Send(ctx, ev.ChatID, textBodyStart, backKeyboard)
	if err != nil {
		return err
	}
	e.sessions.SetTemp(ev.UserID, keyPromptMsg, id)
	e.sessions.SetState(ev.UserID, StateBody)
	return nil
}

func (e *Engine) onBody(ctx context.Context, ev Event) error {
	e.sessions.SetTemp(ev.UserID, keyBody, store.Truncate(ev.Text, store.MaxBody))

	ids := ev.MessageIDs
	if len(ids) == 0 {
		ids = []int{ev.MessageID}
	}
	e.sessions.SetTemp(ev.UserID, keyBodyMsgs, ids)

	banned, err := e.store.IsBanned(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !banned {
		links, err := e.attachmentLinks(ctx, ev.Attachments)
		if err != nil {
			return err
		}
		if len(links) > 0 {
			e.sessions.SetTemp(ev.UserID, keyAttachments, strings.Join(links, "\n"))
		}
	}

	prompt := e.tempInt(ev.UserID, keyPromptMsg)
	id, err := e.tr.Send(ctx, ev.ChatID, textContactPolice, policeKeyboard)
	if err != nil {
		return err
	}
	e.tr.Delete(ctx, ev.ChatID, nonZero(prompt)...)
	e.sessions.SetTemp(ev.UserID, keyPromptMsg, id)
	e.sessions.SetState(ev.UserID, StatePolice)
	return nil
}

// attachmentLinks registers accepted attachments and returns their relay links.
func (e *Engine) attachmentLinks(ctx context.Context, atts []Attachment) ([]string, error) {
	var links []string
	for _, a := range atts {
		if !a.Kind.Accepted() || a.FileID == "" {
			continue
		}
		hash, err := e.store.SetHashLink(ctx, a.FileID)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", a.Kind, err)
		}
		links = append(links, e.relayURL+"/"+hash)
	}
	return links, nil
}

func (e *Engine) onPoliceText(ctx context.Context, ev Event) error {
	police := strings.TrimSpace(ev.Text)
	if police == "" {
		return nil
	}
	e.sessions.SetTemp(ev.UserID, keyPolice, store.Truncate(police, store.MaxPolice))
	return e.finalize(ctx, ev, e.tempInt(ev.UserID, keyPromptMsg), ev.MessageID)
}

func (e *Engine) onPoliceSkip(ctx context.Context, ev Event) error {
	if ev.Unique != cbPoliceSkip {
		e.toast(ctx, textExpired)
		return nil
	}
	e.sessions.SetTemp(ev.UserID, keyPolice, textNoPolice)
	return e.finalize(ctx, ev, ev.MessageID)
}

// finalize persists the draft and closes the flow. It is a no-op unless the
// session is still on the police step, so repeated answers never store twice.
func (e *Engine) finalize(ctx context.Context, ev Event, remove ...int) error {
	if e.sessions.GetState(ev.UserID) != StatePolice {
		return nil
	}
	d := e.draft(ev.UserID)
	e.sessions.Clear(ev.UserID)

	if err := e.persist(ctx, ev, d); err != nil {
		return err
	}

	if _, err := e.tr.Send(ctx, ev.ChatID, textBodyEnd, nil); err != nil {
		return err
	}
	e.tr.Delete(ctx, ev.ChatID, nonZero(remove...)...)
	if d.mainMsg != 0 {
		if err := e.tr.Edit(ctx, ev.ChatID, d.mainMsg, d.summary(), nil); err != nil {
			logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "appeal.summary.fail", logger.Err(err))
		}
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, ev Event, d draft) error {
	banned, err := e.store.IsBanned(ctx, ev.UserID)
	if err != nil {
		return err
	}
	result := "saved"
	switch {
	case banned:
		result = "banned"
	case d.body == "" && d.attachments == "":
		result = "empty"
	default:
		err = e.store.AddAppeal(ctx, store.Appeal{
			MessageID:   ev.MessageID,
			UserID:      ev.UserID,
			Status:      store.AppealStatusNew,
			CreatedAt:   e.now(),
			Category:    d.category,
			Address:     d.address,
			Body:        d.body,
			Police:      d.police,
			Attachments: d.attachments,
		})
		if errors.Is(err, store.ErrDuplicate) {
			result, err = "duplicate", nil
		}
	}
	if err != nil {
		metrics.Appeals.WithLabelValues("fail").Inc()
		return err
	}
	metrics.Appeals.WithLabelValues(result).Inc()
	logger.LogEvent(ctx, logger.WF, slog.LevelInfo, "appeal.finalize",
		slog.String("result", result),
		slog.String("category", d.category),
		slog.Int("attachments", linkCount(d.attachments)),
	)
	return nil
}

// stepBack returns to the previous appeal step. Outside address, body and
// police it does nothing.
func (e *Engine) stepBack(ctx context.Context, ev Event) error {
	uid := ev.UserID
	switch e.sessions.GetState(uid) {
	case StateAddress:
		e.tr.Delete(ctx, ev.ChatID, nonZero(ev.MessageID, e.tempInt(uid, keyMainMsg))...)
		for _, k := range []string{keyMainMsg, keyCategory, keyPromptMsg} {
			e.sessions.ClearTemp(uid, k)
		}
		return e.enterCategory(ctx, ev)

	case StateBody:
		e.tr.Delete(ctx, ev.ChatID, ev.MessageID)
		e.sessions.ClearTemp(uid, keyAddress)
		d := e.draft(uid)
		if d.mainMsg != 0 {
			if err := e.tr.Edit(ctx, ev.ChatID, d.mainMsg, d.summary(), nil); err != nil {
				return err
			}
		}
		return e.askAddress(ctx, ev)

	case StatePolice:
		e.tr.Delete(ctx, ev.ChatID, nonZero(append([]int{ev.MessageID}, e.tempInts(uid, keyBodyMsgs)...)...)...)
		for _, k := range []string{keyBody, keyBodyMsgs, keyAttachments} {
			e.sessions.ClearTemp(uid, k)
		}
		return e.askBody(ctx, ev)
	}
	return nil
}

func linkCount(links string) int {
	if links == "" {
		return 0
	}
	return strings.Count(links, "\n") + 1
}
