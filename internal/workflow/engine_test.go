package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{Store: store.NewMemory()})
	require.Error(t, err)
}

func TestTransitionTableComplete(t *testing.T) {
	h := newHarness(t)
	for st, kinds := range requiredSteps {
		for _, kind := range kinds {
			_, ok := h.engine.table.Lookup(st, kind)
			require.True(t, ok, "%s/%s", st, kind)
		}
	}

	empty := state.NewTable[Event]()
	require.ErrorIs(t, empty.Validate(requiredSteps), state.ErrIncompleteTable)
}

func TestStartCommand(t *testing.T) {
	h := newHarness(t)

	h.dispatch(h.command(userID, "start"))

	hello := h.tr.lastSent()
	require.Equal(t, textHello, hello.text)
	require.Equal(t, startKeyboard, hello.kb)
	require.Equal(t, []int{hello.id}, h.tr.pinned)
	require.Equal(t, role.User, h.tr.menus[userID])

	_, err := h.mem.GetUser(context.Background(), userID)
	require.NoError(t, err)

	h.dispatch(h.command(adminID, "start"))
	require.Equal(t, role.Admin, h.tr.menus[adminID])
}

func TestCommandClearsSession(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.dispatch(h.press(userID, 0, cbAppealStart, ""))
	require.True(t, h.sessions.InProgress(userID))

	h.dispatch(h.command(userID, "myid"))
	require.False(t, h.sessions.InProgress(userID))
	require.Equal(t, "Your id: `100`", h.tr.lastSent().text)
}

func TestCommandRoleGate(t *testing.T) {
	h := newHarness(t)

	h.dispatch(h.command(userID, "users"))
	h.dispatch(h.command(userID, "moderators"))
	h.dispatch(h.command(userID, "appeals"))
	require.Empty(t, h.tr.sent)

	h.promote(modID, role.Moderator)
	h.dispatch(h.command(modID, "moderators"))
	require.Empty(t, h.tr.sent)
	h.dispatch(h.command(modID, "users"))
	require.Equal(t, usersKeyboard, h.tr.lastSent().kb)
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.dispatch(h.command(userID, "nope"))
	require.Empty(t, h.tr.sent)
}

func TestCommandsFor(t *testing.T) {
	h := newHarness(t)
	names := func(r role.Role) []string {
		var out []string
		for _, c := range h.engine.CommandsFor(r) {
			out = append(out, c.Name)
		}
		return out
	}
	require.Equal(t, []string{"start", "profile"}, names(role.User))
	require.Equal(t, []string{"start", "profile", "appeals", "users"}, names(role.Moderator))
	require.Equal(t, []string{"start", "profile", "appeals", "users", "moderators"}, names(role.Admin))
}

func TestAppealsCommand(t *testing.T) {
	h := newHarness(t)
	h.promote(modID, role.Moderator)

	h.dispatch(h.command(modID, "appeals"))
	require.Equal(t, textNoAppeals, h.tr.lastSent().text)

	h.register(userID)
	h.walkToPolice(userID, "Stolen phone")
	h.dispatch(h.text(userID, "no"))

	h.dispatch(h.command(modID, "appeals"))
	text := h.tr.lastSent().text
	require.True(t, strings.HasPrefix(text, "*Appeals*\nNew: 1\nTotal: 1\nLast: "), text)
}

func TestCallbackAnsweredOnce(t *testing.T) {
	h := newHarness(t)
	h.register(userID)

	h.dispatch(h.press(userID, 0, cbAppealStart, ""))
	require.Equal(t, []string{""}, h.tr.toasts)

	h.dispatch(h.press(userID, 0, "no_such_button", ""))
	require.Equal(t, []string{"", textExpired}, h.tr.toasts)

	h.dispatch(h.press(userID, 0, cbNoop, ""))
	require.Len(t, h.tr.toasts, 3)
}

func TestStaleCallbackInOtherFlow(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.dispatch(h.press(userID, 0, cbAppealStart, ""))

	// A ban term button pressed while choosing a category.
	h.dispatch(h.press(userID, 0, cbBanTerm, "0"))
	require.Equal(t, StateCategory, h.state(userID))
	require.Equal(t, textExpired, h.tr.lastToast())
}

func TestTextOutsideFlowIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.dispatch(h.text(userID, "hello?"))
	require.Empty(t, h.tr.sent)
}

func TestPanicBoundary(t *testing.T) {
	h := newHarness(t)
	h.engine.command("boom", "", role.User, true, func(context.Context, Event) error {
		panic("kaboom")
	})

	err := h.engine.Dispatch(context.Background(), h.command(userID, "boom"))
	require.ErrorIs(t, err, ErrInternal)
	require.Equal(t, textUnexpected, h.tr.lastSent().text)

	// The per-user lock is released after a panic.
	h.dispatch(h.command(userID, "myid"))
	require.Equal(t, "Your id: `100`", h.tr.lastSent().text)
}

func TestStepErrorSendsNotice(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.dispatch(h.press(userID, 0, cbAppealStart, ""))

	h.tr.failEdit = true
	err := h.engine.Dispatch(context.Background(), h.press(userID, h.tr.lastSent().id, cbCategory, "0"))
	require.Error(t, err)
	require.Equal(t, textUnexpected, h.tr.lastSent().text)
}

func TestMergeAlbum(t *testing.T) {
	ev := mergeAlbum([]Event{
		{MessageID: 1, Text: "", Attachments: []Attachment{{Photo, "a"}}, MessageIDs: []int{1}},
		{MessageID: 2, Text: "first", Attachments: []Attachment{{Video, "b"}}, MessageIDs: []int{2}},
		{MessageID: 3, Text: "second", Attachments: []Attachment{{Photo, "c"}}, MessageIDs: []int{3}},
	})
	require.Equal(t, 1, ev.MessageID)
	require.Equal(t, "first", ev.Text)
	require.Equal(t, []int{1, 2, 3}, ev.MessageIDs)
	require.Equal(t, []Attachment{{Photo, "a"}, {Video, "b"}, {Photo, "c"}}, ev.Attachments)
}
