package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/appealbot/core/config"
	"github.com/m3rciful/appealbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type menuRecorder struct {
	calls [][]any
}

func (m *menuRecorder) SetCommands(opts ...any) error {
	m.calls = append(m.calls, opts)
	return nil
}

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"begin"}}))
	require.NoError(t, reg.RegisterCommand("/users", commands.Command{Handler: noop, Description: "Users", Level: 1}))
	require.NoError(t, reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true}))

	require.ErrorIs(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Again"}), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCommand("/go", commands.Command{Handler: noop, Description: "Go", Aliases: []string{"/begin"}}), ErrDuplicate)
	require.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "Start"}))
	require.Error(t, reg.RegisterCommand("/empty", commands.Command{Handler: noop}))

	key, _, ok := reg.LookupCommand("begin")
	require.True(t, ok)
	require.Equal(t, "/start", key)
	_, _, ok = reg.LookupCommand("/missing")
	require.False(t, ok)

	require.Equal(t, []string{"/start", "/users", "/debug"}, reg.Commands())
	require.Equal(t, []tele.Command{{Text: "start", Description: "Start"}}, reg.ListCommandsFor(0))
	require.Len(t, reg.ListCommandsFor(2), 2)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("b", noop))
	require.NoError(t, reg.RegisterCallback("a", noop))
	require.ErrorIs(t, reg.RegisterCallback("a", noop), ErrDuplicate)
	require.Error(t, reg.RegisterCallback("", noop))
	require.Equal(t, []string{"a", "b"}, reg.ListCallbacks())

	_, ok := reg.GetCallback("c")
	require.False(t, ok)
	require.NotNil(t, reg.CallbackNotFound())

	called := false
	reg.SetCallbackNotFound(func(tele.Context) error { called = true; return nil })
	reg.SetCallbackNotFound(nil)
	require.NoError(t, reg.CallbackNotFound()(nil))
	require.True(t, called)
}

func TestCommandMenus(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/users", commands.Command{Handler: noop, Description: "Users", Level: 1}))

	rec := &menuRecorder{}
	InitBotCommands(rec, reg)
	require.NoError(t, SetChatCommands(rec, reg, 42, 1))
	require.Len(t, rec.calls, 2)
	require.Equal(t, []any{[]tele.Command{{Text: "start", Description: "Start"}}}, rec.calls[0])
	require.Equal(t, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: 42}, rec.calls[1][1])
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(chain []Middleware) []string {
		var out []string
		for _, m := range chain {
			out = append(out, m.Name)
		}
		return out
	}
	require.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500, ExcludeUpdates: []string{"callback"}}}
	require.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names(DefaultMiddlewares(cfg, nil)))
}
