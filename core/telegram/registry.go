package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrDuplicate is returned when a command, alias or callback key is taken.
var ErrDuplicate = errors.New("telegram: already registered")

// Registry holds the commands and callback handlers of a bot.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	order     []string
	callbacks map[string]tele.HandlerFunc
	notFound  tele.HandlerFunc
}

// NewRegistry returns an empty Registry whose unknown callbacks are answered
// with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		notFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func slash(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// RegisterCommand adds cmd under name, which must start with a slash. Menus
// list commands in registration order.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		return fmt.Errorf("telegram: invalid command %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.lookup(name); taken {
		return fmt.Errorf("command %s: %w", name, ErrDuplicate)
	}
	for _, alias := range cmd.Aliases {
		if _, taken := r.lookup(slash(alias)); taken || slash(alias) == name {
			return fmt.Errorf("alias %s: %w", alias, ErrDuplicate)
		}
	}
	r.commands[name] = cmd
	r.order = append(r.order, name)
	for _, alias := range cmd.Aliases {
		r.aliases[slash(alias)] = name
	}
	return nil
}

func (r *Registry) lookup(name string) (string, bool) {
	if _, ok := r.commands[name]; ok {
		return name, true
	}
	key, ok := r.aliases[name]
	return key, ok
}

// LookupCommand resolves a command name or alias, with or without the slash,
// to its canonical name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.lookup(slash(name))
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// Commands returns the command names in registration order.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ListCommandsFor returns the menu of an access level.
func (r *Registry) ListCommandsFor(level int) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var menu []tele.Command
	for _, name := range r.order {
		if cmd := r.commands[name]; cmd.VisibleTo(level) {
			menu = append(menu, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
		}
	}
	return menu
}

// RegisterCallback maps a callback unique key to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("telegram: invalid callback %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.callbacks[key]; taken {
		return fmt.Errorf("callback %s: %w", key, ErrDuplicate)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler of key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetCallbackNotFound replaces the handler of unknown callback keys. Nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler of unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// CommandSetter installs command menus. *tele.Bot satisfies it.
type CommandSetter interface {
	SetCommands(opts ...any) error
}

// InitBotCommands installs the level 0 menu as the default for all chats.
func InitBotCommands(bot CommandSetter, reg *Registry) {
	menu := reg.ListCommandsFor(0)
	if err := bot.SetCommands(menu); err != nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "tg.commands.set", logger.Err(err))
		return
	}
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelDebug, "tg.commands.set", slog.Int("commands", len(menu)))
}

// SetChatCommands installs the menu of level for a single chat.
func SetChatCommands(bot CommandSetter, reg *Registry, chatID int64, level int) error {
	scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: chatID}
	if err := bot.SetCommands(reg.ListCommandsFor(level), scope); err != nil {
		return fmt.Errorf("set commands for chat %d: %w", chatID, err)
	}
	return nil
}
