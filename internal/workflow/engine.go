// Package workflow drives the conversational flows of the bot: appeal intake,
// profile registration, ban management and moderator management.
//
// Every inbound event goes through Engine.Dispatch, which serialises events of
// one user, routes them by the user's current step and converts any failure
// into a logged error plus a generic notice.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/metrics"
	"github.com/m3rciful/appealbot/core/telegram/album"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/moderation"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

// ErrInternal wraps panics recovered at the event boundary.
var ErrInternal = errors.New("workflow: internal error")

type handlerFunc func(ctx context.Context, ev Event) error

// Command describes a slash command and who may run it.
type Command struct {
	Name        string
	Description string
	MinRole     role.Role
	Hidden      bool
	run         handlerFunc
}

type callbackRoute struct {
	minRole role.Role
	run     handlerFunc
}

// Options configures an Engine.
type Options struct {
	Store     store.Store
	Sessions  state.Manager
	Transport Transport
	// Moderation defaults to a processor over Store.
	Moderation *moderation.Processor
	// RelayURL prefixes attachment hashes, e.g. https://files.example.org:8443.
	RelayURL     string
	AlbumLatency time.Duration
	Now          func() time.Time
}

// Engine routes events to flow steps.
type Engine struct {
	store    store.Store
	sessions state.Manager
	tr       Transport
	mod      *moderation.Processor
	relayURL string
	now      func() time.Time

	table     *state.Table[Event]
	commands  []Command
	callbacks map[string]callbackRoute
	album     *album.Coordinator[Event]
}

// requiredSteps lists every (step, event kind) pair that must have a transition.
var requiredSteps = map[state.State][]state.EventKind{
	StateCategory:    {state.EventCallback},
	StateAddress:     {state.EventText},
	StateBody:        {state.EventText, state.EventMedia},
	StatePolice:      {state.EventText, state.EventCallback},
	StateFullName:    {state.EventText},
	StateContact:     {state.EventText},
	StateBanTerm:     {state.EventCallback},
	StateBanReason:   {state.EventCallback},
	StateBanIDs:      {state.EventText},
	StateUnbanIDs:    {state.EventText},
	StateModeratorID: {state.EventText},
}

// New builds an Engine and checks its transition table is complete.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Sessions == nil || opts.Transport == nil {
		return nil, fmt.Errorf("workflow: store, sessions and transport are required")
	}
	e := &Engine{
		store:     opts.Store,
		sessions:  opts.Sessions,
		tr:        opts.Transport,
		mod:       opts.Moderation,
		relayURL:  strings.TrimRight(opts.RelayURL, "/"),
		now:       opts.Now,
		table:     state.NewTable[Event](),
		callbacks: make(map[string]callbackRoute),
	}
	if e.mod == nil {
		e.mod = moderation.New(opts.Store)
	}
	if e.now == nil {
		e.now = time.Now
	}

	e.registerCommands()
	e.registerAppeal()
	e.registerRegistration()
	e.registerUsersPanel()
	e.registerModeratorsPanel()
	if err := e.table.Validate(requiredSteps); err != nil {
		return nil, err
	}

	coord, err := album.New(album.Options[Event]{
		Latency: opts.AlbumLatency,
		Deliver: e.deliverAlbum,
	})
	if err != nil {
		return nil, err
	}
	e.album = coord
	return e, nil
}

// Commands returns the registered commands in menu order.
func (e *Engine) Commands() []Command {
	return e.commands
}

// Callbacks returns the button uniques routed regardless of the current step, sorted.
func (e *Engine) Callbacks() []string {
	out := make([]string, 0, len(e.callbacks))
	for unique := range e.callbacks {
		out = append(out, unique)
	}
	sort.Strings(out)
	return out
}

// Close flushes buffered albums.
func (e *Engine) Close() {
	e.album.Close()
}

func (e *Engine) command(name, description string, min role.Role, hidden bool, fn handlerFunc) {
	e.commands = append(e.commands, Command{
		Name:        name,
		Description: description,
		MinRole:     min,
		Hidden:      hidden,
		run:         fn,
	})
}

func (e *Engine) callback(unique string, min role.Role, fn handlerFunc) {
	if _, dup := e.callbacks[unique]; dup {
		panic("workflow: duplicate callback " + unique)
	}
	e.callbacks[unique] = callbackRoute{minRole: min, run: fn}
}

// Handle admits ev, buffering media that belongs to an album.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	if ev.Kind == state.EventMedia && ev.AlbumID != "" {
		if e.album.Admit(ctx, ev.AlbumID, ev) == album.Buffered {
			return nil
		}
	}
	return e.Dispatch(ctx, ev)
}

func (e *Engine) deliverAlbum(ctx context.Context, b album.Batch[Event]) error {
	if len(b.Events) == 0 {
		return nil
	}
	return e.Dispatch(ctx, mergeAlbum(b.Events))
}

// mergeAlbum folds album parts into one media event. The first caption wins.
func mergeAlbum(events []Event) Event {
	merged := events[0]
	merged.Attachments = nil
	merged.MessageIDs = nil
	merged.Text = ""
	for _, ev := range events {
		if merged.Text == "" {
			merged.Text = ev.Text
		}
		merged.Attachments = append(merged.Attachments, ev.Attachments...)
		merged.MessageIDs = append(merged.MessageIDs, ev.MessageIDs...)
	}
	return merged
}

type replyKey struct{}

// callbackReply collects the toast answered once per callback event.
type callbackReply struct {
	text string
}

func (e *Engine) toast(ctx context.Context, text string) {
	if r, ok := ctx.Value(replyKey{}).(*callbackReply); ok {
		r.text = text
	}
}

// Dispatch processes one event. Failures are logged and reported to the user
// here; the returned error is informational.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (err error) {
	start := time.Now()
	unlock := e.sessions.Lock(ev.UserID)
	defer unlock()

	reply := &callbackReply{}
	ctx = context.WithValue(ctx, replyKey{}, reply)

	name, outcome := "unknown", "ok"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternal, r)
			logger.LogEvent(ctx, logger.WF, slog.LevelError, "workflow.panic",
				slog.String("handler", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
		if err != nil {
			outcome = "fail"
			e.failNotice(ctx, ev)
		}
		if ev.Kind == state.EventCallback && ev.CallbackID != "" {
			e.tr.Notify(ctx, ev.CallbackID, reply.text)
		}
		took := time.Since(start)
		metrics.HandlerDuration.WithLabelValues(name, outcome).Observe(took.Seconds())
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("handler", name),
			slog.String("outcome", outcome),
			slog.String("kind", string(ev.Kind)),
			slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
		logger.LogEvent(logger.WithHandler(ctx, name), logger.WF, slog.LevelInfo, "handler.handled", attrs...)
	}()

	var fn handlerFunc
	name, outcome, fn = e.route(ctx, ev)
	if fn == nil {
		return nil
	}
	return fn(ctx, ev)
}

// route picks the handler for ev. A nil handler means the event is dropped
// with the returned outcome.
func (e *Engine) route(ctx context.Context, ev Event) (string, string, handlerFunc) {
	switch ev.Kind {
	case state.EventCommand:
		name := "command." + ev.Command
		for _, cmd := range e.commands {
			if cmd.Name != ev.Command {
				continue
			}
			if cmd.MinRole > role.User {
				r, err := e.store.GetRole(ctx, ev.UserID, true)
				if err != nil {
					return name, "fail", func(context.Context, Event) error { return err }
				}
				if !r.AtLeast(cmd.MinRole) {
					return name, "denied", nil
				}
			}
			return name, "ok", func(ctx context.Context, ev Event) error {
				e.sessions.Clear(ev.UserID)
				return cmd.run(ctx, ev)
			}
		}
		return "command.unknown", "skip", nil

	case state.EventCallback:
		name := "callback." + ev.Unique
		if cb, ok := e.callbacks[ev.Unique]; ok {
			if cb.minRole > role.User {
				r, err := e.store.GetRole(ctx, ev.UserID, true)
				if err != nil {
					return name, "fail", func(context.Context, Event) error { return err }
				}
				if !r.AtLeast(cb.minRole) {
					e.toast(ctx, textNotAllowed)
					return name, "denied", nil
				}
			}
			return name, "ok", cb.run
		}
		st := e.sessions.GetState(ev.UserID)
		if fn, ok := e.table.Lookup(st, state.EventCallback); ok {
			return string(st) + ".callback", "ok", handlerFunc(fn)
		}
		e.toast(ctx, textExpired)
		return name, "stale", nil

	default:
		st := e.sessions.GetState(ev.UserID)
		fn, ok := e.table.Lookup(st, ev.Kind)
		if !ok {
			return string(st) + "." + string(ev.Kind), "skip", nil
		}
		return string(st) + "." + string(ev.Kind), "ok", handlerFunc(fn)
	}
}

func (e *Engine) failNotice(ctx context.Context, ev Event) {
	if ev.ChatID == 0 {
		return
	}
	if _, err := e.tr.Send(ctx, ev.ChatID, textUnexpected, nil); err != nil {
		logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "workflow.notice.fail", logger.Err(err))
	}
}
