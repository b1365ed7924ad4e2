package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// EventKind classifies inbound events for transition lookup.
type EventKind string

const (
	// EventText is a plain text message.
	EventText EventKind = "text"
	// EventCallback is an inline button press.
	EventCallback EventKind = "callback"
	// EventMedia is a message carrying attachments, possibly a merged album.
	EventMedia EventKind = "media"
	// EventCommand is a slash command.
	EventCommand EventKind = "command"
)

// Transition handles one event in one state.
type Transition[E any] func(ctx context.Context, ev E) error

type tableKey struct {
	state State
	kind  EventKind
}

// Table maps (state, event kind) pairs to transitions.
type Table[E any] struct {
	entries map[tableKey]Transition[E]
}

// NewTable returns an empty transition table.
func NewTable[E any]() *Table[E] {
	return &Table[E]{entries: make(map[tableKey]Transition[E])}
}

// Register binds fn to the pair. Registering the same pair twice panics,
// since it means two flows claim the same step.
func (t *Table[E]) Register(st State, kind EventKind, fn Transition[E]) {
	if fn == nil {
		return
	}
	k := tableKey{st, kind}
	if _, dup := t.entries[k]; dup {
		panic(fmt.Sprintf("state: duplicate transition %s/%s", st, kind))
	}
	t.entries[k] = fn
}

// Lookup returns the transition for the pair.
func (t *Table[E]) Lookup(st State, kind EventKind) (Transition[E], bool) {
	fn, ok := t.entries[tableKey{st, kind}]
	return fn, ok
}

// States returns the distinct states that have at least one transition, sorted.
func (t *Table[E]) States() []State {
	seen := make(map[State]struct{})
	for k := range t.entries {
		seen[k.state] = struct{}{}
	}
	out := make([]State, 0, len(seen))
	for st := range seen {
		out = append(out, st)
	}
	slices.Sort(out)
	return out
}

// ErrIncompleteTable reports required pairs with no transition.
var ErrIncompleteTable = errors.New("state: incomplete transition table")

// Validate checks that every required pair is registered.
func (t *Table[E]) Validate(required map[State][]EventKind) error {
	var missing []string
	for st, kinds := range required {
		for _, kind := range kinds {
			if _, ok := t.entries[tableKey{st, kind}]; !ok {
				missing = append(missing, string(st)+"/"+string(kind))
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s", ErrIncompleteTable, strings.Join(missing, ", "))
}
