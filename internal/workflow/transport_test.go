package workflow

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

const (
	adminID int64 = 1
	modID   int64 = 10
	userID  int64 = 100
)

type message struct {
	chatID int64
	id     int
	text   string
	kb     Keyboard
}

// fakeTransport records everything the engine sends.
type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	sent     []message
	edits    []message
	deleted  []int
	pinned   []int
	toasts   []string
	menus    map[int64]role.Role
	failEdit bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 1000, menus: make(map[int64]role.Role)}
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, message{chatID: chatID, id: f.nextID, text: text, kb: kb})
	return f.nextID, nil
}

func (f *fakeTransport) Edit(_ context.Context, chatID int64, msgID int, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit {
		return errors.New("edit refused")
	}
	f.edits = append(f.edits, message{chatID: chatID, id: msgID, text: text, kb: kb})
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, _ int64, ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
}

func (f *fakeTransport) Pin(_ context.Context, _ int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, id)
	return nil
}

func (f *fakeTransport) Unpin(context.Context, int64) {}

func (f *fakeTransport) Notify(_ context.Context, _ string, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, text)
}

func (f *fakeTransport) SetCommands(_ context.Context, chatID int64, r role.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus[chatID] = r
	return nil
}

func (f *fakeTransport) DisplayName(_ context.Context, id int64) string {
	return "user_" + strconv.FormatInt(id, 10)
}

func (f *fakeTransport) lastSent() message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return message{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) lastEdit() message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return message{}
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeTransport) lastToast() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toasts) == 0 {
		return ""
	}
	return f.toasts[len(f.toasts)-1]
}

func (f *fakeTransport) wasDeleted(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deleted {
		if d == id {
			return true
		}
	}
	return false
}

type harness struct {
	t        *testing.T
	engine   *Engine
	mem      *store.Memory
	tr       *fakeTransport
	sessions state.Manager
	msgID    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := store.NewMemory()
	tr := newFakeTransport()
	sessions := state.NewMemoryManager()
	e, err := New(Options{
		Store:        store.WithAdmin(mem, adminID),
		Sessions:     sessions,
		Transport:    tr,
		RelayURL:     "https://files.example.org:8443/",
		AlbumLatency: 40 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return &harness{t: t, engine: e, mem: mem, tr: tr, sessions: sessions, msgID: 1}
}

func (h *harness) nextMsg() int {
	h.msgID++
	return h.msgID
}

func (h *harness) dispatch(ev Event) {
	h.t.Helper()
	require.NoError(h.t, h.engine.Dispatch(context.Background(), ev))
}

func (h *harness) text(uid int64, s string) Event {
	return Event{Kind: state.EventText, UserID: uid, ChatID: uid, MessageID: h.nextMsg(), Text: s}
}

func (h *harness) command(uid int64, name string) Event {
	return Event{Kind: state.EventCommand, UserID: uid, ChatID: uid, MessageID: h.nextMsg(), Command: name}
}

func (h *harness) press(uid int64, msgID int, unique, payload string) Event {
	return Event{
		Kind:       state.EventCallback,
		UserID:     uid,
		ChatID:     uid,
		MessageID:  msgID,
		CallbackID: "cb" + strconv.Itoa(h.nextMsg()),
		Unique:     unique,
		Payload:    payload,
	}
}

func (h *harness) media(uid int64, album, caption string, kind AttachmentKind, fileID string) Event {
	id := h.nextMsg()
	return Event{
		Kind:        state.EventMedia,
		UserID:      uid,
		ChatID:      uid,
		MessageID:   id,
		Text:        caption,
		AlbumID:     album,
		Attachments: []Attachment{{Kind: kind, FileID: fileID}},
		MessageIDs:  []int{id},
	}
}

func (h *harness) register(uid int64) {
	h.t.Helper()
	require.NoError(h.t, h.mem.UpsertProfile(context.Background(), store.Profile{
		UserID: uid, FullName: "Jane Roe", Contact: "+100",
	}))
}

func (h *harness) promote(uid int64, r role.Role) {
	h.t.Helper()
	_, err := h.mem.SetRole(context.Background(), uid, r)
	require.NoError(h.t, err)
}

func (h *harness) state(uid int64) state.State {
	return h.sessions.GetState(uid)
}
