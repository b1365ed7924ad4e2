package workflow

import (
	"context"

	"github.com/m3rciful/appealbot/core/telegram/keyboard"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/role"
)

// AttachmentKind is the media type of an inbound file.
type AttachmentKind string

const (
	Photo     AttachmentKind = "photo"
	Video     AttachmentKind = "video"
	Voice     AttachmentKind = "voice"
	VideoNote AttachmentKind = "video_note"
)

// Accepted reports whether attachments of this kind are kept in appeals.
func (k AttachmentKind) Accepted() bool {
	switch k {
	case Photo, Video, Voice, VideoNote:
		return true
	}
	return false
}

// Attachment references a file held by the messaging platform.
type Attachment struct {
	Kind   AttachmentKind
	FileID string
}

// Event is one inbound update, already stripped of transport types.
type Event struct {
	Kind      state.EventKind
	UserID    int64
	ChatID    int64
	MessageID int

	// Text is the message text or media caption.
	Text string
	// Command is the command name without the leading slash.
	Command string

	CallbackID string
	Unique     string
	Payload    string

	// AlbumID groups media messages sent together.
	AlbumID     string
	Attachments []Attachment
	// MessageIDs lists every message merged into this event, in order.
	MessageIDs []int
}

// Keyboard is a set of inline button rows. A nil keyboard removes buttons on edit.
type Keyboard [][]keyboard.InlineBtn

// Transport delivers replies back to the user. Delete, Unpin and Notify are
// best effort and never fail the calling step.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	Delete(ctx context.Context, chatID int64, messageIDs ...int)
	Pin(ctx context.Context, chatID int64, messageID int) error
	Unpin(ctx context.Context, chatID int64)
	// Notify answers a callback query, optionally with a toast.
	Notify(ctx context.Context, callbackID, text string)
	// SetCommands installs the command menu for r in one chat.
	SetCommands(ctx context.Context, chatID int64, r role.Role) error
	// DisplayName resolves a user id into something a moderator can read.
	DisplayName(ctx context.Context, userID int64) string
}

func button(text, unique, payload string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: unique, Data: payload}
}
