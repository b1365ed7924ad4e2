package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.uber.org/ratelimit"

	"github.com/m3rciful/appealbot/core/logger"
	tg "github.com/m3rciful/appealbot/core/telegram"
	"github.com/m3rciful/appealbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/appealbot/core/telegram/sender"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// DefaultSendRate is the outbound message budget per second. Telegram
// allows about 30 messages per second across all chats.
const DefaultSendRate = 25

// API is the part of *tele.Bot the transport calls.
type API interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
	Edit(msg tele.Editable, what any, opts ...any) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Pin(msg tele.Editable, opts ...any) error
	Unpin(chat tele.Recipient, messageID ...int) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	SetCommands(opts ...any) error
	ChatByID(id int64) (*tele.Chat, error)
}

// Enqueuer runs best-effort calls in the background. *sender.Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, action, endpoint string, run func() error) error
}

// TransportOptions configures NewTransport.
type TransportOptions struct {
	API      API
	Registry *tg.Registry
	// Async runs deletes, unpins and callback answers. Nil runs them inline.
	Async Enqueuer
	// Rate is the number of sends and edits allowed per second.
	Rate int
}

// Transport implements workflow.Transport over the Bot API. Messages use
// legacy Markdown; callers escape user text.
type Transport struct {
	api   API
	reg   *tg.Registry
	async Enqueuer
	rl    ratelimit.Limiter
}

var _ workflow.Transport = (*Transport)(nil)

// NewTransport builds a Transport.
func NewTransport(opts TransportOptions) (*Transport, error) {
	if opts.API == nil || opts.Registry == nil {
		return nil, errors.New("bot: api and registry are required")
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultSendRate
	}
	return &Transport{
		api:   opts.API,
		reg:   opts.Registry,
		async: opts.Async,
		rl:    ratelimit.New(opts.Rate, ratelimit.Per(time.Second)),
	}, nil
}

// Send posts a new message and returns its id.
func (t *Transport) Send(_ context.Context, chatID int64, text string, kb workflow.Keyboard) (int, error) {
	opts := []any{tele.ModeMarkdown, tele.NoPreview}
	if len(kb) > 0 {
		opts = append(opts, keyboard.InlineButtonsRows(kb...))
	}
	t.rl.Take()
	msg, err := t.api.Send(&tele.Chat{ID: chatID}, text, opts...)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	return msg.ID, nil
}

// Edit replaces the text and keyboard of a message. A nil keyboard drops the buttons.
func (t *Transport) Edit(_ context.Context, chatID int64, messageID int, text string, kb workflow.Keyboard) error {
	opts := []any{tele.ModeMarkdown, tele.NoPreview}
	if len(kb) > 0 {
		opts = append(opts, keyboard.InlineButtonsRows(kb...))
	}
	t.rl.Take()
	_, err := t.api.Edit(stored(chatID, messageID), text, opts...)
	if err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		return fmt.Errorf("edit %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Delete removes messages. Failures are logged only.
func (t *Transport) Delete(ctx context.Context, chatID int64, messageIDs ...int) {
	for _, id := range messageIDs {
		if id == 0 {
			continue
		}
		msg := stored(chatID, id)
		t.background(ctx, "delete", "deleteMessage", func() error {
			return t.api.Delete(msg)
		})
	}
}

// Pin pins a message without notifying the chat.
func (t *Transport) Pin(_ context.Context, chatID int64, messageID int) error {
	if err := t.api.Pin(stored(chatID, messageID), tele.Silent); err != nil {
		return fmt.Errorf("pin %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Unpin unpins the current pinned message, if any.
func (t *Transport) Unpin(ctx context.Context, chatID int64) {
	t.background(ctx, "unpin", "unpinChatMessage", func() error {
		return t.api.Unpin(&tele.Chat{ID: chatID})
	})
}

// Notify answers a callback query.
func (t *Transport) Notify(ctx context.Context, callbackID, text string) {
	t.background(ctx, "respond", "answerCallbackQuery", func() error {
		return t.api.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
	})
}

// SetCommands installs the menu of r in one chat.
func (t *Transport) SetCommands(_ context.Context, chatID int64, r role.Role) error {
	return tg.SetChatCommands(t.api, t.reg, chatID, r.Rank())
}

// DisplayName returns @username, the full name, or the id when the chat is unknown.
func (t *Transport) DisplayName(ctx context.Context, userID int64) string {
	chat, err := t.api.ChatByID(userID)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "tg.chat.lookup",
			slog.Int64("target", userID),
			logger.Err(err),
		)
		return strconv.FormatInt(userID, 10)
	}
	if chat.Username != "" {
		return "@" + chat.Username
	}
	if name := strings.TrimSpace(chat.FirstName + " " + chat.LastName); name != "" {
		return name
	}
	return strconv.FormatInt(userID, 10)
}

func (t *Transport) background(ctx context.Context, action, endpoint string, run func() error) {
	if t.async != nil {
		err := t.async.Enqueue(context.WithoutCancel(ctx), action, endpoint, run)
		if err == nil {
			return
		}
		if !errors.Is(err, tgsender.ErrQueueFull) {
			logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.enqueue", slog.String("action", action), logger.Err(err))
			return
		}
	}
	if err := run(); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg."+action, logger.Err(err))
	}
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}
