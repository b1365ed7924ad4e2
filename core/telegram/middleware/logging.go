package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids; the middleware can sit on
// more than one route group.
type seenUpdates struct {
	mu  sync.Mutex
	ids *expirable.LRU[int, struct{}]
}

func newSeenUpdates(size int, ttl time.Duration) *seenUpdates {
	return &seenUpdates{ids: expirable.NewLRU[int, struct{}](size, nil, ttl)}
}

// first reports whether id is new and records it.
func (s *seenUpdates) first(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids.Contains(id) {
		return false
	}
	s.ids.Add(id, struct{}{})
	return true
}

var received = newSeenUpdates(4096, 10*time.Second)

// LoggerMiddleware stores the update context on c and writes one sampled
// update.received record per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if logger.ShouldSampleDebug() && received.first(upd.ID) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{slog.String("kind", UpdateKind(upd))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		unique, payload := callbacks.ParseCallbackData(upd.Callback)
		if unique != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(unique, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if text := c.Text(); text != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
		}
		if upd.Message.AlbumID != "" {
			attrs = append(attrs, slog.String("album", upd.Message.AlbumID))
		}
	}
	return attrs
}
