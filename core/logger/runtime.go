package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type (
	loggerKey struct{}
	metaKey   struct{}
)

// Meta identifies the update or HTTP request a record belongs to.
type Meta struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
}

// Attrs renders the non-zero fields of m.
func (m Meta) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 5)
	if m.RID != "" {
		attrs = append(attrs, slog.String("rid", m.RID))
	}
	if m.UpdateID != 0 {
		attrs = append(attrs, slog.Int("update_id", m.UpdateID))
	}
	if m.UserID != 0 {
		attrs = append(attrs, slog.Int64("user_id", m.UserID))
	}
	if m.ChatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", m.ChatID))
	}
	if m.Handler != "" {
		attrs = append(attrs, slog.String("handler", m.Handler))
	}
	return attrs
}

// MetaFrom returns the metadata stored in ctx, or the zero Meta.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// WithMeta replaces the metadata carried by ctx.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey{}, m)
}

// WithRID sets the correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	m := MetaFrom(ctx)
	m.RID = rid
	return WithMeta(ctx, m)
}

// WithUpdate records the Telegram identifiers of an update. The rid is
// derived from them unless one is already set.
func WithUpdate(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	m := MetaFrom(ctx)
	m.UpdateID, m.UserID, m.ChatID = updateID, userID, chatID
	if m.RID == "" {
		m.RID = UpdateRID(updateID, chatID, userID)
	}
	return WithMeta(ctx, m)
}

// WithHandler names the handler serving the current update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	m := MetaFrom(ctx)
	m.Handler = handler
	return WithMeta(ctx, m)
}

// WithLogger stores log in ctx for FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored in ctx or the root logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return L
}

// UpdateRID builds the correlation id of an update: update, chat and user ids
// in base36, dot separated.
func UpdateRID(updateID int, chatID, userID int64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(updateID), 36))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(chatID, 36))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(userID, 36))
	return b.String()
}

// Sanitize drops control and format runes other than tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit applies Sanitize and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	s = Sanitize(s)
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
