package logger

import (
	"context"
	"log/slog"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// contextFields copies correlation data carried by ctx onto every record.
func contextFields() slogmulti.Middleware {
	return slogmulti.NewHandleInlineMiddleware(func(ctx context.Context, record slog.Record, next func(context.Context, slog.Record) error) error {
		if ctx == nil {
			return next(ctx, record)
		}
		attrs := MetaFrom(ctx).Attrs()
		if len(attrs) == 0 {
			return next(ctx, record)
		}
		record = record.Clone()
		record.AddAttrs(attrs...)
		return next(ctx, record)
	})
}

// replaceAttr renames the builtin keys and keeps timestamps in UTC millis.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String("ts", t.UTC().Truncate(time.Millisecond).Format(timeFormatMillis))
		}
	case slog.MessageKey:
		if a.Value.String() == "" {
			return slog.Attr{}
		}
		return slog.String("msg", Sanitize(a.Value.String()))
	}
	return a
}
