package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/appealbot/core/logger"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"
	"github.com/m3rciful/appealbot/core/telegram/middleware"
	"github.com/m3rciful/appealbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// guard applies the per-route middleware every router installs.
func guard(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// routed runs fn under the handler name and writes one update.routed record.
// A nil fn is logged as skipped.
func routed(c tele.Context, name string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	ctx := tghelpers.WithHandler(c, name)
	start := time.Now()

	status := "skip"
	var err error
	if fn != nil {
		err = fn(c)
		status = logger.Status(err)
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("kind", middleware.UpdateKind(c.Update())),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.routed", append(attrs, extras...)...)
	return err
}

// handlerName turns a command or callback key into a log friendly name.
func handlerName(prefix, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		key = "unknown"
	}
	return prefix + "." + strings.ReplaceAll(key, " ", "_")
}

type codedError interface{ Code() string }

func errorCode(err error) string {
	var coded codedError
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(string(netutil.Classify(err)))
}
