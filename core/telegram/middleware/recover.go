package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/metrics"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged event. The update is
// dropped and the poller keeps running.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			metrics.Panics.Inc()
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("kind", UpdateKind(c.Update())),
				slog.String("stack", string(debug.Stack())),
			)
			err = nil
		}()
		return next(c)
	}
}
