package router

import (
	"log/slog"

	tg "github.com/m3rciful/appealbot/core/telegram"
	"github.com/m3rciful/appealbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown keys.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its unique key. Unknown
// keys go to opts.NotFound, then to the registry fallback, and are answered
// empty when neither is set. Handlers answer the query themselves.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		unique, _ := callbacks.ParseCallbackData(cb)
		name := handlerName("callback", unique)
		extras := []slog.Attr{slog.String("cb_key", unique)}

		if h, ok := reg.GetCallback(unique); ok && h != nil {
			return routed(c, name, h, extras...)
		}
		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		if fallback == nil {
			fallback = func(c tele.Context) error { return c.Respond() }
		}
		return routed(c, name, fallback, append(extras, slog.String("reason", "not_found"))...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: guard(handler)}
}
