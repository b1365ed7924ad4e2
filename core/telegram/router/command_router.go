package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/appealbot/core/logger"
	tg "github.com/m3rciful/appealbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes returns one route per registered command and alias. Access
// checks belong to the handlers; the menu level only drives visibility.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	names := reg.Commands()
	routes := make([]tg.Route, 0, len(names))
	for _, cmd := range names {
		_, def, _ := reg.LookupCommand(cmd)
		name := handlerName("command", cmd)
		next := def.Handler
		h := guard(func(c tele.Context) error { return routed(c, name, next) })

		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			if alias == "" {
				continue
			}
			if alias[0] != '/' {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "tg.wire",
		slog.Int("commands", len(names)),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
