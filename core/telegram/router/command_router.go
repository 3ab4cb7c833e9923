package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/bookingbot/core/logger"
	tg "github.com/m3rciful/bookingbot/core/telegram"
	"github.com/m3rciful/bookingbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every registered command and alias to the dispatcher.
// The dispatcher decides whether a command continues a conversation, starts
// one, or runs statelessly.
func CommandRoutes(reg *tg.Registry, d Dispatcher) []tg.Route {
	if reg == nil || d == nil {
		return nil
	}

	endpoints := reg.Endpoints()
	routes := make([]tg.Route, 0, len(endpoints))
	for _, endpoint := range endpoints {
		name := normalizeHandlerName(endpoint)
		h := func(c tele.Context) error {
			start := time.Now()
			u := UpdateFrom(c)
			summarize(c, name, start, dispatch(c, d, name, u))
			return nil
		}
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("endpoints", len(endpoints)),
	)

	return routes
}
