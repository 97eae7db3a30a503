package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate for AdminOnly commands.
type CommandRouteOptions struct {
	IsAdmin       middleware.AdminChecker
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. AdminOnly commands
// pass the admin check before their handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, cmd := range cmds {
		name := normalizeHandlerName(cmd.Name)
		inner := cmd.Handler
		if cmd.AdminOnly {
			inner = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
				IsAdmin:  opts.IsAdmin,
				Action:   name,
				OnReject: opts.OnAdminReject,
			})(inner)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd.Name,
			Handler: guard(func(c tele.Context) error {
				return handleWithSummary(c, name, time.Now(), func() error { return inner(c) })
			}),
		})
	}

	logger.Info(context.Background(), "tg.wire", "routes.commands",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}

// guard adds per-route panic recovery and update logging.
func guard(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
