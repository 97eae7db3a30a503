package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/metrics"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminChecker reports whether the Telegram user may run admin-only handlers.
type AdminChecker func(ctx context.Context, userID int64) bool

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	IsAdmin AdminChecker
	// Action labels rejections in logs and metrics.
	Action   string
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only admins reach downstream handlers.
// Without a checker every sender is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			if opts.IsAdmin != nil && userID != 0 && opts.IsAdmin(ctx, userID) {
				return next(c)
			}

			metrics.IncAdminDenied(opts.Action)
			logger.Warn(ctx, "tg", "admin.denied",
				slog.String("action", opts.Action),
				slog.Int64("user_id", userID),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
