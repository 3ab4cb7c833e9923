package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject conversation.CommandFunc
}

// AdminOnly wraps a command handler so that only the configured admin may run
// it. Without a configured admin every caller is rejected.
func AdminOnly(opts AdminOptions, next conversation.CommandFunc) conversation.CommandFunc {
	return func(ctx context.Context, u conversation.Update) []conversation.Message {
		if opts.AdminID == 0 || u.UserID != opts.AdminID {
			logger.Warn(ctx, "tg", "access.denied",
				slog.Int64("user_id", u.UserID),
				slog.String("handler", u.Command),
			)
			if opts.OnReject != nil {
				return opts.OnReject(ctx, u)
			}
			return nil
		}
		return next(ctx, u)
	}
}
