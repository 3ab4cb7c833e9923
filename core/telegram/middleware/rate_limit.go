package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/m3rciful/bookingbot/core/logger"
	tghelpers "github.com/m3rciful/bookingbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware enforces a minimum interval between updates from the
// same user. Each accepted update opens a window that expires on its own, so
// idle users cost nothing.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	windows := cache.New(opts.Interval, cleanupEvery(opts.Interval))
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if err := windows.Add(strconv.FormatInt(user.ID, 10), struct{}{}, opts.Interval); err == nil {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("op", kind),
			)
			rateLimitedTotal.WithLabelValues(kind).Inc()
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func cleanupEvery(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return max(interval*10, time.Minute)
}
