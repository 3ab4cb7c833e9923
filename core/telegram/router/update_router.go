package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/bookingbot/core/conversation"
	tg "github.com/m3rciful/bookingbot/core/telegram"
	"github.com/m3rciful/bookingbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/bookingbot/core/telegram/helpers"
	"github.com/m3rciful/bookingbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher receives transport-neutral updates.
type Dispatcher interface {
	Dispatch(ctx context.Context, u conversation.Update) conversation.Outcome
}

// UpdateFrom converts a telebot context into a conversation update.
func UpdateFrom(c tele.Context) conversation.Update {
	u := conversation.Update{ID: c.Update().ID}
	if s := c.Sender(); s != nil {
		u.UserID = s.ID
		u.UserName = s.Username
		u.FirstName = s.FirstName
	}
	if chat := c.Chat(); chat != nil {
		u.ChatID = chat.ID
	}
	if cb := c.Callback(); cb != nil {
		u.Callback, u.CallbackData = callbacks.ParseCallbackData(cb)
		return u
	}
	u.Text = c.Text()
	if cmd, args, ok := conversation.ParseCommand(u.Text); ok {
		u.Command = cmd
		u.Args = args
	}
	return u
}

func dispatch(c tele.Context, d Dispatcher, name string, u conversation.Update) conversation.Outcome {
	ctx := tghelpers.WithHandler(c, name)
	ctx = middleware.WithCounters(ctx, middleware.CountersFrom(c))
	return d.Dispatch(ctx, u)
}

func summarize(c tele.Context, name string, start time.Time, out conversation.Outcome, extras ...slog.Attr) {
	status := ""
	switch out {
	case conversation.OutcomeIgnored:
		status = "skip"
	case conversation.OutcomeFailed:
		status = "fail"
	}
	extras = append(extras, slog.String("dispatch", string(out)))
	logHandlerSummary(c, name, start, status, nil, extras...)
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes feeds plain text and unregistered commands to the dispatcher.
func TextRoutes(d Dispatcher, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		u := UpdateFrom(c)
		name := "text"
		if u.Command != "" {
			name = normalizeHandlerName(u.Command)
		}

		out := dispatch(c, d, name, u)
		if out != conversation.OutcomeIgnored {
			summarize(c, name, start, out)
			return nil
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", func() error {
				return opts.UnknownText(c)
			})
		}
		summarize(c, "unknown_text", start, out)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}

// CallbackRoute feeds inline button presses to the dispatcher. Callbacks no
// conversation claims go to the registry's not-found fallback.
func CallbackRoute(d Dispatcher, reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		u := UpdateFrom(c)
		name := "callback." + normalizeHandlerName(u.Callback)
		extras := []slog.Attr{slog.String("cb_key", u.Callback)}

		out := dispatch(c, d, name, u)
		if out != conversation.OutcomeIgnored {
			_ = c.Respond()
			summarize(c, name, start, out, extras...)
			return nil
		}

		var fallback tele.HandlerFunc
		if reg != nil {
			fallback = reg.CallbackNotFound()
		}
		extras = append(extras, slog.String("reason", "not_found"))
		return handleWithSummary(c, name, start, "skip", func() error {
			if fallback != nil {
				return fallback(c)
			}
			return c.Respond()
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
