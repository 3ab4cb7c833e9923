package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
	"github.com/m3rciful/bookingbot/core/telegram/commands"
	"github.com/m3rciful/bookingbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands and the reply for buttons nothing handles.
type Registry struct {
	commands         map[string]commands.Command
	callbackNotFound tele.HandlerFunc
	admin            middleware.AdminOptions
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// SetAdmin configures who may run admin-only commands and what everyone else gets.
func (r *Registry) SetAdmin(opts middleware.AdminOptions) {
	r.admin = opts
}

// RegisterCommand adds a new command.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if r == nil || name == "" || cmd.Description == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if name[0] != '/' {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	name = strings.ToLower(name)
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.commands[name] = cmd
}

// RegisterFlow publishes the entry command of a conversation in the menu.
func (r *Registry) RegisterFlow(f *conversation.Flow) {
	if f == nil {
		return
	}
	r.RegisterCommand(f.Entry(), commands.Command{Description: f.Description()})
}

// ListCommands returns a slice of tele.Command, optionally filtering out hidden and admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: cmd, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand searches for a command by name or its aliases and returns the canonical key with metadata if found.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = conversation.NormalizeCommand(name)
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if conversation.NormalizeCommand(alias) == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Command resolves a stateless command handler, applying the admin check to
// admin-only commands. Menu-only entries yield false.
func (r *Registry) Command(name string) (conversation.CommandFunc, bool) {
	_, cmd, ok := r.LookupCommand(name)
	if !ok || cmd.Handler == nil {
		return nil, false
	}
	if cmd.AdminOnly {
		return middleware.AdminOnly(r.admin, cmd.Handler), true
	}
	return cmd.Handler, true
}

// Endpoints returns every command name and alias that telebot should route.
func (r *Registry) Endpoints() []string {
	var out []string
	for name, cmd := range r.commands {
		out = append(out, name)
		for _, alias := range cmd.Aliases {
			out = append(out, conversation.NormalizeCommand(alias))
		}
	}
	sort.Strings(out)
	return out
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// SetCallbackNotFound replaces the fallback for callbacks no conversation
// claims, such as buttons of a finished conversation.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	commands := reg.ListCommands(true)
	if err := bot.SetCommands(commands); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
