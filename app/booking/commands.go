package booking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
	tg "github.com/m3rciful/bookingbot/core/telegram"
	"github.com/m3rciful/bookingbot/core/telegram/commands"
)

// Commands serves the stateless appointment commands.
type Commands struct {
	store appointments.Store
}

// NewCommands returns the /view and /cancel handlers backed by store.
func NewCommands(store appointments.Store) *Commands {
	return &Commands{store: store}
}

// Register adds the commands to reg.
func (c *Commands) Register(reg *tg.Registry) {
	reg.RegisterCommand("/view", commands.Command{
		Handler:     c.View,
		Description: "Show your appointments",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     c.Cancel,
		Description: "Cancel an appointment by ID",
	})
}

// View lists the caller's scheduled appointments.
func (c *Commands) View(ctx context.Context, u conversation.Update) []conversation.Message {
	list, err := c.store.List(ctx, u.UserID)
	if err != nil {
		logger.Warn(ctx, component, "appointments.list_failed",
			slog.Int64("user_id", u.UserID),
			slog.String("err", err.Error()),
		)
		return []conversation.Message{conversation.Reply("❌ " + appointments.Reason(err))}
	}
	if len(list) == 0 {
		return []conversation.Message{conversation.Reply(msgNoAppointments)}
	}
	return []conversation.Message{conversation.ReplyMD(appointmentList(list))}
}

// Cancel cancels the appointment named by the single argument.
func (c *Commands) Cancel(ctx context.Context, u conversation.Update) []conversation.Message {
	if len(u.Args) != 1 {
		return []conversation.Message{conversation.Reply(msgCancelUsage)}
	}
	id := u.Args[0]
	if err := c.store.Cancel(ctx, id, u.UserID); err != nil {
		logger.Info(ctx, component, "appointments.cancel_rejected",
			slog.Int64("user_id", u.UserID),
			slog.String("appointment_id", id),
			slog.String("err", err.Error()),
		)
		return []conversation.Message{conversation.Reply("❌ " + appointments.Reason(err))}
	}
	return []conversation.Message{conversation.Reply(fmt.Sprintf("✅ Appointment %s has been cancelled.", id))}
}
