// Package booking implements the appointment booking dialogue and the
// commands that manage booked appointments.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
)

// FlowName identifies booking sessions.
const FlowName = "booking"

// Conversation states.
const (
	StateDate         conversation.State = "date"
	StateTime         conversation.State = "time"
	StateNotes        conversation.State = "notes"
	StateConfirmation conversation.State = "confirmation"
)

// Session data keys.
const (
	KeyDate  = "date"
	KeyTime  = "time"
	KeyNotes = "notes"
)

// Inline button keys of the confirmation step.
const (
	CallbackConfirm = "booking_confirm"
	CallbackCancel  = "booking_cancel"
)

const component = "booking"

// Options configures the booking flow.
type Options struct {
	Store appointments.Store
	// Clock supplies "now" for date validation; defaults to time.Now.
	Clock func() time.Time
}

type flow struct {
	store appointments.Store
	now   func() time.Time
}

// NewFlow builds the /start booking conversation.
func NewFlow(opts Options) (*conversation.Flow, error) {
	if opts.Store == nil {
		return nil, errors.New("booking: nil appointment store")
	}
	f := &flow{store: opts.Store, now: opts.Clock}
	if f.now == nil {
		f.now = time.Now
	}
	return conversation.New(conversation.Definition{
		Name:        FlowName,
		Entry:       "/start",
		Description: "Book an appointment",
		OnEntry:     f.onEntry,
		States: map[conversation.State][]conversation.Route{
			StateDate: {conversation.On(conversation.Text(), f.onDate)},
			StateTime: {conversation.On(conversation.Text(), f.onTime)},
			StateNotes: {
				conversation.On(conversation.CommandNoArgs("skip"), f.onNotes),
				conversation.On(conversation.Text(), f.onNotes),
			},
			StateConfirmation: {
				conversation.On(conversation.Callback(CallbackConfirm), f.onConfirm),
				conversation.On(conversation.Callback(CallbackCancel), f.onCancel),
			},
		},
		Fallbacks: []conversation.Route{
			conversation.On(conversation.CommandNoArgs("cancel"), f.onCancel),
		},
	})
}

func (f *flow) onEntry(ctx context.Context, in conversation.Input) conversation.Result {
	logger.Info(ctx, component, "booking.start", slog.Int64("user_id", in.Update.UserID))
	return conversation.Stay(StateDate, conversation.Reply(greeting(in.Update.DisplayName())))
}

func (f *flow) onDate(_ context.Context, in conversation.Input) conversation.Result {
	d, ok := ValidateDate(in.Update.Text, f.now())
	if !ok {
		return conversation.Stay(StateDate, conversation.Reply(msgBadDate))
	}
	in.Session.Set(KeyDate, d)
	return conversation.Stay(StateTime, conversation.Reply(msgAskTime))
}

func (f *flow) onTime(_ context.Context, in conversation.Input) conversation.Result {
	t, ok := ValidateTime(in.Update.Text)
	if !ok {
		return conversation.Stay(StateTime, conversation.Reply(msgBadTime))
	}
	in.Session.Set(KeyTime, t)
	return conversation.Stay(StateNotes, conversation.Reply(msgAskNotes))
}

func (f *flow) onNotes(_ context.Context, in conversation.Input) conversation.Result {
	notes := ""
	if !in.Update.IsCommand("skip") {
		notes = in.Update.Text
	}
	in.Session.Set(KeyNotes, notes)

	d, _ := in.Session.GetTime(KeyDate)
	t, _ := in.Session.GetTime(KeyTime)
	return conversation.Stay(StateConfirmation, conversation.ReplyMD(
		summary(d.Format(appointments.DateLayout), t.Format(appointments.TimeLayout), notes),
		[]conversation.Button{
			{Text: "✅ Confirm", Unique: CallbackConfirm},
			{Text: "❌ Cancel", Unique: CallbackCancel},
		},
	))
}

func (f *flow) onConfirm(ctx context.Context, in conversation.Input) conversation.Result {
	d, okDate := in.Session.GetTime(KeyDate)
	t, okTime := in.Session.GetTime(KeyTime)
	if !okDate || !okTime {
		return conversation.Finish(conversation.Reply(msgLost))
	}
	notes, _ := in.Session.GetString(KeyNotes)

	a, err := f.store.Create(ctx, appointments.NewAppointment{
		UserID:   in.Update.UserID,
		UserName: in.Update.DisplayName(),
		Date:     d,
		Time:     t,
		Notes:    notes,
	})
	if err != nil {
		attrs := []slog.Attr{
			slog.Int64("user_id", in.Update.UserID),
			slog.String("err", err.Error()),
		}
		var storeErr *appointments.Error
		if errors.As(err, &storeErr) {
			attrs = append(attrs, slog.String("err_code", storeErr.Code()))
		}
		logger.Warn(ctx, component, "booking.create_failed", attrs...)
		return conversation.Finish(conversation.Reply(failed(appointments.Reason(err))))
	}

	logger.Info(ctx, component, "booking.confirmed",
		slog.Int64("user_id", in.Update.UserID),
		slog.String("appointment_id", a.ID),
	)
	return conversation.Finish(conversation.Reply(confirmed(a)))
}

func (f *flow) onCancel(ctx context.Context, in conversation.Input) conversation.Result {
	logger.Info(ctx, component, "booking.cancelled", slog.Int64("user_id", in.Update.UserID))
	return conversation.Finish(conversation.Reply(msgCancelled))
}
