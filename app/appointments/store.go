// Package appointments stores booked appointments.
package appointments

import (
	"context"
	"errors"
	"time"
)

// Status of an appointment record.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// Layouts used for the date and time columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Business hours, inclusive on both ends, as minutes after midnight.
const (
	OpensAt  = 9 * 60
	ClosesAt = 17 * 60
)

// Appointment is a stored booking. Date and Time use DateLayout and TimeLayout.
type Appointment struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	UserName  string    `db:"user_name"`
	Date      string    `db:"date"`
	Time      string    `db:"time"`
	Notes     string    `db:"notes"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// NewAppointment carries the fields collected by the booking dialogue.
type NewAppointment struct {
	UserID   int64
	UserName string
	Date     time.Time
	Time     time.Time
	Notes    string
}

// Store persists appointments.
type Store interface {
	Create(ctx context.Context, a NewAppointment) (Appointment, error)
	// List returns the user's scheduled appointments by date, time and creation.
	List(ctx context.Context, userID int64) ([]Appointment, error)
	Cancel(ctx context.Context, id string, userID int64) error
}

// User-facing reasons reported by Store implementations.
const (
	ReasonPastDate         = "The appointment date must be in the future."
	ReasonOutsideHours     = "The appointment time must be between 09:00 and 17:00."
	ReasonSlotTaken        = "This time slot is already booked. Please choose another time."
	ReasonNotFound         = "Appointment not found."
	ReasonNotOwner         = "You can only cancel your own appointments."
	ReasonAlreadyCancelled = "This appointment is already cancelled."
	ReasonUnavailable      = "Could not reach the appointment book right now."
)

// Error is returned by Store operations. Reason is safe to show to the user.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Code identifies the failure in handler summaries.
func (e *Error) Code() string {
	switch e.Reason {
	case ReasonPastDate, ReasonOutsideHours:
		return "APPOINTMENT_INVALID"
	case ReasonSlotTaken:
		return "APPOINTMENT_CONFLICT"
	case ReasonNotFound:
		return "APPOINTMENT_NOT_FOUND"
	case ReasonNotOwner:
		return "APPOINTMENT_NOT_OWNER"
	case ReasonAlreadyCancelled:
		return "APPOINTMENT_CANCELLED"
	default:
		return "APPOINTMENT_STORE"
	}
}

// Reason extracts the user-facing reason from err. Errors that are not
// *Error yield ReasonUnavailable.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return ReasonUnavailable
}

// WithinHours reports whether t falls inside business hours.
func WithinHours(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= OpensAt && m <= ClosesAt
}

// InFuture reports whether date is a calendar day strictly after now's.
func InFuture(date, now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).After(today)
}

// Check enforces the invariants of a new appointment.
func Check(a NewAppointment, now time.Time) error {
	if !InFuture(a.Date, now) {
		return &Error{Reason: ReasonPastDate}
	}
	if !WithinHours(a.Time) {
		return &Error{Reason: ReasonOutsideHours}
	}
	return nil
}
