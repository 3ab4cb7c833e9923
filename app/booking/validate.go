package booking

import (
	"regexp"
	"time"

	"github.com/m3rciful/bookingbot/app/appointments"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ValidateDate parses a YYYY-MM-DD date that lies strictly after now's day.
// The text must be the bare literal; surrounding whitespace is rejected.
func ValidateDate(text string, now time.Time) (time.Time, bool) {
	if !dateRe.MatchString(text) {
		return time.Time{}, false
	}
	d, err := time.Parse(appointments.DateLayout, text)
	if err != nil || !appointments.InFuture(d, now) {
		return time.Time{}, false
	}
	return d, true
}

// ValidateTime parses a 24h HH:MM time within business hours.
func ValidateTime(text string) (time.Time, bool) {
	if !timeRe.MatchString(text) {
		return time.Time{}, false
	}
	t, err := time.Parse(appointments.TimeLayout, text)
	if err != nil || !appointments.WithinHours(t) {
		return time.Time{}, false
	}
	return t, true
}
