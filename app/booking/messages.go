package booking

import (
	"fmt"
	"strings"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/core/telegram/format"
)

const (
	msgAskDate = "Please enter the date for your appointment in YYYY-MM-DD format.\n" +
		"For example: 2024-02-01"
	msgBadDate = "❌ Invalid date format or past date.\n\n" +
		"Please enter a future date in YYYY-MM-DD format.\n" +
		"For example: 2024-02-01"
	msgAskTime = "📅 Date confirmed!\n\n" +
		"Now, please enter the time for your appointment in HH:MM format (24-hour).\n" +
		"Available hours are between 09:00 and 17:00\n" +
		"For example: 14:30"
	msgBadTime = "❌ Invalid time format or outside business hours.\n\n" +
		"Please enter a time between 09:00 and 17:00 in HH:MM format.\n" +
		"For example: 14:30"
	msgAskNotes = "⏰ Time confirmed!\n\n" +
		"Would you like to add any notes for your appointment?\n" +
		"Type your notes or send /skip to continue without notes."
	msgCancelled = "❌ Appointment booking cancelled.\n" +
		"You can start a new booking using /start"
	msgLost = "❌ Your booking details were lost.\n" +
		"Please try booking again using /start"

	msgNoAppointments = "📅 You don't have any appointments scheduled.\n" +
		"You can book an appointment using /start"
	msgCancelUsage = "❌ Please provide an appointment ID.\n" +
		"Use /view to see your appointments and their IDs."
)

func greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Hi %s! Let's book your appointment.\n\n%s", name, msgAskDate)
}

func summary(date, tm, notes string) string {
	var b strings.Builder
	b.WriteString("*📋 Appointment Details*\n\n")
	fmt.Fprintf(&b, "📅 Date: %s\n", date)
	fmt.Fprintf(&b, "⏰ Time: %s\n", tm)
	if notes != "" {
		fmt.Fprintf(&b, "📝 Notes: %s\n", format.Markdown(notes))
	}
	b.WriteString("\nWould you like to confirm this appointment?")
	return b.String()
}

func confirmed(a appointments.Appointment) string {
	return fmt.Sprintf("✅ Great! Your appointment has been confirmed!\n\n"+
		"See you on %s at %s!\n\n"+
		"You can book another appointment using /start", a.Date, a.Time)
}

func failed(reason string) string {
	return fmt.Sprintf("❌ %s\nPlease try booking again using /start", reason)
}

func appointmentList(list []appointments.Appointment) string {
	var b strings.Builder
	b.WriteString("*📋 Your Appointments*\n\n")
	for _, a := range list {
		fmt.Fprintf(&b, "🔹 *%s at %s*\n", a.Date, a.Time)
		fmt.Fprintf(&b, "   ID: `%s`\n", a.ID)
		if a.Notes != "" {
			fmt.Fprintf(&b, "   Notes: %s\n", format.Markdown(a.Notes))
		}
		b.WriteString("\n")
	}
	b.WriteString("To cancel an appointment, use:\n/cancel <appointment\\_id>")
	return b.String()
}
