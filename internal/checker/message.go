package checker

import (
	"fmt"
	"strings"

	"bookingchecker/internal/scrapers/elevcentralen"
)

const (
	MessageSubject      = "New available appointments"
	ErrorMessageSubject = "Booking checker error"
)

// FormatSlot renders a slot as "<teacher>: 2006-01-02 15:04 - 15:04".
func FormatSlot(b elevcentralen.Booking) string {
	return fmt.Sprintf(
		"%s: %s - %s",
		b.Teacher,
		b.Start.Format("2006-01-02 15:04"),
		b.End.Format("15:04"),
	)
}

func formatSlots(bookings []elevcentralen.Booking) string {
	lines := make([]string, len(bookings))
	for i, b := range bookings {
		lines[i] = FormatSlot(b)
	}
	return strings.Join(lines, "\n")
}

// ComposeMessage returns the subject and body of the notification for d.
func ComposeMessage(d Decision) (string, string) {
	body := fmt.Sprintf(
		"New driving days are available:\n%s\n\nNew times are available:\n%s",
		formatSlots(d.NewDaySlots),
		formatSlots(d.ExistingDaySlots),
	)
	return MessageSubject, body
}
