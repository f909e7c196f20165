package domain

import (
	"fmt"
	"time"
)

const ticketPrefix = "TICKET-"

// FormatTicketNumber renders seq as TICKET-NNN, zero padded to three digits.
func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("%s%03d", ticketPrefix, seq)
}

// ServiceDay is the calendar day in loc that t falls on, formatted YYYY-MM-DD.
func ServiceDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// DayBounds returns the UTC instants delimiting the service day containing t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}
