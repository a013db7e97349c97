// Package ical renders minimal RFC 5545 calendar invites for appointment
// notifications. One VEVENT per invite, fixed one-hour duration.
package ical

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tutorhq/tutorbook/internal/model"
)

const stampLayout = "20060102T150405Z"

// Invite renders the appointment as an iCalendar attachment. organizer is the
// tutor's email address; the requester contact is listed as attendee.
func Invite(appt model.Appointment, organizer string, now time.Time) ([]byte, error) {
	if appt.Start.IsZero() {
		return nil, errors.New("appointment has no start instant")
	}
	if appt.ID == "" {
		return nil, errors.New("appointment has no id")
	}

	start := appt.Start.UTC()
	end := start.Add(time.Hour)

	summary := appt.Subject
	if summary == "" {
		summary = "Tutoring session"
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//tutorbook//booking//EN")
	line("METHOD:REQUEST")
	line("BEGIN:VEVENT")
	line("UID:%s@tutorbook", appt.ID)
	line("DTSTAMP:%s", now.UTC().Format(stampLayout))
	line("DTSTART:%s", start.Format(stampLayout))
	line("DTEND:%s", end.Format(stampLayout))
	line("SUMMARY:%s", escape(summary))
	line("DESCRIPTION:%s", escape(fmt.Sprintf("Session with %s", appt.RequesterName)))
	if organizer != "" {
		line("ORGANIZER:mailto:%s", organizer)
	}
	if appt.RequesterContact != "" {
		line("ATTENDEE;CN=%s:mailto:%s", escape(appt.RequesterName), appt.RequesterContact)
	}
	line("STATUS:CONFIRMED")
	line("END:VEVENT")
	line("END:VCALENDAR")

	return []byte(b.String()), nil
}

// escape applies RFC 5545 text escaping for commas, semicolons, backslashes
// and newlines.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
		"\r", "",
	)
	return r.Replace(s)
}
