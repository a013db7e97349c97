package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/tutorhq/tutorbook/internal/ical"
	"github.com/tutorhq/tutorbook/internal/model"
)

// SMTPNotifier delivers notifications via unauthenticated SMTP
// (Mailpit-compatible). Booking confirmations and approvals carry a calendar
// invite attachment; a failure to build the invite downgrades the message to
// plain text rather than blocking the send.
type SMTPNotifier struct {
	addr      string
	from      string
	tutorName string
	logger    *slog.Logger
	now       func() time.Time
}

func NewSMTPNotifier(host, port, from, tutorName string, logger *slog.Logger) *SMTPNotifier {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@tutorbook.local"
	}
	return &SMTPNotifier{
		addr:      fmt.Sprintf("%s:%s", host, port),
		from:      from,
		tutorName: tutorName,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *SMTPNotifier) Notify(_ context.Context, recipient string, kind Kind, appt model.Appointment) error {
	subject, body := s.render(kind, appt)

	var invite []byte
	if withInvite(kind) {
		var err error
		invite, err = ical.Invite(appt, s.from, s.now())
		if err != nil {
			invite = nil
			s.logger.Warn("calendar invite build failed; sending without attachment",
				"appointment_id", appt.ID, "err", err)
		}
	}

	msg, err := buildMessage(s.from, recipient, subject, body, invite)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	if err := smtp.SendMail(s.addr, nil, s.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient, err)
	}
	return nil
}

func withInvite(kind Kind) bool {
	switch kind {
	case KindBookingReceived, KindBookingReceivedTutor, KindDecisionApproved:
		return true
	}
	return false
}

func (s *SMTPNotifier) render(kind Kind, appt model.Appointment) (subject, body string) {
	when := appt.Start.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	switch kind {
	case KindBookingReceived:
		subject = "Booking request received"
		body = fmt.Sprintf(
			"Hi %s,\n\nYour request for %q on %s was received and is awaiting approval.\nYou will get another email once %s has decided.\n",
			appt.RequesterName, appt.Subject, when, s.tutorName)
	case KindBookingReceivedTutor:
		subject = fmt.Sprintf("New booking request from %s", appt.RequesterName)
		body = fmt.Sprintf(
			"%s (%s) requested %q on %s.\nAppointment id: %s\n",
			appt.RequesterName, appt.RequesterContact, appt.Subject, when, appt.ID)
	case KindDecisionApproved:
		subject = "Booking approved"
		body = fmt.Sprintf(
			"Hi %s,\n\nYour session %q on %s has been approved by %s.\n",
			appt.RequesterName, appt.Subject, when, s.tutorName)
	case KindDecisionRejected:
		subject = "Booking rejected"
		body = fmt.Sprintf(
			"Hi %s,\n\nUnfortunately your request for %q on %s was rejected.\nPlease pick another slot.\n",
			appt.RequesterName, appt.Subject, when)
	case KindReminderDue:
		subject = "Upcoming session reminder"
		body = fmt.Sprintf(
			"Hi %s,\n\nThis is a reminder for your session %q on %s.\n",
			appt.RequesterName, appt.Subject, when)
	default:
		subject = "Tutorbook notification"
		body = fmt.Sprintf("Update for appointment %s (%s).\n", appt.ID, when)
	}
	return subject, body
}

func buildMessage(from, to, subject, body string, invite []byte) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")

	if invite == nil {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(body)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, err
	}

	icsHeader := textproto.MIMEHeader{}
	icsHeader.Set("Content-Type", "text/calendar; method=REQUEST; charset=utf-8")
	icsHeader.Set("Content-Disposition", `attachment; filename="invite.ics"`)
	icsHeader.Set("Content-Transfer-Encoding", "base64")
	part, err = mw.CreatePart(icsHeader)
	if err != nil {
		return nil, err
	}
	enc := base64.StdEncoding.EncodeToString(invite)
	if _, err := part.Write([]byte(enc)); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
