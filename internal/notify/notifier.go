package notify

import (
	"context"

	"github.com/tutorhq/tutorbook/internal/model"
)

// Kind selects the notification template.
type Kind string

const (
	// KindBookingReceived confirms a new request to the student.
	KindBookingReceived Kind = "booking-received"
	// KindBookingReceivedTutor asks the tutor to approve or reject.
	KindBookingReceivedTutor Kind = "booking-received-tutor"
	KindDecisionApproved     Kind = "decision-approved"
	KindDecisionRejected     Kind = "decision-rejected"
	KindReminderDue          Kind = "reminder-due"
)

type Notifier interface {
	Notify(ctx context.Context, recipient string, kind Kind, appt model.Appointment) error
}

// Noop discards every notification. Used when no SMTP relay is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, Kind, model.Appointment) error { return nil }
