package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tutorhq/tutorbook/internal/model"
)

type recordingNotifier struct {
	mu         sync.Mutex
	recipients []string
	failFor    string
}

func (r *recordingNotifier) Notify(_ context.Context, recipient string, _ Kind, _ model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients = append(r.recipients, recipient)
	if recipient == r.failFor {
		return errors.New("relay refused")
	}
	return nil
}

func TestDispatcher(t *testing.T) {
	rn := &recordingNotifier{failFor: "broken@example.com"}
	d := NewDispatcher(rn, slog.New(slog.DiscardHandler))

	appt := model.Appointment{ID: "a1", Start: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)}
	results := d.Dispatch(context.Background(),
		Task{Recipient: "ok@example.com", Kind: KindBookingReceived, Appt: appt},
		Task{Recipient: "broken@example.com", Kind: KindBookingReceivedTutor, Appt: appt},
		Task{Recipient: "", Kind: KindBookingReceived, Appt: appt}, // skipped
	)

	failed := CollectFailures(results)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failed))
	}
	if failed[0].Task.Recipient != "broken@example.com" {
		t.Fatalf("unexpected failed recipient %s", failed[0].Task.Recipient)
	}

	rn.mu.Lock()
	defer rn.mu.Unlock()
	if len(rn.recipients) != 2 {
		t.Fatalf("expected 2 delivery attempts, got %d", len(rn.recipients))
	}
}

func TestBuildMessage_Plain(t *testing.T) {
	msg, err := buildMessage("from@example.com", "to@example.com", "Hello", "body text", nil)
	if err != nil {
		t.Fatalf("buildMessage failed: %v", err)
	}
	s := string(msg)
	for _, want := range []string{
		"From: from@example.com\r\n",
		"To: to@example.com\r\n",
		"Subject: Hello\r\n",
		"Content-Type: text/plain",
		"body text",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("message missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "multipart") {
		t.Fatal("plain message must not be multipart")
	}
}

func TestBuildMessage_WithInvite(t *testing.T) {
	msg, err := buildMessage("from@example.com", "to@example.com", "Hello", "body text", []byte("BEGIN:VCALENDAR"))
	if err != nil {
		t.Fatalf("buildMessage failed: %v", err)
	}
	s := string(msg)
	for _, want := range []string{
		"Content-Type: multipart/mixed",
		"text/calendar",
		`filename="invite.ics"`,
		"base64",
		"body text",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("message missing %q:\n%s", want, s)
		}
	}
}

func TestRenderKinds(t *testing.T) {
	n := NewSMTPNotifier("localhost", "1025", "from@example.com", "Ms. Chen", slog.New(slog.DiscardHandler))
	appt := model.Appointment{
		ID:            "a1",
		RequesterName: "Alex",
		Subject:       "Algebra",
		Start:         time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
	}

	for _, kind := range []Kind{
		KindBookingReceived,
		KindBookingReceivedTutor,
		KindDecisionApproved,
		KindDecisionRejected,
		KindReminderDue,
	} {
		subject, body := n.render(kind, appt)
		if subject == "" || body == "" {
			t.Fatalf("empty template for kind %s", kind)
		}
		if kind != KindBookingReceivedTutor && !strings.Contains(body, "Alex") {
			t.Fatalf("kind %s body does not address the requester:\n%s", kind, body)
		}
	}
}
