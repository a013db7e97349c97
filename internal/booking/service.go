// Package booking implements the appointment lifecycle: booking, tutor
// decisions, self-service cancel/reschedule, availability and the reminder
// scan. All mutations funnel through one mutex so the whole-collection
// read-modify-write on the store cannot race.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhq/tutorbook/internal/availability"
	"github.com/tutorhq/tutorbook/internal/events"
	"github.com/tutorhq/tutorbook/internal/model"
	"github.com/tutorhq/tutorbook/internal/notify"
	"github.com/tutorhq/tutorbook/internal/storage"
)

// Contact identifies the tutor who approves requests and receives booking
// copies.
type Contact struct {
	Name  string
	Email string
}

type Policy struct {
	// SlotHours is the ordered daily slot template (UTC hours, one slot each).
	SlotHours []int
	// LeadTime is the minimum gap between now and an appointment's start for
	// self-service changes to be allowed.
	LeadTime time.Duration
	// ReminderWindow bounds how far ahead of the start a reminder becomes due.
	ReminderWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		SlotHours:      []int{10, 11, 12, 13, 14, 15, 16},
		LeadTime:       24 * time.Hour,
		ReminderWindow: 48 * time.Hour,
	}
}

type Config struct {
	Store    storage.Store
	Notifier notify.Notifier
	Events   *events.Publisher
	Logger   *slog.Logger
	Policy   Policy
	Tutor    Contact
	Now      func() time.Time
	NewID    func() string
}

type Service struct {
	mu       sync.Mutex
	store    storage.Store
	notifier notify.Notifier
	disp     *notify.Dispatcher
	events   *events.Publisher
	logger   *slog.Logger
	policy   Policy
	tutor    Contact
	now      func() time.Time
	newID    func() string
}

func NewService(cfg Config) *Service {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	def := DefaultPolicy()
	if len(cfg.Policy.SlotHours) == 0 {
		cfg.Policy.SlotHours = def.SlotHours
	}
	if cfg.Policy.LeadTime <= 0 {
		cfg.Policy.LeadTime = def.LeadTime
	}
	if cfg.Policy.ReminderWindow <= 0 {
		cfg.Policy.ReminderWindow = def.ReminderWindow
	}
	return &Service{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		disp:     notify.NewDispatcher(cfg.Notifier, cfg.Logger),
		events:   cfg.Events,
		logger:   cfg.Logger,
		policy:   cfg.Policy,
		tutor:    cfg.Tutor,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
}

// Result reports a committed state transition. Notifications (when non-nil)
// yields one entry per dispatched message and closes once every send has been
// attempted; delivery failures do not roll back the transition.
type Result struct {
	Appointment      model.Appointment
	Notifications    <-chan notify.TaskResult
	AlreadyCancelled bool
}

type BookingRequest struct {
	RequesterName    string
	RequesterContact string
	Subject          string
	StartTime        string // RFC 3339
	Timezone         string // informational label only
}

// Book creates a pending appointment at the requested instant, failing with
// ErrSlotConflict when an active appointment already holds it.
func (s *Service) Book(ctx context.Context, req BookingRequest) (Result, error) {
	req.RequesterName = strings.TrimSpace(req.RequesterName)
	req.RequesterContact = strings.TrimSpace(req.RequesterContact)
	req.StartTime = strings.TrimSpace(req.StartTime)
	if req.RequesterName == "" {
		return Result{}, fmt.Errorf("%w: requester_name", model.ErrMissingField)
	}
	if req.RequesterContact == "" {
		return Result{}, fmt.Errorf("%w: requester_contact", model.ErrMissingField)
	}
	if req.StartTime == "" {
		return Result{}, fmt.Errorf("%w: start_time", model.ErrMissingField)
	}
	start, err := parseInstant(req.StartTime)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	appts, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("load appointments: %w", err)
	}
	if slotTaken(appts, start, "") {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", model.ErrSlotConflict, start.Format(time.RFC3339))
	}

	appt := model.Appointment{
		ID:               s.newID(),
		RequesterName:    req.RequesterName,
		RequesterContact: req.RequesterContact,
		Subject:          strings.TrimSpace(req.Subject),
		Timezone:         strings.TrimSpace(req.Timezone),
		Start:            start,
		Status:           model.StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	appts = append(appts, appt)
	if err := s.store.Save(ctx, appts); err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("save appointments: %w", err)
	}
	s.mu.Unlock()

	s.events.Publish(ctx, events.TypeBooked, appt)
	notifications := s.disp.Dispatch(ctx,
		notify.Task{Recipient: appt.RequesterContact, Kind: notify.KindBookingReceived, Appt: appt},
		notify.Task{Recipient: s.tutor.Email, Kind: notify.KindBookingReceivedTutor, Appt: appt},
	)
	return Result{Appointment: appt, Notifications: notifications}, nil
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Decide records the tutor's decision. The decision is accepted from any
// current status: a repeated or reversed decision overwrites the previous one.
// No conflict re-check runs here; the slot was checked at booking time.
func (s *Service) Decide(ctx context.Context, id string, decision Decision) (Result, error) {
	var status model.Status
	var kind notify.Kind
	var eventType string
	switch decision {
	case DecisionApprove:
		status, kind, eventType = model.StatusApproved, notify.KindDecisionApproved, events.TypeApproved
	case DecisionReject:
		status, kind, eventType = model.StatusRejected, notify.KindDecisionRejected, events.TypeRejected
	default:
		return Result{}, fmt.Errorf("%w: decision %q", model.ErrMissingField, decision)
	}

	s.mu.Lock()
	appts, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("load appointments: %w", err)
	}
	idx := indexByID(appts, id)
	if idx < 0 {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	appts[idx].Status = status
	appt := appts[idx]
	if err := s.store.Save(ctx, appts); err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("save appointments: %w", err)
	}
	s.mu.Unlock()

	s.events.Publish(ctx, eventType, appt)
	notifications := s.disp.Dispatch(ctx,
		notify.Task{Recipient: appt.RequesterContact, Kind: kind, Appt: appt},
	)
	return Result{Appointment: appt, Notifications: notifications}, nil
}

// Cancel sets the appointment to cancelled, freeing its slot. Re-cancelling an
// already-cancelled appointment is a successful no-op.
func (s *Service) Cancel(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	appts, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("load appointments: %w", err)
	}
	idx := indexByID(appts, id)
	if idx < 0 {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if appts[idx].Status == model.StatusCancelled {
		appt := appts[idx]
		s.mu.Unlock()
		return Result{Appointment: appt, AlreadyCancelled: true}, nil
	}
	if err := s.checkLeadTime(appts[idx].Start); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	appts[idx].Status = model.StatusCancelled
	appt := appts[idx]
	if err := s.store.Save(ctx, appts); err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("save appointments: %w", err)
	}
	s.mu.Unlock()

	s.events.Publish(ctx, events.TypeCancelled, appt)
	return Result{Appointment: appt}, nil
}

// Reschedule moves the appointment to a new instant and resets it to pending,
// forcing re-approval. The lead-time gate applies to the current start; the new
// instant must not collide with any other active appointment. ReminderSent is
// left untouched.
func (s *Service) Reschedule(ctx context.Context, id, newStart string) (Result, error) {
	newStart = strings.TrimSpace(newStart)
	if newStart == "" {
		return Result{}, fmt.Errorf("%w: start_time", model.ErrMissingField)
	}
	start, err := parseInstant(newStart)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	appts, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("load appointments: %w", err)
	}
	idx := indexByID(appts, id)
	if idx < 0 {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if err := s.checkLeadTime(appts[idx].Start); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	if slotTaken(appts, start, id) {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", model.ErrSlotConflict, start.Format(time.RFC3339))
	}
	appts[idx].Start = start
	appts[idx].Status = model.StatusPending
	appt := appts[idx]
	if err := s.store.Save(ctx, appts); err != nil {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("save appointments: %w", err)
	}
	s.mu.Unlock()

	s.events.Publish(ctx, events.TypeRescheduled, appt)
	notifications := s.disp.Dispatch(ctx,
		notify.Task{Recipient: appt.RequesterContact, Kind: notify.KindBookingReceived, Appt: appt},
		notify.Task{Recipient: s.tutor.Email, Kind: notify.KindBookingReceivedTutor, Appt: appt},
	)
	return Result{Appointment: appt, Notifications: notifications}, nil
}

// ScanReminders finds approved, not-yet-reminded appointments starting within
// the reminder window, notifies each requester, and marks the flag only when
// the notification succeeded. Changes are persisted in one batch write after
// the scan; the returned count makes the external cron trigger observable.
func (s *Service) ScanReminders(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appts, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load appointments: %w", err)
	}

	now := s.now()
	count := 0
	var reminded []model.Appointment
	for i := range appts {
		a := appts[i]
		if a.Status != model.StatusApproved || a.ReminderSent {
			continue
		}
		until := a.Start.Sub(now)
		if until <= 0 || until > s.policy.ReminderWindow {
			continue
		}
		if err := s.notifier.Notify(ctx, a.RequesterContact, notify.KindReminderDue, a); err != nil {
			s.logger.Warn("reminder notification failed; will retry next scan",
				"appointment_id", a.ID, "err", err)
			continue
		}
		appts[i].ReminderSent = true
		reminded = append(reminded, appts[i])
		count++
	}

	if count > 0 {
		if err := s.store.Save(ctx, appts); err != nil {
			return 0, fmt.Errorf("save appointments: %w", err)
		}
	}
	for _, a := range reminded {
		s.events.Publish(ctx, events.TypeReminderSent, a)
	}
	return count, nil
}

// Slots returns the free slot instants for a calendar day. Read-only.
func (s *Service) Slots(ctx context.Context, date string) ([]time.Time, error) {
	appts, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return availability.FreeSlots(date, s.policy.SlotHours, appts)
}

// List returns every appointment, newest first.
func (s *Service) List(ctx context.Context) ([]model.Appointment, error) {
	appts, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].CreatedAt.After(appts[j].CreatedAt)
	})
	return appts, nil
}

func (s *Service) checkLeadTime(start time.Time) error {
	if start.Sub(s.now()) < s.policy.LeadTime {
		return fmt.Errorf("%w: starts %s", model.ErrLeadTimeViolation, start.Format(time.RFC3339))
	}
	return nil
}

func parseInstant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", model.ErrInvalidDate, raw)
	}
	return t.UTC(), nil
}

func slotTaken(appts []model.Appointment, start time.Time, excludeID string) bool {
	for _, a := range appts {
		if a.ID != excludeID && a.Occupies(start) {
			return true
		}
	}
	return false
}

func indexByID(appts []model.Appointment, id string) int {
	for i := range appts {
		if appts[i].ID == id {
			return i
		}
	}
	return -1
}
