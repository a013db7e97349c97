package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tutorhq/tutorbook/internal/booking"
	"github.com/tutorhq/tutorbook/internal/notify"
	"github.com/tutorhq/tutorbook/internal/storage"
)

var testNow = time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)

func newTestHandlers(t *testing.T) (*BookingHandler, *AdminHandler) {
	t.Helper()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "appointments.json"))
	logger := slog.New(slog.DiscardHandler)
	svc := booking.NewService(booking.Config{
		Store:    store,
		Notifier: notify.Noop{},
		Logger:   logger,
		Policy:   booking.DefaultPolicy(),
		Tutor:    booking.Contact{Name: "Ms. Chen", Email: "tutor@example.com"},
		Now:      func() time.Time { return testNow },
	})
	return NewBookingHandler(svc, logger), NewAdminHandler(svc, logger)
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rw := httptest.NewRecorder()
	h(rw, req)
	return rw
}

func TestCreate(t *testing.T) {
	bh, _ := newTestHandlers(t)

	rw := doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_name":"Alex","requester_contact":"alex@example.com","subject":"Algebra","start_time":"2025-03-10T10:00:00Z","timezone":"Europe/Berlin"}`)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp struct {
		AppointmentID string `json:"appointment_id"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.AppointmentID == "" || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}

	// Same slot again conflicts.
	rw = doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_name":"Brook","requester_contact":"brook@example.com","start_time":"2025-03-10T10:00:00Z"}`)
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rw.Code)
	}
}

func TestCreate_BadInput(t *testing.T) {
	bh, _ := newTestHandlers(t)

	rw := doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_name":"Alex","requester_contact":"alex@example.com","start_time":"not a date"}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rw.Code)
	}

	rw = doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_contact":"alex@example.com","start_time":"2025-03-10T10:00:00Z"}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rw.Code)
	}

	rw = doJSON(t, bh.Create, http.MethodGet, "/api/v1/appointments", "")
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

func TestCancel_StatusMapping(t *testing.T) {
	bh, _ := newTestHandlers(t)

	rw := doJSON(t, bh.Cancel, http.MethodPost, "/api/v1/appointments/cancel",
		`{"appointment_id":"missing"}`)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}

	// Book something inside the 24h protection window; cancel is rejected.
	start := testNow.Add(2 * time.Hour).Format(time.RFC3339)
	rw = doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_name":"Alex","requester_contact":"alex@example.com","start_time":"`+start+`"}`)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}
	var created struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response: %v", err)
	}

	rw = doJSON(t, bh.Cancel, http.MethodPost, "/api/v1/appointments/cancel",
		`{"appointment_id":"`+created.AppointmentID+`"}`)
	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 inside lead-time window, got %d", rw.Code)
	}
}

func TestSlots(t *testing.T) {
	bh, _ := newTestHandlers(t)

	doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_name":"Alex","requester_contact":"alex@example.com","start_time":"2025-03-10T12:00:00Z"}`)

	rw := doJSON(t, bh.Slots, http.MethodGet, "/api/v1/slots?date=2025-03-10", "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var slots []string
	if err := json.Unmarshal(rw.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("expected 6 free slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s == "2025-03-10T12:00:00Z" {
			t.Fatal("booked slot listed as free")
		}
	}

	rw = doJSON(t, bh.Slots, http.MethodGet, "/api/v1/slots?date=garbage", "")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rw.Code)
	}
	rw = doJSON(t, bh.Slots, http.MethodGet, "/api/v1/slots", "")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing date, got %d", rw.Code)
	}
}

func TestDecideAndScan(t *testing.T) {
	bh, ah := newTestHandlers(t)

	rw := doJSON(t, bh.Create, http.MethodPost, "/api/v1/appointments",
		`{"requester_name":"Alex","requester_contact":"alex@example.com","start_time":"2025-03-09T10:00:00Z"}`)
	var created struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response: %v", err)
	}

	rw = doJSON(t, ah.Decide, http.MethodPost, "/api/v1/admin/decision",
		`{"appointment_id":"`+created.AppointmentID+`","decision":"approve"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var decided struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &decided); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if decided.Status != "approved" {
		t.Fatalf("expected approved, got %s", decided.Status)
	}

	rw = doJSON(t, ah.Decide, http.MethodPost, "/api/v1/admin/decision",
		`{"appointment_id":"`+created.AppointmentID+`","decision":"maybe"}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown decision, got %d", rw.Code)
	}

	// The approved appointment starts in 25h: inside the reminder window.
	rw = doJSON(t, ah.ScanReminders, http.MethodPost, "/api/v1/admin/reminders/scan", "")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var scan struct {
		Reminded int `json:"reminded"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &scan); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if scan.Reminded != 1 {
		t.Fatalf("expected 1 reminded, got %d", scan.Reminded)
	}
}

func TestRequireAdmin(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	gated := RequireAdmin(string(hash), logger)(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments", nil)
	rw := httptest.NewRecorder()
	gated.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without password, got %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments", nil)
	req.Header.Set("X-Admin-Password", "wrong")
	rw = httptest.NewRecorder()
	gated.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong password, got %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments", nil)
	req.Header.Set("X-Admin-Password", "hunter2")
	rw = httptest.NewRecorder()
	gated.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 for correct password, got %d", rw.Code)
	}

	// Empty hash leaves the gate open.
	open := RequireAdmin("", logger)(ok)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments", nil)
	rw = httptest.NewRecorder()
	open.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 with empty hash, got %d", rw.Code)
	}
}
