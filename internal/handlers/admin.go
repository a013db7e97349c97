package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tutorhq/tutorbook/internal/booking"
	"github.com/tutorhq/tutorbook/internal/httpx"
)

const adminPasswordHeader = "X-Admin-Password"

// AdminHandler serves the tutor-facing endpoints: decisions, the full
// appointment list and the reminder scan trigger.
type AdminHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAdminHandler(svc *booking.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// RequireAdmin gates a handler behind the tutor password. passwordHash is a
// bcrypt hash; when empty the gate is left open and a warning is logged once
// at startup (dev mode).
func RequireAdmin(passwordHash string, logger *slog.Logger) httpx.Middleware {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set; admin endpoints are unprotected")
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pw := r.Header.Get(adminPasswordHeader)
			if pw == "" {
				http.Error(w, "admin password required", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pw)); err != nil {
				http.Error(w, "invalid admin password", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type decisionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Decision      string `json:"decision"`
}

func (h *AdminHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Decision = strings.ToLower(strings.TrimSpace(req.Decision))
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	if req.Decision != string(booking.DecisionApprove) && req.Decision != string(booking.DecisionReject) {
		http.Error(w, "decision must be approve or reject", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Decide(r.Context(), req.AppointmentID, booking.Decision(req.Decision))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

type listItem struct {
	AppointmentID    string `json:"appointment_id"`
	RequesterName    string `json:"requester_name"`
	RequesterContact string `json:"requester_contact"`
	Subject          string `json:"subject,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	StartTime        string `json:"start_time"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	ReminderSent     bool   `json:"reminder_sent"`
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appts, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]listItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, listItem{
			AppointmentID:    a.ID,
			RequesterName:    a.RequesterName,
			RequesterContact: a.RequesterContact,
			Subject:          a.Subject,
			Timezone:         a.Timezone,
			StartTime:        a.Start.UTC().Format(time.RFC3339),
			Status:           string(a.Status),
			CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
			ReminderSent:     a.ReminderSent,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type scanResponse struct {
	Reminded int `json:"reminded"`
}

// ScanReminders runs one reminder pass. Invoked by an external cron-style
// trigger; there is no background scheduler in the service itself.
func (h *AdminHandler) ScanReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.svc.ScanReminders(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Reminded: count})
}
