package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tutorhq/tutorbook/internal/booking"
	"github.com/tutorhq/tutorbook/internal/model"
	"github.com/tutorhq/tutorbook/internal/notify"
)

// BookingHandler serves the public endpoints: slot listing, booking and the
// requester's self-service cancel/reschedule.
type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type appointmentResponse struct {
	AppointmentID    string `json:"appointment_id"`
	RequesterName    string `json:"requester_name"`
	Subject          string `json:"subject,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	StartTime        string `json:"start_time"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	ReminderSent     bool   `json:"reminder_sent"`
	AlreadyCancelled bool   `json:"already_cancelled,omitempty"`
	// Notification is "failed" when the state change committed but one or more
	// notifications could not be delivered.
	Notification string `json:"notification,omitempty"`
}

func toResponse(res booking.Result) appointmentResponse {
	a := res.Appointment
	out := appointmentResponse{
		AppointmentID:    a.ID,
		RequesterName:    a.RequesterName,
		Subject:          a.Subject,
		Timezone:         a.Timezone,
		StartTime:        a.Start.UTC().Format(time.RFC3339),
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
		ReminderSent:     a.ReminderSent,
		AlreadyCancelled: res.AlreadyCancelled,
	}
	if res.Notifications != nil {
		if failed := notify.CollectFailures(res.Notifications); len(failed) > 0 {
			out.Notification = "failed"
		}
	}
	return out
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.Slots(r.Context(), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, out)
}

type createRequest struct {
	RequesterName    string `json:"requester_name"`
	RequesterContact string `json:"requester_contact"`
	Subject          string `json:"subject"`
	StartTime        string `json:"start_time"`
	Timezone         string `json:"timezone"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Book(r.Context(), booking.BookingRequest{
		RequesterName:    req.RequesterName,
		RequesterContact: req.RequesterContact,
		Subject:          req.Subject,
		StartTime:        req.StartTime,
		Timezone:         req.Timezone,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(res))
}

type selfServiceRequest struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time,omitempty"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selfServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Cancel(r.Context(), strings.TrimSpace(req.AppointmentID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selfServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Reschedule(r.Context(), strings.TrimSpace(req.AppointmentID), req.StartTime)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrMissingField), errors.Is(err, model.ErrInvalidDate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrSlotConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrLeadTimeViolation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.Error("storage failure", "err", err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
	}
}
