package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the appointment counts against slot availability.
// Rejected and cancelled appointments leave their slot free.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

type Appointment struct {
	ID               string    `json:"id"`
	RequesterName    string    `json:"requester_name"`
	RequesterContact string    `json:"requester_contact"`
	Subject          string    `json:"subject"`
	Timezone         string    `json:"timezone"`
	Start            time.Time `json:"start_time"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	ReminderSent     bool      `json:"reminder_sent"`
}

// Occupies reports whether the appointment holds the slot starting at t.
// Occupancy is exact-instant: slots are one hour and back-to-back, so no
// interval overlap arithmetic is needed.
func (a Appointment) Occupies(t time.Time) bool {
	return a.Status.Active() && a.Start.Equal(t)
}
