package availability

import (
	"fmt"
	"time"

	"github.com/tutorhq/tutorbook/internal/model"
)

// FreeSlots returns the ordered slot start instants on the given calendar day
// (YYYY-MM-DD, UTC) that are not held by an active appointment. template is the
// ordered set of slot hours offered each day, e.g. 10 through 16.
func FreeSlots(date string, template []int, appts []model.Appointment) ([]time.Time, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidDate, date)
	}

	slots := make([]time.Time, 0, len(template))
	for _, hour := range template {
		slot := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
		if !occupied(slot, appts) {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func occupied(slot time.Time, appts []model.Appointment) bool {
	for _, a := range appts {
		if a.Occupies(slot) {
			return true
		}
	}
	return false
}
