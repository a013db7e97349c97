package storage

import (
	"context"

	"github.com/tutorhq/tutorbook/internal/model"
)

// Store is the persistence collaborator for appointments. Load and Save carry
// the whole collection; there is no partial-update protocol. Callers are
// expected to serialize read-modify-write sequences themselves.
type Store interface {
	Load(ctx context.Context) ([]model.Appointment, error)
	Save(ctx context.Context, appts []model.Appointment) error
}
