package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// CompareAndSetStatus moves the appointment from one status to another
	// only if it is still in from. It reports whether the row changed.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	// ListByPatient and ListByDoctor return appointments ordered by date then
	// time slot, with both parties populated.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error)
	GetParty(ctx context.Context, id uuid.UUID) (*Party, error)
}
