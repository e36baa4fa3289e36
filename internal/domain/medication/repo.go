package medication

import (
	"context"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// ListByPatient returns the patient's prescriptions newest first. When
	// doctorID is non-nil only that doctor's prescriptions are returned.
	ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Prescription, error)
	GetParty(ctx context.Context, id uuid.UUID) (*Party, error)
}
