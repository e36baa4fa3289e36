package clinical

import (
	"context"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	// ListByPatient returns records newest first with both parties
	// populated. When doctorID is non-nil only that doctor's records are
	// returned.
	ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Record, error)
	GetParty(ctx context.Context, id uuid.UUID) (*Party, error)
}
