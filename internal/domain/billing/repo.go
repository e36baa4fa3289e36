package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	// GetByID returns the bill with both parties populated.
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	// ListByPatient returns the patient's bills newest first, with the
	// authoring doctor populated.
	// When doctorID is non-nil only that doctor's bills are returned.
	ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Bill, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error
	GetParty(ctx context.Context, id uuid.UUID) (*Party, error)
}
