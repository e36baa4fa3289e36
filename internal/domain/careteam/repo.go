package careteam

import (
	"context"

	"github.com/google/uuid"
)

// LinkRepository reads accounts and maintains both directions of the
// doctor/patient relationship: the doctor's patient set and the patient's
// doctor reference.
type LinkRepository interface {
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	InDoctorSet(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	// AddToDoctorSet is a no-op when the entry already exists.
	AddToDoctorSet(ctx context.Context, doctorID, patientID uuid.UUID) error
	RemoveFromDoctorSet(ctx context.Context, doctorID, patientID uuid.UUID) error
	SetPatientDoctor(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) error
	ListDoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*Member, error)
	// FindDrift lists links present in only one direction, dangling entries
	// most recently added first.
	FindDrift(ctx context.Context) ([]Drift, error)
}
