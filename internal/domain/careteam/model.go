package careteam

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

// Member is the slice of a user account the care-team links read.
type Member struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           auth.Role  `json:"role"`
	ProfilePicture string     `json:"profilePicture"`
	DoctorID       *uuid.UUID `json:"doctorId,omitempty"`
}

type ChooseDoctorRequest struct {
	DoctorID string `json:"doctorID"`
}

// Assignment is the outcome of ChooseDoctor. Repaired is true when the
// doctor already listed the patient and only the patient's reference was
// rewritten.
type Assignment struct {
	Doctor   *Member `json:"doctor"`
	Patient  *Member `json:"patient"`
	Repaired bool    `json:"repaired"`
}

// DriftKind names how a doctor/patient link has become one-directional.
type DriftKind string

const (
	// DriftMissingEntry: the patient references a doctor whose set lacks them.
	DriftMissingEntry DriftKind = "missing-entry"
	// DriftDanglingEntry: a set lists a patient who references no doctor.
	DriftDanglingEntry DriftKind = "dangling-entry"
	// DriftStaleEntry: a set lists a patient who references another doctor.
	DriftStaleEntry DriftKind = "stale-entry"
)

type Drift struct {
	Kind      DriftKind  `json:"kind"`
	DoctorID  uuid.UUID  `json:"doctorId"`
	PatientID uuid.UUID  `json:"patientId"`
	AddedAt   *time.Time `json:"addedAt,omitempty"`
}

// Repair records one change made by Reconcile.
type Repair struct {
	Drift  Drift  `json:"drift"`
	Action string `json:"action"`
}
