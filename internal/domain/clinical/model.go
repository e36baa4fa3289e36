package clinical

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

type Party struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"-"`
}

// Record is one visit's vitals and findings. Vitals are optional.
type Record struct {
	ID                    uuid.UUID `json:"id"`
	PatientID             uuid.UUID `json:"patientId"`
	DoctorID              uuid.UUID `json:"doctorId"`
	HeartRate             *int      `json:"heartRate,omitempty"`
	BloodPressure         string    `json:"bloodPressure,omitempty"`
	BloodSugarLevel       *float64  `json:"bloodSugarLevel,omitempty"`
	MedicalCondition      string    `json:"medicalCondition"`
	PrescribedMedications []string  `json:"prescribedMedications"`
	Notes                 string    `json:"notes"`
	CreatedAt             time.Time `json:"createdAt"`
	Patient               *Party    `json:"patient,omitempty"`
	Doctor                *Party    `json:"doctor,omitempty"`
}

type AddRequest struct {
	PatientID             string   `json:"patientId"`
	HeartRate             *int     `json:"heartRate"`
	BloodPressure         string   `json:"bloodPressure"`
	BloodSugarLevel       *float64 `json:"bloodSugarLevel"`
	MedicalCondition      string   `json:"medicalCondition"`
	PrescribedMedications []string `json:"prescribedMedications"`
	Notes                 string   `json:"notes"`
}
