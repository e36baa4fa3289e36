package medication

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

type Medicine struct {
	MedicineName string `json:"medicineName"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

type Party struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"-"`
}

type Prescription struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patientId"`
	DoctorID        uuid.UUID  `json:"doctorId"`
	Diagnosis       string     `json:"diagnosis"`
	Medicines       []Medicine `json:"medicines"`
	AdditionalNotes string     `json:"additionalNotes"`
	CreatedAt       time.Time  `json:"createdAt"`
	Patient         *Party     `json:"patient,omitempty"`
	Doctor          *Party     `json:"doctor,omitempty"`
}

type AddRequest struct {
	PatientID       string     `json:"patientId"`
	Diagnosis       string     `json:"diagnosis"`
	Medicines       []Medicine `json:"medicines"`
	AdditionalNotes string     `json:"additionalNotes"`
}
