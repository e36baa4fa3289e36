package billing

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Item is one billed service.
type Item struct {
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
}

type Party struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"-"`
}

type Bill struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patientId"`
	DoctorID    uuid.UUID  `json:"doctorId"`
	Services    []Item     `json:"services"`
	TotalAmount float64    `json:"totalAmount"`
	Status      Status     `json:"status"`
	IssuedAt    time.Time  `json:"issuedAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	Patient     *Party     `json:"patient,omitempty"`
	Doctor      *Party     `json:"doctor,omitempty"`
}

type AddRequest struct {
	PatientID string `json:"patientId"`
	Services  []Item `json:"services"`
}

// Total sums item costs, rounded to the cent.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Cost
	}
	return math.Round(sum*100) / 100
}
