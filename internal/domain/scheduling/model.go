package scheduling

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

// ParseStatus reports whether s names one of the four appointment states.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// transitions lists the states reachable from each non-terminal state.
var transitions = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true, StatusCompleted: true},
	StatusConfirmed: {StatusCancelled: true, StatusCompleted: true},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// roleTargets lists the statuses each role may set.
var roleTargets = map[auth.Role][]Status{
	auth.RoleDoctor:  {StatusConfirmed, StatusCancelled, StatusCompleted},
	auth.RolePatient: {StatusCancelled},
}

// AllowedFor reports whether role may move an appointment to s.
func AllowedFor(role auth.Role, s Status) bool {
	for _, t := range roleTargets[role] {
		if t == s {
			return true
		}
	}
	return false
}

// Party is the display identity of one side of an appointment.
type Party struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"-"`
}

type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patientId"`
	DoctorID    uuid.UUID `json:"doctorId"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      Status    `json:"status"`
	InitiatedBy auth.Role `json:"initiatedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Patient     *Party    `json:"patient,omitempty"`
	Doctor      *Party    `json:"doctor,omitempty"`
}

// BookRequest names the counterpart: a patient supplies DoctorID, a doctor
// supplies PatientID. The caller's own id is taken from the credential.
type BookRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	DoctorID  string `json:"doctorId"`
	PatientID string `json:"patientId"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

const dateLayout = "2006-01-02"

// Slots are zero-padded 24-hour HH:MM so that string order is time order.
var slotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
