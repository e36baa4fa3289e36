package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is the closed set of account kinds.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole validates s against the known roles.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleDoctor:
		return RoleDoctor, true
	case RolePatient:
		return RolePatient, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// Counterpart returns the role on the other side of a doctor/patient
// relationship.
func (r Role) Counterpart() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// View resolves the caller's role once into a typed variant, so callers can
// switch on the variant instead of comparing role strings.
type View interface {
	Subject() uuid.UUID
	isView()
}

// DoctorView is the caller seen as a doctor.
type DoctorView struct{ DoctorID uuid.UUID }

// PatientView is the caller seen as a patient.
type PatientView struct{ PatientID uuid.UUID }

func (v DoctorView) Subject() uuid.UUID  { return v.DoctorID }
func (v PatientView) Subject() uuid.UUID { return v.PatientID }
func (DoctorView) isView()               {}
func (PatientView) isView()              {}

func (i Identity) View() View {
	if i.Role == RoleDoctor {
		return DoctorView{DoctorID: i.UserID}
	}
	return PatientView{PatientID: i.UserID}
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) Role {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}
