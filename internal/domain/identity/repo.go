package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

// UserRepository persists accounts. Lookups that match nothing return an
// error wrapping apperr.ErrNotFound; writes that would duplicate an email
// return one wrapping apperr.ErrDuplicateEmail.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*User, int, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateProfilePicture(ctx context.Context, id uuid.UUID, url string) error
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	// RedeemResetToken replaces the password of the account with email if
	// tokenHash matches an unexpired token, clearing the token in the same
	// statement. It returns apperr.ErrInvalidOrExpiredToken otherwise.
	RedeemResetToken(ctx context.Context, email, tokenHash, passwordHash string, now time.Time) error
}
