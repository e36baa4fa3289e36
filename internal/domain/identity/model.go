package identity

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrapp/internal/platform/auth"
)

// User is a stored account. A patient's DoctorID is nil until they choose a
// doctor; doctors never carry one.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Role                auth.Role  `json:"role"`
	ProfilePicture      string     `json:"profilePicture"`
	DoctorID            *uuid.UUID `json:"doctorId,omitempty"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Profile is the part of a user other users may see.
type Profile struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           auth.Role `json:"role,omitempty"`
	ProfilePicture string    `json:"profilePicture"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, ProfilePicture: u.ProfilePicture}
}

// Me is the current-user view with the assigned doctor populated.
type Me struct {
	*User
	Doctor *Profile `json:"doctor,omitempty"`
}

type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type ChangeNameRequest struct {
	NewName string `json:"newName"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Upload is a file received from a client.
type Upload struct {
	FileName string
	Content  io.Reader
}

// NormalizeEmail lowercases and trims an address so that uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
