package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/blobstore"
)

// Options tunes password reset.
type Options struct {
	ResetTokenTTL time.Duration
	ResetURLBase  string
}

type Service struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	blobs  blobstore.Store
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, blobs blobstore.Store, opts Options, logger zerolog.Logger) *Service {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}
	return &Service{
		users:  users,
		tokens: tokens,
		blobs:  blobs,
		opts:   opts,
		logger: logger.With().Str("component", "identity").Logger(),
		now:    time.Now,
	}
}

// Register creates an account. The optional picture is best effort: a
// rejected image is logged and the account is still created.
func (s *Service) Register(ctx context.Context, req RegisterRequest, picture *Upload) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
	switch {
	case req.Name == "":
		return nil, apperr.Wrap(apperr.ErrMissingField, "name")
	case req.Email == "":
		return nil, apperr.Wrap(apperr.ErrMissingField, "email")
	case req.Password == "":
		return nil, apperr.Wrap(apperr.ErrMissingField, "password")
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		return nil, apperr.Wrap(apperr.ErrInvalidRole, "%q", req.Role)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{Name: req.Name, Email: req.Email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if picture != nil {
		if link, err := s.storePicture(ctx, u.ID, picture); err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("profile picture rejected at registration")
		} else {
			u.ProfilePicture = link
		}
	}

	s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(role)).Msg("user registered")
	return u, nil
}

// Login verifies credentials and issues a bearer token. Unknown email and
// wrong password fail identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, User: u.Profile()}, nil
}

// ResolveRole returns the stored role of an account. It backs the
// authentication middleware.
func (s *Service) ResolveRole(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*Me, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	me := &Me{User: u}
	if u.DoctorID != nil {
		d, err := s.users.GetByID(ctx, *u.DoctorID)
		switch {
		case err == nil:
			p := d.Profile()
			p.Role = ""
			me.Doctor = &p
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}
	return me, nil
}

// ForgotPassword issues a single-use reset token and returns the link that
// redeems it. Only a hash of the token is stored.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", apperr.Wrap(apperr.ErrMissingField, "email")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := s.users.SetResetToken(ctx, u.ID, hashToken(token), s.now().Add(s.opts.ResetTokenTTL)); err != nil {
		return "", err
	}

	s.logger.Info().Str("user_id", u.ID.String()).Msg("password reset issued")
	q := url.Values{"token": {token}, "email": {email}}
	return s.opts.ResetURLBase + "?" + q.Encode(), nil
}

// ResetPassword redeems a reset token. The token is consumed by the same
// statement that replaces the password, so it cannot be used twice.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := NormalizeEmail(req.Email)
	switch {
	case email == "":
		return apperr.Wrap(apperr.ErrMissingField, "email")
	case req.Token == "":
		return apperr.Wrap(apperr.ErrMissingField, "token")
	case req.Password == "":
		return apperr.Wrap(apperr.ErrMissingField, "password")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	return s.users.RedeemResetToken(ctx, email, hashToken(req.Token), hash, s.now())
}

func (s *Service) ChangeName(ctx context.Context, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Wrap(apperr.ErrMissingField, "newName")
	}
	return s.users.UpdateName(ctx, id, name)
}

func (s *Service) ChangeEmail(ctx context.Context, id uuid.UUID, req ChangeEmailRequest) error {
	email := NormalizeEmail(req.NewEmail)
	if email == "" || req.Password == "" {
		return apperr.Wrap(apperr.ErrMissingField, "newEmail and password")
	}
	if err := s.verifyPassword(ctx, id, req.Password); err != nil {
		return err
	}
	return s.users.UpdateEmail(ctx, id, email)
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	if req.OldPassword == "" || req.NewPassword == "" {
		return apperr.Wrap(apperr.ErrMissingField, "oldPassword and newPassword")
	}
	if err := s.verifyPassword(ctx, id, req.OldPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

// ChangeProfilePicture stores a new image and points the account at it. The
// previous stored image, if any, is removed.
func (s *Service) ChangeProfilePicture(ctx context.Context, id uuid.UUID, picture *Upload) (string, error) {
	if picture == nil {
		return "", apperr.Wrap(apperr.ErrMissingField, "profilePicture")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	link, err := s.storePicture(ctx, id, picture)
	if err != nil {
		return "", err
	}

	if old, ok := blobID(u.ProfilePicture); ok {
		if err := s.blobs.Delete(ctx, old); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn().Err(err).Str("blob_id", old.String()).Msg("failed to remove previous profile picture")
		}
	}
	return link, nil
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]Profile, int, error) {
	return s.directory(ctx, auth.RoleDoctor, limit, offset)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]Profile, int, error) {
	return s.directory(ctx, auth.RolePatient, limit, offset)
}

// GetPatient returns a patient's public profile; other accounts are
// reported as not found.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RolePatient {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %s", id)
	}
	p := u.Profile()
	return &p, nil
}

func (s *Service) directory(ctx context.Context, role auth.Role, limit, offset int) ([]Profile, int, error) {
	users, total, err := s.users.ListByRole(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, total, nil
}

func (s *Service) verifyPassword(ctx context.Context, id uuid.UUID, plain string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, plain)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrIncorrectPassword
	}
	return nil
}

func (s *Service) storePicture(ctx context.Context, owner uuid.UUID, picture *Upload) (string, error) {
	meta, err := s.blobs.Put(ctx, blobstore.Metadata{OwnerID: owner, FileName: picture.FileName}, picture.Content)
	if err != nil {
		return "", err
	}
	link := meta.URL()
	if err := s.users.UpdateProfilePicture(ctx, owner, link); err != nil {
		return "", err
	}
	return link, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// blobID extracts the blob id from a profile picture URL served by this
// application.
func blobID(pictureURL string) (uuid.UUID, bool) {
	const prefix = "/api/blobs/"
	if !strings.HasPrefix(pictureURL, prefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(pictureURL, prefix))
	return id, err == nil
}
