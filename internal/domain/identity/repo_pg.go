package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, name, email, password_hash, role, profile_picture, doctor_id,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.ProfilePicture,
		&u.DoctorID, &u.ResetTokenHash, &u.ResetTokenExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, profile_picture)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.ProfilePicture).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.ErrDuplicateEmail, "%s", u.Email)
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "user %s", id)
	}
	return u, err
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "user")
	}
	return u, err
}

func (r *userRepoPG) ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users WHERE role = $1
		ORDER BY name, id LIMIT $2 OFFSET $3`, string(role), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

// exec runs a single-row update and reports a missing row as not found.
func (r *userRepoPG) exec(ctx context.Context, id uuid.UUID, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, append([]interface{}{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "user %s", id)
	}
	return nil
}

func (r *userRepoPG) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return r.exec(ctx, id, `UPDATE users SET name=$2, updated_at=NOW() WHERE id = $1`, name)
}

func (r *userRepoPG) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	err := r.exec(ctx, id, `UPDATE users SET email=$2, updated_at=NOW() WHERE id = $1`, email)
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.ErrDuplicateEmail, "%s", email)
	}
	return err
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.exec(ctx, id, `UPDATE users SET password_hash=$2, reset_token_hash=NULL,
		reset_token_expires_at=NULL, updated_at=NOW() WHERE id = $1`, passwordHash)
}

func (r *userRepoPG) UpdateProfilePicture(ctx context.Context, id uuid.UUID, url string) error {
	return r.exec(ctx, id, `UPDATE users SET profile_picture=$2, updated_at=NOW() WHERE id = $1`, url)
}

func (r *userRepoPG) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.exec(ctx, id, `UPDATE users SET reset_token_hash=$2, reset_token_expires_at=$3,
		updated_at=NOW() WHERE id = $1`, tokenHash, expiresAt)
}

func (r *userRepoPG) RedeemResetToken(ctx context.Context, email, tokenHash, passwordHash string, now time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET password_hash=$3, reset_token_hash=NULL, reset_token_expires_at=NULL,
			updated_at=NOW()
		WHERE email = $1 AND reset_token_hash = $2 AND reset_token_expires_at > $4`,
		email, tokenHash, passwordHash, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvalidOrExpiredToken
	}
	return nil
}
