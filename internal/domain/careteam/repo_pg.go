package careteam

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/db"
)

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewLinkRepoPG(pool *pgxpool.Pool) LinkRepository {
	return &linkRepoPG{pool: pool}
}

func (r *linkRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const memberCols = `u.id, u.name, u.email, u.role, u.profile_picture, u.doctor_id`

func (r *linkRepoPG) scanMember(row pgx.Row) (*Member, error) {
	var m Member
	var role string
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &role, &m.ProfilePicture, &m.DoctorID); err != nil {
		return nil, err
	}
	m.Role = auth.Role(role)
	return &m, nil
}

func (r *linkRepoPG) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	// FOR UPDATE serializes concurrent assignments of the same account when
	// called inside a transaction; outside one it is a plain read.
	m, err := r.scanMember(r.conn(ctx).QueryRow(ctx, `SELECT `+memberCols+` FROM users u WHERE u.id = $1 FOR UPDATE`, id))
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "user %s", id)
	}
	return m, err
}

func (r *linkRepoPG) InDoctorSet(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM doctor_patients WHERE doctor_id = $1 AND patient_id = $2)`, doctorID, patientID).Scan(&exists)
	return exists, err
}

func (r *linkRepoPG) AddToDoctorSet(ctx context.Context, doctorID, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_patients (doctor_id, patient_id) VALUES ($1,$2)
		ON CONFLICT (doctor_id, patient_id) DO NOTHING`, doctorID, patientID)
	return err
}

func (r *linkRepoPG) RemoveFromDoctorSet(ctx context.Context, doctorID, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_patients WHERE doctor_id = $1 AND patient_id = $2`, doctorID, patientID)
	return err
}

func (r *linkRepoPG) SetPatientDoctor(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE users SET doctor_id = $2, updated_at = NOW()
		WHERE id = $1 AND role = 'patient'`, patientID, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "patient %s", patientID)
	}
	return nil
}

func (r *linkRepoPG) ListDoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*Member, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+memberCols+`
		FROM doctor_patients dp JOIN users u ON u.id = dp.patient_id
		WHERE dp.doctor_id = $1 ORDER BY u.name, u.id`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Member
	for rows.Next() {
		m, err := r.scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *linkRepoPG) FindDrift(ctx context.Context) ([]Drift, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT 'missing-entry', u.doctor_id, u.id, NULL::timestamptz
		FROM users u
		WHERE u.role = 'patient' AND u.doctor_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM doctor_patients dp
		                  WHERE dp.doctor_id = u.doctor_id AND dp.patient_id = u.id)
		UNION ALL
		SELECT CASE WHEN u.doctor_id IS NULL THEN 'dangling-entry' ELSE 'stale-entry' END,
		       dp.doctor_id, dp.patient_id, dp.added_at
		FROM doctor_patients dp JOIN users u ON u.id = dp.patient_id
		WHERE u.doctor_id IS DISTINCT FROM dp.doctor_id
		ORDER BY 3, 4 DESC NULLS LAST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		var d Drift
		var kind string
		if err := rows.Scan(&kind, &d.DoctorID, &d.PatientID, &d.AddedAt); err != nil {
			return nil, err
		}
		d.Kind = DriftKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}
