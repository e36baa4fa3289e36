package scheduling

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

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.date, a.time, a.status, a.initiated_by,
	a.created_at, a.updated_at`

const apptPartyCols = apptCols + `, p.name, p.email, d.name, d.email`

const apptJoins = ` FROM appointments a
	JOIN users p ON p.id = a.patient_id
	JOIN users d ON d.id = a.doctor_id`

func (r *appointmentRepoPG) scanAppt(row pgx.Row, withParties bool) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var status, initiatedBy string
	dest := []interface{}{&a.ID, &a.PatientID, &a.DoctorID, &date, &a.Time, &status, &initiatedBy,
		&a.CreatedAt, &a.UpdatedAt}
	var p, d Party
	if withParties {
		dest = append(dest, &p.Name, &p.Email, &d.Name, &d.Email)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.Date = date.Format(dateLayout)
	a.Status = Status(status)
	a.InitiatedBy = auth.Role(initiatedBy)
	if withParties {
		p.ID, p.Role = a.PatientID, auth.RolePatient
		d.ID, d.Role = a.DoctorID, auth.RoleDoctor
		a.Patient, a.Doctor = &p, &d
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, date, time, status, initiated_by)
		VALUES ($1,$2,$3,$4::date,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, string(a.Status), string(a.InitiatedBy)).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptPartyCols+apptJoins+` WHERE a.id = $1`, id), true)
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "appointment %s", id)
	}
	return a, err
}

func (r *appointmentRepoPG) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepoPG) list(ctx context.Context, column string, id uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptPartyCols+apptJoins+`
		WHERE a.`+column+` = $1 ORDER BY a.date, a.time, a.created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows, true)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, "patient_id", patientID)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, "doctor_id", doctorID)
}

func (r *appointmentRepoPG) GetParty(ctx context.Context, id uuid.UUID) (*Party, error) {
	var p Party
	var role string
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name, email, role FROM users WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email, &role)
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "user %s", id)
	}
	if err != nil {
		return nil, err
	}
	p.Role = auth.Role(role)
	return &p, nil
}
