package medication

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/db"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rxCols = `r.id, r.patient_id, r.doctor_id, r.diagnosis, r.medicines, r.additional_notes, r.created_at,
	p.name, p.email, d.name, d.email`

const rxJoins = ` FROM prescriptions r
	JOIN users p ON p.id = r.patient_id
	JOIN users d ON d.id = r.doctor_id`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var rx Prescription
	p := &Party{Role: auth.RolePatient}
	d := &Party{Role: auth.RoleDoctor}
	err := row.Scan(&rx.ID, &rx.PatientID, &rx.DoctorID, &rx.Diagnosis, &rx.Medicines, &rx.AdditionalNotes, &rx.CreatedAt,
		&p.Name, &p.Email, &d.Name, &d.Email)
	if err != nil {
		return nil, err
	}
	p.ID, d.ID = rx.PatientID, rx.DoctorID
	rx.Patient, rx.Doctor = p, d
	if rx.Medicines == nil {
		rx.Medicines = []Medicine{}
	}
	return &rx, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, rx *Prescription) error {
	rx.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, diagnosis, medicines, additional_notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		rx.ID, rx.PatientID, rx.DoctorID, rx.Diagnosis, rx.Medicines, rx.AdditionalNotes).Scan(&rx.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.ErrNotFound, "patient %s", rx.PatientID)
	}
	return err
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	rx, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+rxJoins+` WHERE r.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "prescription %s", id)
	}
	return rx, err
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+rxJoins+`
		WHERE r.patient_id = $1 AND ($2::uuid IS NULL OR r.doctor_id = $2)
		ORDER BY r.created_at DESC`, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		rx, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rx)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) GetParty(ctx context.Context, id uuid.UUID) (*Party, error) {
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
