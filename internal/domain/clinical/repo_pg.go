package clinical

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `m.id, m.patient_id, m.doctor_id, m.heart_rate, m.blood_pressure, m.blood_sugar_level::float8,
	m.medical_condition, m.prescribed_medications, m.notes, m.created_at,
	p.name, p.email, d.name, d.email`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	p := &Party{Role: auth.RolePatient}
	d := &Party{Role: auth.RoleDoctor}
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.HeartRate, &rec.BloodPressure, &rec.BloodSugarLevel,
		&rec.MedicalCondition, &rec.PrescribedMedications, &rec.Notes, &rec.CreatedAt,
		&p.Name, &p.Email, &d.Name, &d.Email)
	if err != nil {
		return nil, err
	}
	p.ID, d.ID = rec.PatientID, rec.DoctorID
	rec.Patient, rec.Doctor = p, d
	if rec.PrescribedMedications == nil {
		rec.PrescribedMedications = []string{}
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, heart_rate, blood_pressure, blood_sugar_level,
			medical_condition, prescribed_medications, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.HeartRate, rec.BloodPressure, rec.BloodSugarLevel,
		rec.MedicalCondition, rec.PrescribedMedications, rec.Notes).Scan(&rec.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.ErrNotFound, "patient %s", rec.PatientID)
	}
	return err
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+`
		FROM medical_records m
		JOIN users p ON p.id = m.patient_id
		JOIN users d ON d.id = m.doctor_id
		WHERE m.patient_id = $1 AND ($2::uuid IS NULL OR m.doctor_id = $2)
		ORDER BY m.created_at DESC`, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) GetParty(ctx context.Context, id uuid.UUID) (*Party, error) {
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
