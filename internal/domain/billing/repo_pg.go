package billing

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

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository {
	return &billRepoPG{pool: pool}
}

func (r *billRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const billCols = `b.id, b.patient_id, b.doctor_id, b.services, b.total_amount, b.status, b.issued_at, b.paid_at,
	p.name, p.email, d.name, d.email`

const billJoins = ` FROM billings b
	JOIN users p ON p.id = b.patient_id
	JOIN users d ON d.id = b.doctor_id`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	var status string
	p := &Party{Role: auth.RolePatient}
	d := &Party{Role: auth.RoleDoctor}
	err := row.Scan(&b.ID, &b.PatientID, &b.DoctorID, &b.Services, &b.TotalAmount, &status, &b.IssuedAt, &b.PaidAt,
		&p.Name, &p.Email, &d.Name, &d.Email)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	p.ID, d.ID = b.PatientID, b.DoctorID
	b.Patient, b.Doctor = p, d
	if b.Services == nil {
		b.Services = []Item{}
	}
	return &b, nil
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO billings (id, patient_id, doctor_id, services, total_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING issued_at`,
		b.ID, b.PatientID, b.DoctorID, b.Services, b.TotalAmount, string(b.Status)).Scan(&b.IssuedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.ErrNotFound, "patient %s", b.PatientID)
	}
	return err
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+billJoins+` WHERE b.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "billing record %s", id)
	}
	return b, err
}

func (r *billRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Bill, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+billCols+billJoins+`
		WHERE b.patient_id = $1 AND ($2::uuid IS NULL OR b.doctor_id = $2)
		ORDER BY b.issued_at DESC`, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// MarkPaid keeps the first payment time if the bill is already paid.
func (r *billRepoPG) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE billings
		SET status = 'paid', paid_at = COALESCE(paid_at, $2)
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "billing record %s", id)
	}
	return nil
}

func (r *billRepoPG) GetParty(ctx context.Context, id uuid.UUID) (*Party, error) {
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
