package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/reporting"
)

type Service struct {
	bills  BillRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(bills BillRepository, logger zerolog.Logger) *Service {
	return &Service{
		bills:  bills,
		logger: logger.With().Str("component", "billing").Logger(),
		now:    time.Now,
	}
}

// Add issues a pending bill from the calling doctor to a patient. The total
// is computed from the items; any client-supplied total is ignored.
func (s *Service) Add(ctx context.Context, caller auth.Identity, req AddRequest) (*Bill, error) {
	doc, ok := caller.View().(auth.DoctorView)
	if !ok {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only doctors can issue bills")
	}
	raw := strings.TrimSpace(req.PatientID)
	if raw == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "patientId")
	}
	if len(req.Services) == 0 {
		return nil, apperr.Wrap(apperr.ErrMissingField, "services")
	}
	items := make([]Item, len(req.Services))
	for i, it := range req.Services {
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" {
			return nil, apperr.Wrap(apperr.ErrMissingField, "services[%d].description", i)
		}
		if math.IsNaN(it.Cost) || math.IsInf(it.Cost, 0) || it.Cost < 0 {
			return nil, apperr.Wrap(apperr.ErrInvalidInput, "services[%d].cost must be a non-negative amount", i)
		}
		items[i] = it
	}

	patient, err := s.patient(ctx, raw)
	if err != nil {
		return nil, err
	}
	doctor, err := s.bills.GetParty(ctx, doc.DoctorID)
	if err != nil {
		return nil, err
	}

	b := &Bill{
		PatientID:   patient.ID,
		DoctorID:    doc.DoctorID,
		Services:    items,
		TotalAmount: Total(items),
		Status:      StatusPending,
	}
	if err := s.bills.Create(ctx, b); err != nil {
		return nil, err
	}
	b.Patient, b.Doctor = patient, doctor

	s.logger.Info().Str("billing_id", b.ID.String()).Str("patient_id", b.PatientID.String()).Float64("total", b.TotalAmount).Msg("bill issued")
	return b, nil
}

func (s *Service) patient(ctx context.Context, raw string) (*Party, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %q", raw)
	}
	p, err := s.bills.GetParty(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != auth.RolePatient {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %s", id)
	}
	return p, nil
}

// List returns bills for a patient. A doctor names the patient and sees only
// the bills they issued; a patient always sees their own bills regardless of
// rawPatientID.
func (s *Service) List(ctx context.Context, caller auth.Identity, rawPatientID string) ([]*Bill, error) {
	var patientID uuid.UUID
	var doctorID *uuid.UUID
	switch v := caller.View().(type) {
	case auth.PatientView:
		patientID = v.PatientID
	case auth.DoctorView:
		id, err := uuid.Parse(strings.TrimSpace(rawPatientID))
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidID, "patient id %q", rawPatientID)
		}
		patientID = id
		doctorID = &v.DoctorID
	}
	items, err := s.bills.ListByPatient(ctx, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Bill{}
	}
	return items, nil
}

// MarkPaid settles a bill. Only the doctor who issued it may do so; paying
// a paid bill returns it unchanged.
func (s *Service) MarkPaid(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc, ok := caller.View().(auth.DoctorView); !ok || doc.DoctorID != b.DoctorID {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only the issuing doctor can mark this bill paid")
	}
	if b.Status == StatusPaid {
		return b, nil
	}
	if err := s.bills.MarkPaid(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	s.logger.Info().Str("billing_id", id.String()).Msg("bill marked paid")
	return s.bills.GetByID(ctx, id)
}

// Invoice renders the bill as a PDF for one of its two parties.
func (s *Service) Invoice(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Bill, []byte, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !ownedBy(b, caller) {
		return nil, nil, apperr.Wrap(apperr.ErrForbidden, "unauthorized to view this bill")
	}

	inv := reporting.Invoice{
		ID:       b.ID.String(),
		IssuedAt: b.IssuedAt,
		Status:   string(b.Status),
		Total:    b.TotalAmount,
	}
	if b.Doctor != nil {
		inv.Doctor = reporting.Party{Name: b.Doctor.Name, Email: b.Doctor.Email}
	}
	if b.Patient != nil {
		inv.Patient = reporting.Party{Name: b.Patient.Name, Email: b.Patient.Email}
	}
	for _, it := range b.Services {
		inv.Items = append(inv.Items, reporting.LineItem{Description: it.Description, Cost: it.Cost})
	}
	doc, err := reporting.InvoicePDF(inv)
	if err != nil {
		return nil, nil, err
	}
	return b, doc, nil
}

func ownedBy(b *Bill, caller auth.Identity) bool {
	switch v := caller.View().(type) {
	case auth.DoctorView:
		return b.DoctorID == v.DoctorID
	case auth.PatientView:
		return b.PatientID == v.PatientID
	}
	return false
}
