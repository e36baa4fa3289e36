package medication

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/reporting"
)

type Service struct {
	prescriptions PrescriptionRepository
	logger        zerolog.Logger
}

func NewService(prescriptions PrescriptionRepository, logger zerolog.Logger) *Service {
	return &Service{
		prescriptions: prescriptions,
		logger:        logger.With().Str("component", "medication").Logger(),
	}
}

func (s *Service) Add(ctx context.Context, caller auth.Identity, req AddRequest) (*Prescription, error) {
	doc, ok := caller.View().(auth.DoctorView)
	if !ok {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only doctors can write prescriptions")
	}
	raw := strings.TrimSpace(req.PatientID)
	if raw == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "patientId")
	}
	diagnosis := strings.TrimSpace(req.Diagnosis)
	if diagnosis == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "diagnosis")
	}
	meds := make([]Medicine, len(req.Medicines))
	for i, m := range req.Medicines {
		m = trimMedicine(m)
		required := []struct{ field, value string }{
			{"medicineName", m.MedicineName},
			{"dosage", m.Dosage},
			{"frequency", m.Frequency},
			{"duration", m.Duration},
		}
		for _, r := range required {
			if r.value == "" {
				return nil, apperr.Wrap(apperr.ErrMissingField, "medicines[%d].%s", i, r.field)
			}
		}
		meds[i] = m
	}

	patient, err := s.patient(ctx, raw)
	if err != nil {
		return nil, err
	}
	doctor, err := s.prescriptions.GetParty(ctx, doc.DoctorID)
	if err != nil {
		return nil, err
	}

	rx := &Prescription{
		PatientID:       patient.ID,
		DoctorID:        doc.DoctorID,
		Diagnosis:       diagnosis,
		Medicines:       meds,
		AdditionalNotes: strings.TrimSpace(req.AdditionalNotes),
	}
	if err := s.prescriptions.Create(ctx, rx); err != nil {
		return nil, err
	}
	rx.Patient, rx.Doctor = patient, doctor

	s.logger.Info().Str("prescription_id", rx.ID.String()).Str("patient_id", rx.PatientID.String()).Int("medicines", len(meds)).Msg("prescription written")
	return rx, nil
}

func trimMedicine(m Medicine) Medicine {
	m.MedicineName = strings.TrimSpace(m.MedicineName)
	m.Dosage = strings.TrimSpace(m.Dosage)
	m.Frequency = strings.TrimSpace(m.Frequency)
	m.Duration = strings.TrimSpace(m.Duration)
	m.Instructions = strings.TrimSpace(m.Instructions)
	return m
}

func (s *Service) patient(ctx context.Context, raw string) (*Party, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %q", raw)
	}
	p, err := s.prescriptions.GetParty(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != auth.RolePatient {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %s", id)
	}
	return p, nil
}

// List returns prescriptions for a patient. A doctor sees only the ones
// they wrote for the named patient; a patient sees all of their own.
func (s *Service) List(ctx context.Context, caller auth.Identity, rawPatientID string) ([]*Prescription, error) {
	var (
		patientID uuid.UUID
		author    *uuid.UUID
	)
	switch v := caller.View().(type) {
	case auth.PatientView:
		patientID = v.PatientID
	case auth.DoctorView:
		id, err := uuid.Parse(strings.TrimSpace(rawPatientID))
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidID, "patient id %q", rawPatientID)
		}
		patientID = id
		author = &v.DoctorID
	}
	items, err := s.prescriptions.ListByPatient(ctx, patientID, author)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Prescription{}
	}
	return items, nil
}

// PDF renders the prescription for its doctor or its patient.
func (s *Service) PDF(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Prescription, []byte, error) {
	rx, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var owner bool
	switch v := caller.View().(type) {
	case auth.DoctorView:
		owner = rx.DoctorID == v.DoctorID
	case auth.PatientView:
		owner = rx.PatientID == v.PatientID
	}
	if !owner {
		return nil, nil, apperr.Wrap(apperr.ErrForbidden, "unauthorized to view this prescription")
	}

	out := reporting.Prescription{
		ID:        rx.ID.String(),
		IssuedAt:  rx.CreatedAt,
		Diagnosis: rx.Diagnosis,
		Notes:     rx.AdditionalNotes,
	}
	if rx.Doctor != nil {
		out.Doctor = reporting.Party{Name: rx.Doctor.Name, Email: rx.Doctor.Email}
	}
	if rx.Patient != nil {
		out.Patient = reporting.Party{Name: rx.Patient.Name, Email: rx.Patient.Email}
	}
	for _, m := range rx.Medicines {
		out.Medicines = append(out.Medicines, reporting.Medicine{
			Name:         m.MedicineName,
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
			Instructions: m.Instructions,
		})
	}
	doc, err := reporting.PrescriptionPDF(out)
	if err != nil {
		return nil, nil, err
	}
	return rx, doc, nil
}
