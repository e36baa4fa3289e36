package clinical

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
)

type Service struct {
	records RecordRepository
	logger  zerolog.Logger
}

func NewService(records RecordRepository, logger zerolog.Logger) *Service {
	return &Service{
		records: records,
		logger:  logger.With().Str("component", "clinical").Logger(),
	}
}

func (s *Service) Add(ctx context.Context, caller auth.Identity, req AddRequest) (*Record, error) {
	doc, ok := caller.View().(auth.DoctorView)
	if !ok {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only doctors can add medical records")
	}
	raw := strings.TrimSpace(req.PatientID)
	if raw == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "patientId")
	}
	condition := strings.TrimSpace(req.MedicalCondition)
	if condition == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "medicalCondition")
	}
	if req.HeartRate != nil && *req.HeartRate <= 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "heartRate must be positive")
	}
	if v := req.BloodSugarLevel; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "bloodSugarLevel must be a non-negative number")
	}

	patientID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %q", raw)
	}
	patient, err := s.records.GetParty(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != auth.RolePatient {
		return nil, apperr.Wrap(apperr.ErrNotFound, "patient %s", patientID)
	}
	doctor, err := s.records.GetParty(ctx, doc.DoctorID)
	if err != nil {
		return nil, err
	}

	meds := []string{}
	for _, m := range req.PrescribedMedications {
		if m = strings.TrimSpace(m); m != "" {
			meds = append(meds, m)
		}
	}
	rec := &Record{
		PatientID:             patientID,
		DoctorID:              doc.DoctorID,
		HeartRate:             req.HeartRate,
		BloodPressure:         strings.TrimSpace(req.BloodPressure),
		BloodSugarLevel:       req.BloodSugarLevel,
		MedicalCondition:      condition,
		PrescribedMedications: meds,
		Notes:                 strings.TrimSpace(req.Notes),
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	rec.Patient, rec.Doctor = patient, doctor

	s.logger.Info().Str("record_id", rec.ID.String()).Str("patient_id", patientID.String()).Msg("medical record added")
	return rec, nil
}

// MyRecords lists every record about the calling patient.
func (s *Service) MyRecords(ctx context.Context, caller auth.Identity) ([]*Record, error) {
	pv, ok := caller.View().(auth.PatientView)
	if !ok {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only patients have personal records")
	}
	return s.list(ctx, pv.PatientID, nil)
}

// PatientRecords lists the records the calling doctor wrote for a patient.
func (s *Service) PatientRecords(ctx context.Context, caller auth.Identity, rawPatientID string) ([]*Record, error) {
	dv, ok := caller.View().(auth.DoctorView)
	if !ok {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only doctors can list a patient's records")
	}
	patientID, err := uuid.Parse(strings.TrimSpace(rawPatientID))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidID, "patient id %q", rawPatientID)
	}
	return s.list(ctx, patientID, &dv.DoctorID)
}

func (s *Service) list(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]*Record, error) {
	items, err := s.records.ListByPatient(ctx, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Record{}
	}
	return items, nil
}
