package careteam

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/db"
	"github.com/ehr/ehrapp/internal/platform/notification"
)

// Notifier records an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

type Service struct {
	links     LinkRepository
	tx        db.Transactor
	notifier  Notifier
	templates *notification.TemplateEngine
	logger    zerolog.Logger
}

func NewService(links LinkRepository, tx db.Transactor, notifier Notifier, templates *notification.TemplateEngine, logger zerolog.Logger) *Service {
	return &Service{
		links:     links,
		tx:        tx,
		notifier:  notifier,
		templates: templates,
		logger:    logger.With().Str("component", "careteam").Logger(),
	}
}

// ChooseDoctor links a patient to a doctor in both directions within one
// transaction. If the doctor already lists the patient only the patient's
// reference is rewritten, which also repairs a half-written earlier
// assignment. A previous doctor loses the patient from their set.
// Notifications go out after commit, and only for a new link.
func (s *Service) ChooseDoctor(ctx context.Context, patientID uuid.UUID, rawDoctorID string) (*Assignment, error) {
	rawDoctorID = strings.TrimSpace(rawDoctorID)
	if rawDoctorID == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "doctorID")
	}
	doctorID, err := uuid.Parse(rawDoctorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNotFound, "doctor %q", rawDoctorID)
	}

	var out Assignment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doctor, err := s.links.GetMember(ctx, doctorID)
		if err != nil {
			return err
		}
		if doctor.Role != auth.RoleDoctor {
			return apperr.Wrap(apperr.ErrNotFound, "doctor %s", doctorID)
		}
		patient, err := s.links.GetMember(ctx, patientID)
		if err != nil {
			return err
		}
		if patient.Role != auth.RolePatient {
			return apperr.Wrap(apperr.ErrForbidden, "only patients choose a doctor")
		}

		listed, err := s.links.InDoctorSet(ctx, doctorID, patientID)
		if err != nil {
			return err
		}
		if prev := patient.DoctorID; prev != nil && *prev != doctorID {
			if err := s.links.RemoveFromDoctorSet(ctx, *prev, patientID); err != nil {
				return err
			}
		}
		if !listed {
			if err := s.links.AddToDoctorSet(ctx, doctorID, patientID); err != nil {
				return err
			}
		}
		if err := s.links.SetPatientDoctor(ctx, patientID, &doctorID); err != nil {
			return err
		}

		patient.DoctorID = &doctorID
		out = Assignment{Doctor: doctor, Patient: patient, Repaired: listed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.Repaired {
		s.notifyAssignment(ctx, out.Doctor, out.Patient)
	}
	return &out, nil
}

// notifyAssignment tells both parties about a new link. The link is already
// committed, so failures are logged rather than returned.
func (s *Service) notifyAssignment(ctx context.Context, doctor, patient *Member) {
	send := func(to uuid.UUID, tmpl string, data map[string]string) {
		msg, err := s.templates.Render(tmpl, data)
		if err == nil {
			err = s.notifier.Notify(ctx, to, msg)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", to.String()).Str("template", tmpl).Msg("assignment notification failed")
		}
	}
	send(doctor.ID, notification.PatientAssigned, map[string]string{"patient_name": patient.Name})
	send(patient.ID, notification.DoctorConfirmed, map[string]string{"doctor_name": doctor.Name})
}

// ListMyPatients returns the doctor's patient set.
func (s *Service) ListMyPatients(ctx context.Context, doctorID uuid.UUID) ([]*Member, error) {
	items, err := s.links.ListDoctorPatients(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Member{}
	}
	return items, nil
}

// Reconcile repairs one-directional links, treating the patient's reference
// as the source of truth. A patient with no doctor who appears in several
// sets is given the most recently added one; the other entries are dropped.
func (s *Service) Reconcile(ctx context.Context) ([]Repair, error) {
	var repairs []Repair
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		drift, err := s.links.FindDrift(ctx)
		if err != nil {
			return err
		}
		adopted := make(map[uuid.UUID]bool)
		for _, d := range drift {
			var action string
			switch {
			case d.Kind == DriftMissingEntry:
				err = s.links.AddToDoctorSet(ctx, d.DoctorID, d.PatientID)
				action = "added patient to doctor's set"
			case d.Kind == DriftDanglingEntry && !adopted[d.PatientID]:
				doctorID := d.DoctorID
				err = s.links.SetPatientDoctor(ctx, d.PatientID, &doctorID)
				adopted[d.PatientID] = true
				action = "set patient's doctor reference"
			default:
				err = s.links.RemoveFromDoctorSet(ctx, d.DoctorID, d.PatientID)
				action = "removed patient from doctor's set"
			}
			if err != nil {
				return err
			}
			repairs = append(repairs, Repair{Drift: d, Action: action})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, r := range repairs {
		s.logger.Info().
			Str("kind", string(r.Drift.Kind)).
			Str("doctor_id", r.Drift.DoctorID.String()).
			Str("patient_id", r.Drift.PatientID.String()).
			Msg(r.Action)
	}
	return repairs, nil
}
