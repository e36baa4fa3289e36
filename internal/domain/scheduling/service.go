package scheduling

import (
	"context"
	"strings"
	"time"

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
	appts     AppointmentRepository
	tx        db.Transactor
	notifier  Notifier
	templates *notification.TemplateEngine
	logger    zerolog.Logger
}

func NewService(appts AppointmentRepository, tx db.Transactor, notifier Notifier, templates *notification.TemplateEngine, logger zerolog.Logger) *Service {
	return &Service{
		appts:     appts,
		tx:        tx,
		notifier:  notifier,
		templates: templates,
		logger:    logger.With().Str("component", "scheduling").Logger(),
	}
}

// Book creates a Pending appointment between the caller and the counterpart
// named in req, and notifies the counterpart in the same transaction.
func (s *Service) Book(ctx context.Context, caller auth.Identity, req BookRequest) (*Appointment, error) {
	a := &Appointment{Status: StatusPending, InitiatedBy: caller.Role}
	var rawCounterpart string
	switch v := caller.View().(type) {
	case auth.PatientView:
		a.PatientID = v.PatientID
		rawCounterpart = strings.TrimSpace(req.DoctorID)
		if rawCounterpart == "" {
			return nil, apperr.Wrap(apperr.ErrMissingField, "doctorId")
		}
	case auth.DoctorView:
		a.DoctorID = v.DoctorID
		rawCounterpart = strings.TrimSpace(req.PatientID)
		if rawCounterpart == "" {
			return nil, apperr.Wrap(apperr.ErrMissingField, "patientId")
		}
	}

	a.Date, a.Time = strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	if a.Date == "" || a.Time == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "date and time")
	}
	if _, err := time.Parse(dateLayout, a.Date); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "date must be YYYY-MM-DD, got %q", a.Date)
	}
	if !slotPattern.MatchString(a.Time) {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "time must be HH:MM (24-hour), got %q", a.Time)
	}

	counterpartRole := caller.Role.Counterpart()
	counterpartID, err := uuid.Parse(rawCounterpart)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNotFound, "%s %q", counterpartRole, rawCounterpart)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		self, err := s.appts.GetParty(ctx, caller.UserID)
		if err != nil {
			return err
		}
		other, err := s.appts.GetParty(ctx, counterpartID)
		if err != nil {
			return err
		}
		if other.Role != counterpartRole {
			return apperr.Wrap(apperr.ErrNotFound, "%s %s", counterpartRole, counterpartID)
		}
		if caller.Role == auth.RolePatient {
			a.DoctorID, a.Patient, a.Doctor = other.ID, self, other
		} else {
			a.PatientID, a.Patient, a.Doctor = other.ID, other, self
		}

		if err := s.appts.Create(ctx, a); err != nil {
			return err
		}
		msg, err := s.templates.Render(notification.AppointmentRequested, map[string]string{
			"initiator": string(caller.Role),
			"date":      a.Date,
			"time":      a.Time,
		})
		if err != nil {
			return err
		}
		return s.notifier.Notify(ctx, other.ID, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", a.ID.String()).Str("initiated_by", string(a.InitiatedBy)).Msg("appointment requested")
	return a, nil
}

// Transition moves an appointment to a new status on behalf of one of its
// parties and notifies the other party. Checks run in order: the status is
// one the caller's role may set, the appointment exists, the caller is its
// patient or doctor, and it is not in a terminal state. The write is a
// compare-and-set, so a concurrent transition makes this one fail with
// Conflict instead of silently overwriting it.
func (s *Service) Transition(ctx context.Context, caller auth.Identity, id uuid.UUID, rawStatus string) (*Appointment, error) {
	rawStatus = strings.TrimSpace(rawStatus)
	if rawStatus == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "status")
	}
	to, ok := ParseStatus(rawStatus)
	if !ok || !AllowedFor(caller.Role, to) {
		return nil, apperr.Wrap(apperr.ErrInvalidTransition, "%s can only set status to: %s", caller.Role, allowedList(caller.Role))
	}

	var a *Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.appts.GetByID(ctx, id)
		if err != nil {
			return err
		}

		var recipient uuid.UUID
		switch v := caller.View().(type) {
		case auth.DoctorView:
			if a.DoctorID != v.DoctorID {
				return apperr.Wrap(apperr.ErrForbidden, "not authorized to update this appointment")
			}
			recipient = a.PatientID
		case auth.PatientView:
			if a.PatientID != v.PatientID {
				return apperr.Wrap(apperr.ErrForbidden, "not authorized to update this appointment")
			}
			recipient = a.DoctorID
		}

		from := a.Status
		if from.Terminal() {
			return apperr.Wrap(apperr.ErrInvalidTransition, "appointment is already %s", strings.ToLower(string(from)))
		}
		if !CanTransition(from, to) {
			return apperr.Wrap(apperr.ErrInvalidTransition, "cannot move from %s to %s", from, to)
		}

		changed, err := s.appts.CompareAndSetStatus(ctx, id, from, to)
		if err != nil {
			return err
		}
		if !changed {
			return apperr.Wrap(apperr.ErrConflict, "appointment %s changed while updating", id)
		}
		a.Status = to

		msg, err := s.templates.Render(notification.AppointmentStatus, map[string]string{
			"status": strings.ToLower(string(to)),
			"actor":  string(caller.Role),
		})
		if err != nil {
			return err
		}
		return s.notifier.Notify(ctx, recipient, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", id.String()).Str("status", string(to)).Str("actor", string(caller.Role)).Msg("appointment status changed")
	return a, nil
}

// List returns the caller's appointments ordered by date, then time slot.
func (s *Service) List(ctx context.Context, caller auth.Identity) ([]*Appointment, error) {
	var items []*Appointment
	var err error
	switch v := caller.View().(type) {
	case auth.DoctorView:
		items, err = s.appts.ListByDoctor(ctx, v.DoctorID)
	case auth.PatientView:
		items, err = s.appts.ListByPatient(ctx, v.PatientID)
	}
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, nil
}

func allowedList(role auth.Role) string {
	names := make([]string, 0, len(roleTargets[role]))
	for _, s := range roleTargets[role] {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
