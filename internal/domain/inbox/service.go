package inbox

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/db"
)

// Pusher delivers live events to a user's open connections.
type Pusher interface {
	PushToUser(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) error
}

type Service struct {
	repo   NotificationRepository
	pusher Pusher
	logger zerolog.Logger
}

// NewService returns a notification service. pusher may be nil, in which
// case notifications are only stored.
func NewService(repo NotificationRepository, pusher Pusher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		pusher: pusher,
		logger: logger.With().Str("component", "inbox").Logger(),
	}
}

// Create stores an unread notification and, once any surrounding
// transaction has committed, pushes it to the recipient's live connections.
// Push failures are logged; the stored record is the source of truth.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, message string) (*Notification, error) {
	message = strings.TrimSpace(message)
	if userID == uuid.Nil {
		return nil, apperr.Wrap(apperr.ErrMissingField, "userId")
	}
	if message == "" {
		return nil, apperr.Wrap(apperr.ErrMissingField, "message")
	}

	n := &Notification{UserID: userID, Message: message}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.pusher != nil {
		pushed := *n
		db.AfterCommit(ctx, func() {
			// The request context may be gone by the time the hook runs.
			if err := s.pusher.PushToUser(context.Background(), pushed.UserID, EventNotification, pushed); err != nil {
				s.logger.Warn().Err(err).Str("user_id", pushed.UserID.String()).Msg("live push failed")
			}
		})
	}
	return n, nil
}

// Notify is Create for callers that only need to know it succeeded.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	_, err := s.Create(ctx, userID, message)
	return err
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return items, nil
}

// MarkRead flags a notification as read. Ownership is not checked: any
// authenticated caller holding the id may mark it.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// MarkAllRead marks the user's unread notifications one at a time. It is not
// atomic: a notification created while the loop runs may stay unread, and a
// failure part way leaves earlier ones marked. Re-running is safe.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	ids, err := s.repo.ListUnreadIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, id := range ids {
		if err := s.repo.MarkRead(ctx, id); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return marked, err
		}
		marked++
	}
	return marked, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
