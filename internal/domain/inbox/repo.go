package inbox

import (
	"context"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListByUser returns the user's notifications newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	ListUnreadIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}
