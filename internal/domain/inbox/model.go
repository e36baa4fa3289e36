package inbox

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message for one user. Only IsRead ever changes
// after creation.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// EventNotification is the live event type pushed to connected clients.
const EventNotification = "notification"
