// Messages are immutable once appended; only the seen flag may change,
// and only from false to true.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single text entry in a room.
// DriverID is always the driver side of the conversation, regardless of
// which side sent the message; it exists for display purposes.
type Message struct {
	ID       uuid.UUID
	DriverID string
	Body     string
	Seen     bool
	SentAt   time.Time
}
