package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one websocket connection for events and presence.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
