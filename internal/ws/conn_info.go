package ws

import (
	"time"

	"realtime-service/internal/models"
)

// ConnInfo carries per-connection metadata for logging and event publishing.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	Email       string
	Class       models.ConnectionClass
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
