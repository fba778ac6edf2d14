package models

import "time"

// ConnectionClass declares what a connection is used for.
type ConnectionClass string

const (
	ClassDirect ConnectionClass = "DIRECT"
	ClassGroup  ConnectionClass = "GROUP"
	ClassCall   ConnectionClass = "CALL"
)

// Session is one live connection's registry entry, linking a connection id to
// the authenticated user that owns it.
type Session struct {
	ConnID    string          `json:"conn_id"`
	UserID    int64           `json:"user_id"`
	Class     ConnectionClass `json:"class"`
	CreatedAt time.Time       `json:"created_at"`
}

// RoomType maps the connection class to the conversation type whose rooms the
// connection subscribes to. Call connections do not join rooms.
func (c ConnectionClass) RoomType() (ConversationType, bool) {
	switch c {
	case ClassDirect:
		return ConversationDirect, true
	case ClassGroup:
		return ConversationGroup, true
	default:
		return "", false
	}
}
