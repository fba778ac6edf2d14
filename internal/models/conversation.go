package models

import "time"

// ConversationType distinguishes two-party chats from group chats.
type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

// Role is a participant's role inside a group conversation.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Conversation is a direct or group chat. Direct conversations are unique per
// unordered user pair; groups carry named membership with roles.
type Conversation struct {
	ID          string           `db:"id" json:"id"`
	Type        ConversationType `db:"type" json:"type"`
	Name        string           `db:"name" json:"name,omitempty"`
	Description string           `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// Participant ties a user to a conversation.
type Participant struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Role           Role      `db:"role" json:"role"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}
