package models

import "time"

// MessageType describes the message payload kind.
type MessageType string

const (
	MessageText MessageType = "TEXT"
)

// Message is a persisted chat message. Delivery and read state transitions are
// monotone: false to true only, stamped exactly once.
type Message struct {
	ID             string      `db:"id" json:"id"`
	ConversationID string      `db:"conversation_id" json:"conversation_id"`
	SenderID       int64       `db:"sender_id" json:"sender_id"`
	RecipientID    *int64      `db:"recipient_id" json:"recipient_id,omitempty"`
	Content        string      `db:"content" json:"content"`
	Type           MessageType `db:"type" json:"type"`
	IsDelivered    bool        `db:"is_delivered" json:"is_delivered"`
	DeliveredAt    *time.Time  `db:"delivered_at" json:"delivered_at,omitempty"`
	IsRead         bool        `db:"is_read" json:"is_read"`
	ReadAt         *time.Time  `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
