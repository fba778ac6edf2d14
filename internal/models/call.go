package models

import "time"

// CallType is the requested media kind for a call.
type CallType string

const (
	CallVoice CallType = "VOICE"
	CallVideo CallType = "VIDEO"
)

// CallStatus tracks the signaling state machine. Valid transitions are
// INITIATED -> ACTIVE -> ENDED and INITIATED -> ENDED; ENDED is terminal.
type CallStatus string

const (
	CallInitiated CallStatus = "INITIATED"
	CallActive    CallStatus = "ACTIVE"
	CallEnded     CallStatus = "ENDED"
)

// Call is a persisted call row inside a direct conversation.
type Call struct {
	ID             string     `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	InitiatorID    int64      `db:"initiator_id" json:"initiator_id"`
	Type           CallType   `db:"type" json:"type"`
	Status         CallStatus `db:"status" json:"status"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	EndedAt        *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// CallParticipant records a user who accepted a call.
type CallParticipant struct {
	CallID   string    `db:"call_id" json:"call_id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
