package models

import (
	"encoding/json"
	"time"
)

// Server-to-client event types emitted over websocket connections.
const (
	EventNewMessage    = "new_message"
	EventMessageRead   = "message_read"
	EventIncomingCall  = "incoming_call"
	EventCallInitiated = "call_initiated"
	EventCallAccepted  = "call_accepted"
	EventCallRejected  = "call_rejected"
	EventCallEnded     = "call_ended"
	EventSignal        = "signal"
	EventError         = "error"
)

// Event is the envelope broadcast through websockets. Only the fields relevant
// to the event type are populated.
type Event struct {
	Type       string          `json:"type"`
	Message    *Message        `json:"message,omitempty"`
	MessageID  string          `json:"message_id,omitempty"`
	Call       *Call           `json:"call,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	FromUserID int64           `json:"from_user_id,omitempty"`
	ReadAt     *time.Time      `json:"read_at,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}
