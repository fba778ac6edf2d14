package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error so transport layers can map it to a
// wire-level failure without inspecting messages.
type Kind int

const (
	Internal Kind = iota
	InvalidArgument
	NotFound
	NotAMember
	Unauthorized
	UserOffline
	Conflict
	Unavailable
)

// String names the kind for logs and error events.
func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case NotAMember:
		return "not_a_member"
	case Unauthorized:
		return "unauthorized"
	case UserOffline:
		return "user_offline"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the structured failure surfaced at every operation boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message, so wrapped instances still
// compare equal to their sentinel via errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New builds a sentinel error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches an underlying cause while keeping the sentinel's identity.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// KindOf extracts the kind from any error, defaulting to Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Predefined failures shared across the core.
var (
	ErrSelfConversation = New(InvalidArgument, "cannot start a conversation with yourself")
	ErrTooFewMembers    = New(InvalidArgument, "group conversation needs at least 2 participants")
	ErrNotGroup         = New(InvalidArgument, "conversation is not a group")
	ErrNoRecipient      = New(InvalidArgument, "conversation has no valid recipient")

	ErrConversationNotFound = New(NotFound, "conversation not found")
	ErrMessageNotFound      = New(NotFound, "message not found")
	ErrCallNotFound         = New(NotFound, "call not found")
	ErrUnknownUser          = New(NotFound, "user not found")

	ErrNotAMember    = New(NotAMember, "not a conversation participant")
	ErrUserOffline   = New(UserOffline, "user has no active sessions")
	ErrCallEnded     = New(Conflict, "call already ended")
	ErrAlreadyJoined = New(Conflict, "user is already a participant")

	ErrStoreUnavailable = New(Unavailable, "storage unavailable")
)
