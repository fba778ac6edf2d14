package call

import (
	"context"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/directory"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/registry"
	"realtime-service/internal/repositories"
)

// Controller is the call signaling state machine. It routes control events
// between exactly the caller's and callee's session sets; the media itself
// never passes through this service.
type Controller struct {
	sessions  registry.SessionRegistry
	users     repositories.UserRepository
	calls     repositories.CallRepository
	directory *directory.Directory
}

// New constructs a Controller.
func New(sessions registry.SessionRegistry, users repositories.UserRepository, calls repositories.CallRepository, dir *directory.Directory) *Controller {
	return &Controller{
		sessions:  sessions,
		users:     users,
		calls:     calls,
		directory: dir,
	}
}

// Initiate starts a call to the callee. It fails before creating any state
// when the callee is offline or unknown, resolves the pair's direct
// conversation and persists the call as INITIATED.
func (c *Controller) Initiate(ctx context.Context, callerID, calleeID int64, callType models.CallType) (models.Call, []models.Session, error) {
	calleeSessions := c.sessions.SessionsOf(ctx, calleeID)
	if len(calleeSessions) == 0 {
		return models.Call{}, nil, apperrors.ErrUserOffline
	}
	if _, err := c.users.GetUser(ctx, calleeID); err != nil {
		return models.Call{}, nil, err
	}

	conv, err := c.directory.FindOrCreateDirect(ctx, callerID, calleeID)
	if err != nil {
		return models.Call{}, nil, err
	}

	call, err := c.calls.CreateCall(ctx, conv.ID, callerID, callType)
	if err != nil {
		return models.Call{}, nil, err
	}

	observability.IncCallSignal("initiate")
	return call, calleeSessions, nil
}

// Accept transitions the call to ACTIVE and records the acceptor as a
// participant, returning the caller's sessions so the answer can be routed
// back. Accepting an ENDED call fails without changing state.
func (c *Controller) Accept(ctx context.Context, callID string, callerID, acceptorID int64) (models.Call, []models.Session, error) {
	callerSessions := c.sessions.SessionsOf(ctx, callerID)
	if len(callerSessions) == 0 {
		return models.Call{}, nil, apperrors.ErrUserOffline
	}

	call, err := c.calls.AcceptCall(ctx, callID, acceptorID)
	if err != nil {
		return models.Call{}, nil, err
	}

	observability.IncCallSignal("accept")
	return call, callerSessions, nil
}

// Reject ends a ringing call. Rejecting an already-ENDED call is a no-op so
// duplicate signals from lossy transports are tolerated.
func (c *Controller) Reject(ctx context.Context, callID string) (models.Call, error) {
	call, err := c.calls.EndCall(ctx, callID)
	if err == nil {
		observability.IncCallSignal("reject")
	}
	return call, err
}

// End terminates the call; idempotent like Reject.
func (c *Controller) End(ctx context.Context, callID string) (models.Call, error) {
	call, err := c.calls.EndCall(ctx, callID)
	if err == nil {
		observability.IncCallSignal("end")
	}
	return call, err
}

// SessionsFor resolves the target's live sessions for ephemeral signaling
// payloads (offers, answers, ICE candidates). These are routed straight to the
// sessions and never persisted.
func (c *Controller) SessionsFor(ctx context.Context, userID int64) ([]models.Session, error) {
	sessions := c.sessions.SessionsOf(ctx, userID)
	if len(sessions) == 0 {
		return nil, apperrors.ErrUserOffline
	}
	return sessions, nil
}
