package call

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/directory"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
)

func newController() (*Controller, *mocks.SessionRegistryMock, *mocks.UserRepositoryMock, *mocks.CallRepositoryMock, *mocks.ConversationRepositoryMock) {
	reg := new(mocks.SessionRegistryMock)
	users := new(mocks.UserRepositoryMock)
	calls := new(mocks.CallRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	return New(reg, users, calls, directory.New(convs)), reg, users, calls, convs
}

func TestInitiateOfflineCallee(t *testing.T) {
	ctl, reg, _, calls, _ := newController()

	reg.On("SessionsOf", mock.Anything, int64(2)).Return(([]models.Session)(nil)).Once()

	_, _, err := ctl.Initiate(context.Background(), 1, 2, models.CallVoice)
	assert.ErrorIs(t, err, apperrors.ErrUserOffline)
	// No state may be created for an unreachable callee.
	calls.AssertNotCalled(t, "CreateCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiateUnknownCallee(t *testing.T) {
	ctl, reg, users, calls, _ := newController()

	reg.On("SessionsOf", mock.Anything, int64(2)).Return([]models.Session{{ConnID: "conn-2", UserID: 2}}).Once()
	users.On("GetUser", mock.Anything, int64(2)).Return(models.User{}, apperrors.ErrUnknownUser).Once()

	_, _, err := ctl.Initiate(context.Background(), 1, 2, models.CallVoice)
	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
	calls.AssertNotCalled(t, "CreateCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiateSuccess(t *testing.T) {
	ctl, reg, users, calls, convs := newController()

	calleeSessions := []models.Session{{ConnID: "conn-2", UserID: 2, Class: models.ClassCall}}
	reg.On("SessionsOf", mock.Anything, int64(2)).Return(calleeSessions).Once()
	users.On("GetUser", mock.Anything, int64(2)).Return(models.User{ID: 2}, nil).Once()
	convs.On("CreateOrGetDirect", mock.Anything, int64(1), int64(2)).
		Return(models.Conversation{ID: "c1", Type: models.ConversationDirect}, nil).Once()
	calls.On("CreateCall", mock.Anything, "c1", int64(1), models.CallVideo).
		Return(models.Call{ID: "call-1", ConversationID: "c1", InitiatorID: 1, Status: models.CallInitiated}, nil).Once()

	started, sessions, err := ctl.Initiate(context.Background(), 1, 2, models.CallVideo)
	require.NoError(t, err)
	assert.Equal(t, "call-1", started.ID)
	assert.Equal(t, calleeSessions, sessions)
	calls.AssertExpectations(t)
}

func TestAcceptRoutesToCaller(t *testing.T) {
	ctl, reg, _, calls, _ := newController()

	callerSessions := []models.Session{{ConnID: "conn-1", UserID: 1, Class: models.ClassCall}}
	reg.On("SessionsOf", mock.Anything, int64(1)).Return(callerSessions).Once()
	calls.On("AcceptCall", mock.Anything, "call-1", int64(2)).
		Return(models.Call{ID: "call-1", Status: models.CallActive}, nil).Once()

	accepted, sessions, err := ctl.Accept(context.Background(), "call-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.CallActive, accepted.Status)
	assert.Equal(t, callerSessions, sessions)
}

func TestAcceptEndedCall(t *testing.T) {
	ctl, reg, _, calls, _ := newController()

	reg.On("SessionsOf", mock.Anything, int64(1)).Return([]models.Session{{ConnID: "conn-1", UserID: 1}}).Once()
	calls.On("AcceptCall", mock.Anything, "call-1", int64(2)).
		Return(models.Call{}, apperrors.ErrCallEnded).Once()

	_, _, err := ctl.Accept(context.Background(), "call-1", 1, 2)
	assert.ErrorIs(t, err, apperrors.ErrCallEnded)
}

func TestEndIsIdempotent(t *testing.T) {
	ctl, _, _, calls, _ := newController()

	ended := models.Call{ID: "call-1", Status: models.CallEnded}
	calls.On("EndCall", mock.Anything, "call-1").Return(ended, nil).Twice()

	first, err := ctl.End(context.Background(), "call-1")
	require.NoError(t, err)
	second, err := ctl.End(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSessionsForOffline(t *testing.T) {
	ctl, reg, _, _, _ := newController()

	reg.On("SessionsOf", mock.Anything, int64(5)).Return(([]models.Session)(nil)).Once()

	_, err := ctl.SessionsFor(context.Background(), 5)
	assert.ErrorIs(t, err, apperrors.ErrUserOffline)
}
