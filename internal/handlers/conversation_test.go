package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/directory"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
)

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/conversations", handler.List)
	r.POST("/conversations/direct", handler.StartDirect)
	r.POST("/conversations/group", handler.CreateGroup)
	r.GET("/conversations/:conversation_id/participants", handler.Participants)
	r.POST("/conversations/:conversation_id/participants", handler.AddParticipant)
	r.DELETE("/conversations/:conversation_id/participants/:user_id", handler.RemoveParticipant)
	return r
}

func newConversationHandler(repo *mocks.ConversationRepositoryMock) *ConversationHandler {
	return NewConversationHandler(directory.New(repo), new(mocks.UserRepositoryMock), nil)
}

func TestListConversationsSuccess(t *testing.T) {
	repo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(newConversationHandler(repo))

	repo.On("ListForUser", mock.Anything, int64(1), (*models.ConversationType)(nil)).
		Return([]models.Conversation{{ID: "c1", Type: models.ConversationDirect}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	repo.AssertExpectations(t)
}

func TestListConversationsInvalidType(t *testing.T) {
	router := setupConversationRouter(newConversationHandler(new(mocks.ConversationRepositoryMock)))

	req := httptest.NewRequest(http.MethodGet, "/conversations?type=BOGUS", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDirectSuccess(t *testing.T) {
	repo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(newConversationHandler(repo))

	repo.On("CreateOrGetDirect", mock.Anything, int64(1), int64(2)).
		Return(models.Conversation{ID: "c1", Type: models.ConversationDirect}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestStartDirectWithSelf(t *testing.T) {
	router := setupConversationRouter(newConversationHandler(new(mocks.ConversationRepositoryMock)))

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroupTooFewMembers(t *testing.T) {
	router := setupConversationRouter(newConversationHandler(new(mocks.ConversationRepositoryMock)))

	body := bytes.NewBufferString(`{"name":"solo","member_ids":[1]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/group", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantsRequiresMembership(t *testing.T) {
	repo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(newConversationHandler(repo))

	repo.On("IsParticipant", mock.Anything, "c1", int64(1)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/c1/participants", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	repo.AssertExpectations(t)
}

func TestParticipantsIncludePresence(t *testing.T) {
	repo := new(mocks.ConversationRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	router := setupConversationRouter(NewConversationHandler(directory.New(repo), users, nil))

	lastSeen := time.Now().UTC()
	repo.On("IsParticipant", mock.Anything, "g1", int64(1)).Return(true, nil).Once()
	repo.On("ParticipantsOf", mock.Anything, "g1").Return([]models.Participant{
		{ConversationID: "g1", UserID: 1, Role: models.RoleAdmin},
		{ConversationID: "g1", UserID: 2, Role: models.RoleMember},
	}, nil).Once()
	users.On("GetUsers", mock.Anything, []int64{1, 2}).Return([]models.User{
		{ID: 1, Email: "a@example.com", IsOnline: true},
		{ID: 2, Email: "b@example.com", LastSeen: &lastSeen},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/g1/participants", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	var resp struct {
		Participants []struct {
			UserID int64 `json:"user_id"`
			User   *struct {
				ID       int64 `json:"id"`
				IsOnline bool  `json:"is_online"`
			} `json:"user"`
		} `json:"participants"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Participants, 2)
	require.NotNil(t, resp.Participants[0].User)
	assert.True(t, resp.Participants[0].User.IsOnline)
	require.NotNil(t, resp.Participants[1].User)
	assert.False(t, resp.Participants[1].User.IsOnline)
	// Emails stay out of the boundary projection.
	assert.NotContains(t, body, "example.com")
	users.AssertExpectations(t)
}

func TestAddParticipantAlreadyJoined(t *testing.T) {
	repo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(newConversationHandler(repo))

	repo.On("IsParticipant", mock.Anything, "g1", int64(1)).Return(true, nil).Once()
	repo.On("GetConversation", mock.Anything, "g1").
		Return(models.Conversation{ID: "g1", Type: models.ConversationGroup}, nil).Once()
	repo.On("AddParticipant", mock.Anything, "g1", int64(2), models.RoleMember).
		Return(apperrors.ErrAlreadyJoined).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/g1/participants", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	repo.AssertExpectations(t)
}

func TestRemoveParticipantInvalidUserID(t *testing.T) {
	router := setupConversationRouter(newConversationHandler(new(mocks.ConversationRepositoryMock)))

	req := httptest.NewRequest(http.MethodDelete, "/conversations/g1/participants/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveParticipantSuccess(t *testing.T) {
	repo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(newConversationHandler(repo))

	repo.On("IsParticipant", mock.Anything, "g1", int64(1)).Return(true, nil).Once()
	repo.On("GetConversation", mock.Anything, "g1").
		Return(models.Conversation{ID: "g1", Type: models.ConversationGroup}, nil).Once()
	repo.On("ParticipantsOf", mock.Anything, "g1").Return([]models.Participant{
		{ConversationID: "g1", UserID: 1, Role: models.RoleAdmin},
		{ConversationID: "g1", UserID: 2, Role: models.RoleAdmin},
	}, nil).Once()
	repo.On("RemoveParticipant", mock.Anything, "g1", int64(2)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/g1/participants/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	repo.AssertExpectations(t)
}
