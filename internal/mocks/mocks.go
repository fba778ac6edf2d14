package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) EnsureUser(ctx context.Context, id int64, email string) error {
	args := m.Called(ctx, id, email)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, id int64) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, id int64, online bool) error {
	args := m.Called(ctx, id, online)
	return args.Error(0)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGetDirect(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, creatorID int64, memberIDs []int64, name, description string) (models.Conversation, error) {
	args := m.Called(ctx, creatorID, memberIDs, name, description)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int64, convType *models.ConversationType) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, convType)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) ParticipantsOf(ctx context.Context, conversationID string) ([]models.Participant, error) {
	args := m.Called(ctx, conversationID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) AddParticipant(ctx context.Context, conversationID string, userID int64, role models.Role) error {
	args := m.Called(ctx, conversationID, userID, role)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) RemoveParticipant(ctx context.Context, conversationID string, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetRole(ctx context.Context, conversationID string, userID int64, role models.Role) error {
	args := m.Called(ctx, conversationID, userID, role)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID string, senderID int64, recipientID *int64, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, recipientID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) PendingForUser(ctx context.Context, userID int64) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type CallRepositoryMock struct {
	mock.Mock
}

func (m *CallRepositoryMock) CreateCall(ctx context.Context, conversationID string, initiatorID int64, callType models.CallType) (models.Call, error) {
	args := m.Called(ctx, conversationID, initiatorID, callType)
	var c models.Call
	if val := args.Get(0); val != nil {
		c = val.(models.Call)
	}
	return c, args.Error(1)
}

func (m *CallRepositoryMock) GetCall(ctx context.Context, callID string) (models.Call, error) {
	args := m.Called(ctx, callID)
	var c models.Call
	if val := args.Get(0); val != nil {
		c = val.(models.Call)
	}
	return c, args.Error(1)
}

func (m *CallRepositoryMock) AcceptCall(ctx context.Context, callID string, acceptorID int64) (models.Call, error) {
	args := m.Called(ctx, callID, acceptorID)
	var c models.Call
	if val := args.Get(0); val != nil {
		c = val.(models.Call)
	}
	return c, args.Error(1)
}

func (m *CallRepositoryMock) EndCall(ctx context.Context, callID string) (models.Call, error) {
	args := m.Called(ctx, callID)
	var c models.Call
	if val := args.Get(0); val != nil {
		c = val.(models.Call)
	}
	return c, args.Error(1)
}

type SessionRegistryMock struct {
	mock.Mock
}

func (m *SessionRegistryMock) Register(ctx context.Context, userID int64, connID string, class models.ConnectionClass) (models.Session, error) {
	args := m.Called(ctx, userID, connID, class)
	var sess models.Session
	if val := args.Get(0); val != nil {
		sess = val.(models.Session)
	}
	return sess, args.Error(1)
}

func (m *SessionRegistryMock) Get(ctx context.Context, connID string) (models.Session, bool) {
	args := m.Called(ctx, connID)
	var sess models.Session
	if val := args.Get(0); val != nil {
		sess = val.(models.Session)
	}
	return sess, args.Bool(1)
}

func (m *SessionRegistryMock) SessionsOf(ctx context.Context, userID int64) []models.Session {
	args := m.Called(ctx, userID)
	var sessions []models.Session
	if val := args.Get(0); val != nil {
		sessions = val.([]models.Session)
	}
	return sessions
}

func (m *SessionRegistryMock) Remove(ctx context.Context, connID string) (models.Session, bool) {
	args := m.Called(ctx, connID)
	var sess models.Session
	if val := args.Get(0); val != nil {
		sess = val.(models.Session)
	}
	return sess, args.Bool(1)
}

func (m *SessionRegistryMock) HasActive(ctx context.Context, userID int64) bool {
	args := m.Called(ctx, userID)
	return args.Bool(0)
}

type EmitterMock struct {
	mock.Mock
}

func (m *EmitterMock) SendToSessions(sessions []models.Session, event models.Event) int {
	args := m.Called(sessions, event)
	return args.Int(0)
}

func (m *EmitterMock) BroadcastToRoom(roomID string, event models.Event, exceptConnID string) {
	m.Called(roomID, event, exceptConnID)
}

func (m *EmitterMock) SendToConn(connID string, event models.Event) error {
	args := m.Called(connID, event)
	return args.Error(0)
}

func (m *EmitterMock) JoinRoom(roomID, connID string) {
	m.Called(roomID, connID)
}
