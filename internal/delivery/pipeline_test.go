package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
)

func directConversation() models.Conversation {
	return models.Conversation{ID: "c1", Type: models.ConversationDirect}
}

func directParticipants() []models.Participant {
	return []models.Participant{
		{ConversationID: "c1", UserID: 1},
		{ConversationID: "c1", UserID: 2},
	}
}

func TestSendDeliversToOnlineRecipient(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reg := new(mocks.SessionRegistryMock)
	emitter := new(mocks.EmitterMock)
	pipeline := New(convRepo, msgRepo, reg, emitter)

	recipient := int64(2)
	stored := models.Message{ID: "m1", ConversationID: "c1", SenderID: 1, RecipientID: &recipient, Content: "hi"}
	delivered := stored
	delivered.IsDelivered = true

	convRepo.On("GetConversation", mock.Anything, "c1").Return(directConversation(), nil).Once()
	convRepo.On("ParticipantsOf", mock.Anything, "c1").Return(directParticipants(), nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "c1", int64(1), &recipient, "hi").Return(stored, nil).Once()
	reg.On("SessionsOf", mock.Anything, int64(2)).Return([]models.Session{{ConnID: "conn-2", UserID: 2}}).Once()
	emitter.On("SendToSessions", mock.Anything, mock.Anything).Return(1).Once()
	msgRepo.On("MarkDelivered", mock.Anything, "m1").Return(delivered, nil).Once()

	msg, err := pipeline.Send(context.Background(), "c1", 1, "hi")
	require.NoError(t, err)
	assert.True(t, msg.IsDelivered)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	reg.AssertExpectations(t)
	emitter.AssertExpectations(t)
}

func TestSendQueuesForOfflineRecipient(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reg := new(mocks.SessionRegistryMock)
	emitter := new(mocks.EmitterMock)
	pipeline := New(convRepo, msgRepo, reg, emitter)

	recipient := int64(2)
	stored := models.Message{ID: "m1", ConversationID: "c1", SenderID: 1, RecipientID: &recipient, Content: "hi"}

	convRepo.On("GetConversation", mock.Anything, "c1").Return(directConversation(), nil).Once()
	convRepo.On("ParticipantsOf", mock.Anything, "c1").Return(directParticipants(), nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "c1", int64(1), &recipient, "hi").Return(stored, nil).Once()
	reg.On("SessionsOf", mock.Anything, int64(2)).Return(([]models.Session)(nil)).Once()

	msg, err := pipeline.Send(context.Background(), "c1", 1, "hi")
	require.NoError(t, err)
	assert.False(t, msg.IsDelivered)
	msgRepo.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything)
	emitter.AssertNotCalled(t, "SendToSessions", mock.Anything, mock.Anything)
}

func TestSendRejectsNonMember(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	pipeline := New(convRepo, msgRepo, new(mocks.SessionRegistryMock), new(mocks.EmitterMock))

	convRepo.On("GetConversation", mock.Anything, "c1").Return(directConversation(), nil).Once()
	convRepo.On("ParticipantsOf", mock.Anything, "c1").Return(directParticipants(), nil).Once()

	_, err := pipeline.Send(context.Background(), "c1", 9, "hi")
	assert.ErrorIs(t, err, apperrors.ErrNotAMember)
	msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendDirectWithoutRecipient(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	pipeline := New(convRepo, new(mocks.MessageRepositoryMock), new(mocks.SessionRegistryMock), new(mocks.EmitterMock))

	convRepo.On("GetConversation", mock.Anything, "c1").Return(directConversation(), nil).Once()
	convRepo.On("ParticipantsOf", mock.Anything, "c1").Return([]models.Participant{
		{ConversationID: "c1", UserID: 1},
	}, nil).Once()

	_, err := pipeline.Send(context.Background(), "c1", 1, "hi")
	assert.ErrorIs(t, err, apperrors.ErrNoRecipient)
}

func TestSendGroupDeliveredWhenAnyMemberOnline(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reg := new(mocks.SessionRegistryMock)
	emitter := new(mocks.EmitterMock)
	pipeline := New(convRepo, msgRepo, reg, emitter)

	stored := models.Message{ID: "m1", ConversationID: "g1", SenderID: 1, Content: "hi"}
	delivered := stored
	delivered.IsDelivered = true

	convRepo.On("GetConversation", mock.Anything, "g1").
		Return(models.Conversation{ID: "g1", Type: models.ConversationGroup}, nil).Once()
	convRepo.On("ParticipantsOf", mock.Anything, "g1").Return([]models.Participant{
		{ConversationID: "g1", UserID: 1},
		{ConversationID: "g1", UserID: 2},
		{ConversationID: "g1", UserID: 3},
	}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "g1", int64(1), (*int64)(nil), "hi").Return(stored, nil).Once()
	reg.On("SessionsOf", mock.Anything, int64(2)).Return(([]models.Session)(nil)).Once()
	reg.On("SessionsOf", mock.Anything, int64(3)).Return([]models.Session{{ConnID: "conn-3", UserID: 3}}).Once()
	emitter.On("BroadcastToRoom", "g1", mock.Anything, "").Return().Once()
	msgRepo.On("MarkDelivered", mock.Anything, "m1").Return(delivered, nil).Once()

	msg, err := pipeline.Send(context.Background(), "g1", 1, "hi")
	require.NoError(t, err)
	assert.True(t, msg.IsDelivered)
	emitter.AssertNotCalled(t, "SendToSessions", mock.Anything, mock.Anything)
	reg.AssertExpectations(t)
	emitter.AssertExpectations(t)
}

func TestSendGroupQueuedWhenAllMembersOffline(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reg := new(mocks.SessionRegistryMock)
	emitter := new(mocks.EmitterMock)
	pipeline := New(convRepo, msgRepo, reg, emitter)

	stored := models.Message{ID: "m1", ConversationID: "g1", SenderID: 1, Content: "hi"}

	convRepo.On("GetConversation", mock.Anything, "g1").
		Return(models.Conversation{ID: "g1", Type: models.ConversationGroup}, nil).Once()
	convRepo.On("ParticipantsOf", mock.Anything, "g1").Return([]models.Participant{
		{ConversationID: "g1", UserID: 1},
		{ConversationID: "g1", UserID: 2},
	}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "g1", int64(1), (*int64)(nil), "hi").Return(stored, nil).Once()
	reg.On("SessionsOf", mock.Anything, int64(2)).Return(([]models.Session)(nil)).Once()
	// The room still gets the event for the sender's other devices.
	emitter.On("BroadcastToRoom", "g1", mock.Anything, "").Return().Once()

	msg, err := pipeline.Send(context.Background(), "g1", 1, "hi")
	require.NoError(t, err)
	assert.False(t, msg.IsDelivered)
	msgRepo.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything)
	emitter.AssertExpectations(t)
}

func TestMarkReadNotifiesSender(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	reg := new(mocks.SessionRegistryMock)
	emitter := new(mocks.EmitterMock)
	pipeline := New(new(mocks.ConversationRepositoryMock), msgRepo, reg, emitter)

	recipient := int64(2)
	readAt := time.Now()
	stored := models.Message{ID: "m1", ConversationID: "c1", SenderID: 1, RecipientID: &recipient}
	read := stored
	read.IsRead = true
	read.ReadAt = &readAt

	msgRepo.On("GetMessage", mock.Anything, "m1").Return(stored, nil).Once()
	msgRepo.On("MarkRead", mock.Anything, "m1").Return(read, nil).Once()
	reg.On("SessionsOf", mock.Anything, int64(1)).Return([]models.Session{{ConnID: "conn-1", UserID: 1}}).Once()
	emitter.On("SendToSessions", mock.Anything, mock.MatchedBy(func(event models.Event) bool {
		return event.Type == models.EventMessageRead && event.MessageID == "m1" && event.FromUserID == 2
	})).Return(1).Once()

	got, err := pipeline.MarkRead(context.Background(), "m1", 2)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	emitter.AssertExpectations(t)
}

func TestMarkReadIdempotent(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	pipeline := New(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.SessionRegistryMock), new(mocks.EmitterMock))

	recipient := int64(2)
	readAt := time.Now()
	stored := models.Message{ID: "m1", SenderID: 1, RecipientID: &recipient, IsRead: true, ReadAt: &readAt}

	msgRepo.On("GetMessage", mock.Anything, "m1").Return(stored, nil).Once()

	got, err := pipeline.MarkRead(context.Background(), "m1", 2)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	msgRepo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkReadWrongReader(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	pipeline := New(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.SessionRegistryMock), new(mocks.EmitterMock))

	recipient := int64(2)
	stored := models.Message{ID: "m1", SenderID: 1, RecipientID: &recipient}

	msgRepo.On("GetMessage", mock.Anything, "m1").Return(stored, nil).Once()

	_, err := pipeline.MarkRead(context.Background(), "m1", 9)
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
}

func TestMarkReadGroupRequiresMembership(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	pipeline := New(convRepo, msgRepo, new(mocks.SessionRegistryMock), new(mocks.EmitterMock))

	stored := models.Message{ID: "m1", ConversationID: "g1", SenderID: 1}

	msgRepo.On("GetMessage", mock.Anything, "m1").Return(stored, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, "g1", int64(9)).Return(false, nil).Once()

	_, err := pipeline.MarkRead(context.Background(), "m1", 9)
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
}
