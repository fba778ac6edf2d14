package delivery

import (
	"context"
	"log"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/registry"
	"realtime-service/internal/repositories"
)

// Emitter delivers events to live sessions. Implemented by the websocket hub.
type Emitter interface {
	SendToSessions(sessions []models.Session, event models.Event) int
	BroadcastToRoom(roomID string, event models.Event, exceptConnID string)
}

// Pipeline creates messages, resolves their recipients and fans them out to
// every active session. Fanout is best-effort over an eventually-consistent
// session snapshot; the reconnect flush is the correctness backstop.
type Pipeline struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	sessions      registry.SessionRegistry
	emitter       Emitter
}

// New constructs a Pipeline.
func New(conversations repositories.ConversationRepository, messages repositories.MessageRepository, sessions registry.SessionRegistry, emitter Emitter) *Pipeline {
	return &Pipeline{
		conversations: conversations,
		messages:      messages,
		sessions:      sessions,
		emitter:       emitter,
	}
}

// Send persists a message from senderID into the conversation and fans it out.
// For direct conversations the single other participant becomes the recipient.
func (p *Pipeline) Send(ctx context.Context, conversationID string, senderID int64, content string) (models.Message, error) {
	conv, err := p.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}

	participants, err := p.conversations.ParticipantsOf(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}

	sender := false
	var recipientID *int64
	for _, part := range participants {
		if part.UserID == senderID {
			sender = true
			continue
		}
		if conv.Type == models.ConversationDirect {
			id := part.UserID
			recipientID = &id
		}
	}
	if !sender {
		return models.Message{}, apperrors.ErrNotAMember
	}
	if conv.Type == models.ConversationDirect && recipientID == nil {
		return models.Message{}, apperrors.ErrNoRecipient
	}

	msg, err := p.messages.CreateMessage(ctx, conversationID, senderID, recipientID, content)
	if err != nil {
		return models.Message{}, err
	}

	return p.fanout(ctx, msg, conv, participants), nil
}

// fanout emits the message and marks it delivered when at least one other
// participant had an active session. Direct messages go to the recipient's
// sessions; group messages go through the conversation room, which mirrors the
// membership for group-class connections and includes the sender's own devices.
func (p *Pipeline) fanout(ctx context.Context, msg models.Message, conv models.Conversation, participants []models.Participant) models.Message {
	event := models.Event{Type: models.EventNewMessage, Message: &msg}
	online := 0
	for _, part := range participants {
		if part.UserID == msg.SenderID {
			continue
		}
		sessions := p.sessions.SessionsOf(ctx, part.UserID)
		if len(sessions) == 0 {
			continue
		}
		online++
		if conv.Type == models.ConversationDirect {
			p.emitter.SendToSessions(sessions, event)
		}
	}

	if conv.Type == models.ConversationGroup {
		p.emitter.BroadcastToRoom(msg.ConversationID, event, "")
	}

	if online == 0 {
		observability.IncMessageQueued()
		return msg
	}

	delivered, err := p.messages.MarkDelivered(ctx, msg.ID)
	if err != nil {
		// The recipient saw the emit; the flag catches up via the flush path.
		log.Printf("delivery: mark delivered failed for message %s: %v", msg.ID, err)
		return msg
	}
	observability.IncMessageDelivered("fanout")
	return delivered
}

// MarkRead stamps the message read exactly once and notifies the sender's
// active sessions. Reading an already-read message returns the current state.
func (p *Pipeline) MarkRead(ctx context.Context, messageID string, readerID int64) (models.Message, error) {
	msg, err := p.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	if msg.RecipientID != nil {
		if *msg.RecipientID != readerID {
			return models.Message{}, apperrors.ErrMessageNotFound
		}
	} else {
		member, err := p.conversations.IsParticipant(ctx, msg.ConversationID, readerID)
		if err != nil {
			return models.Message{}, err
		}
		if !member {
			return models.Message{}, apperrors.ErrMessageNotFound
		}
	}

	if msg.IsRead {
		return msg, nil
	}

	read, err := p.messages.MarkRead(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	if sessions := p.sessions.SessionsOf(ctx, msg.SenderID); len(sessions) > 0 {
		p.emitter.SendToSessions(sessions, models.Event{
			Type:       models.EventMessageRead,
			MessageID:  read.ID,
			FromUserID: readerID,
			ReadAt:     read.ReadAt,
		})
	}
	return read, nil
}

// MarkDelivered stamps the delivered flag; already-delivered is a no-op.
func (p *Pipeline) MarkDelivered(ctx context.Context, messageID string) (models.Message, error) {
	return p.messages.MarkDelivered(ctx, messageID)
}
