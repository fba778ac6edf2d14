package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/models"
)

// MessageRepository abstracts message persistence and the monotone
// delivered/read state transitions.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID string, senderID int64, recipientID *int64, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	PendingForUser(ctx context.Context, userID int64) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID string) (models.Message, error)
	MarkRead(ctx context.Context, messageID string) (models.Message, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, content, type, is_delivered, delivered_at, is_read, read_at, created_at`

// CreateMessage persists a message with delivery pending.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID string, senderID int64, recipientID *int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, recipient_id, content, type)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		uuid.NewString(), conversationID, senderID, recipientID, content, models.MessageText).StructScan(&msg)
	return msg, err
}

// GetMessage fetches a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, apperrors.ErrMessageNotFound
	}
	return msg, err
}

// ListForConversation returns the conversation history in send order.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// PendingForUser returns the user's undelivered messages, oldest first, for
// the reconnect flush.
func (r *MessageRepo) PendingForUser(ctx context.Context, userID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE recipient_id=$1 AND is_delivered = FALSE ORDER BY created_at ASC`, userID)
	return msgs, err
}

// MarkDelivered sets the delivered flag once. Marking an already-delivered
// message is a no-op that returns the current row.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET is_delivered = TRUE, delivered_at = NOW()
        WHERE id=$1 AND is_delivered = FALSE RETURNING `+messageColumns, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetMessage(ctx, messageID)
	}
	return msg, err
}

// MarkRead sets the read flag once. Marking an already-read message is a
// no-op that returns the current row.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET is_read = TRUE, read_at = NOW()
        WHERE id=$1 AND is_read = FALSE RETURNING `+messageColumns, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetMessage(ctx, messageID)
	}
	return msg, err
}
