package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/models"
)

const uniqueViolation = "23505"

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	CreateOrGetDirect(ctx context.Context, userA, userB int64) (models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID int64, memberIDs []int64, name, description string) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int64, convType *models.ConversationType) ([]models.Conversation, error)
	ParticipantsOf(ctx context.Context, conversationID string) ([]models.Participant, error)
	IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error)
	AddParticipant(ctx context.Context, conversationID string, userID int64, role models.Role) error
	RemoveParticipant(ctx context.Context, conversationID string, userID int64) error
	SetRole(ctx context.Context, conversationID string, userID int64, role models.Role) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// directKey identifies a direct conversation by its unordered user pair.
func directKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

const conversationColumns = `id, type, name, description, created_at`

// CreateOrGetDirect returns the unique direct conversation for the pair,
// creating it if absent. The direct_key unique index makes concurrent creates
// converge on a single row.
func (r *ConversationRepo) CreateOrGetDirect(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	key := directKey(userA, userB)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx, `INSERT INTO conversations (id, type, direct_key) VALUES ($1, $2, $3)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING `+conversationColumns, uuid.NewString(), models.ConversationDirect, key).StructScan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race; a concurrent caller created the row.
		tx.Rollback()
		err = r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, key)
		return conv, err
	}
	if err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range []int64{userA, userB} {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, role) VALUES ($1, $2, $3)`,
			conv.ID, userID, models.RoleMember); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// CreateGroup creates a group conversation and its membership atomically. The
// creator gets ADMIN, everyone else MEMBER. memberIDs must already exclude the
// creator.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int64, memberIDs []int64, name, description string) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx, `INSERT INTO conversations (id, type, name, description) VALUES ($1, $2, $3, $4)
        RETURNING `+conversationColumns, uuid.NewString(), models.ConversationGroup, name, description).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, role) VALUES ($1, $2, $3)`,
		conv.ID, creatorID, models.RoleAdmin); err != nil {
		return models.Conversation{}, err
	}
	for _, userID := range memberIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, role) VALUES ($1, $2, $3)`,
			conv.ID, userID, models.RoleMember); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, apperrors.ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations, most recent first, optionally
// filtered by type.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, convType *models.ConversationType) ([]models.Conversation, error) {
	query := `SELECT c.id, c.type, c.name, c.description, c.created_at FROM conversations c
        INNER JOIN conversation_participants p ON p.conversation_id = c.id
        WHERE p.user_id=$1`
	args := []interface{}{userID}
	if convType != nil {
		query += ` AND c.type=$2`
		args = append(args, *convType)
	}
	query += ` ORDER BY c.created_at DESC`

	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, query, args...)
	return convs, err
}

// ParticipantsOf returns the conversation's membership.
func (r *ConversationRepo) ParticipantsOf(ctx context.Context, conversationID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants, `SELECT conversation_id, user_id, role, joined_at
        FROM conversation_participants WHERE conversation_id=$1 ORDER BY joined_at ASC`, conversationID)
	return participants, err
}

// IsParticipant checks membership.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// AddParticipant inserts a membership row; duplicates surface as a conflict.
func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID string, userID int64, role models.Role) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, role) VALUES ($1, $2, $3)`,
		conversationID, userID, role)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.ErrAlreadyJoined
	}
	return err
}

// RemoveParticipant deletes a membership row.
func (r *ConversationRepo) RemoveParticipant(ctx context.Context, conversationID string, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrNotAMember
	}
	return nil
}

// SetRole updates a participant's role.
func (r *ConversationRepo) SetRole(ctx context.Context, conversationID string, userID int64, role models.Role) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET role=$3 WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID, role)
	return err
}
