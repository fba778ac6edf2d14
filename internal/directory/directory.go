package directory

import (
	"context"
	"log"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// Directory owns conversation creation, membership and the uniqueness
// invariants over them. Rooms are a derived view of this membership; the
// transport layer subscribes connections by querying it, never by trusting
// socket-library state.
type Directory struct {
	conversations repositories.ConversationRepository
}

// New constructs a Directory.
func New(conversations repositories.ConversationRepository) *Directory {
	return &Directory{conversations: conversations}
}

// FindOrCreateDirect resolves the single direct conversation for the pair,
// creating it when absent. Concurrent calls for the same pair converge on one
// conversation id.
func (d *Directory) FindOrCreateDirect(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, apperrors.ErrSelfConversation
	}
	return d.conversations.CreateOrGetDirect(ctx, userA, userB)
}

// CreateGroup creates a group conversation. The creator is deduplicated out of
// the member list and assigned ADMIN; everyone else starts as MEMBER.
func (d *Directory) CreateGroup(ctx context.Context, creatorID int64, memberIDs []int64, name, description string) (models.Conversation, error) {
	seen := map[int64]struct{}{creatorID: {}}
	members := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	if len(members)+1 < 2 {
		return models.Conversation{}, apperrors.ErrTooFewMembers
	}

	return d.conversations.CreateGroup(ctx, creatorID, members, name, description)
}

// AddParticipant joins a user to a group conversation as MEMBER.
func (d *Directory) AddParticipant(ctx context.Context, conversationID string, userID int64) error {
	conv, err := d.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type != models.ConversationGroup {
		return apperrors.ErrNotGroup
	}
	return d.conversations.AddParticipant(ctx, conversationID, userID, models.RoleMember)
}

// RemoveParticipant removes a user from a group conversation. If the removed
// user was the last ADMIN, the longest-standing remaining member is promoted
// so the group is never left without an admin.
func (d *Directory) RemoveParticipant(ctx context.Context, conversationID string, userID int64) error {
	conv, err := d.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type != models.ConversationGroup {
		return apperrors.ErrNotGroup
	}

	participants, err := d.conversations.ParticipantsOf(ctx, conversationID)
	if err != nil {
		return err
	}

	var removed *models.Participant
	adminsLeft := 0
	var successor *models.Participant
	for i := range participants {
		p := &participants[i]
		if p.UserID == userID {
			removed = p
			continue
		}
		if p.Role == models.RoleAdmin {
			adminsLeft++
		}
		if successor == nil {
			// ParticipantsOf orders by join time, so the first remaining
			// participant is the longest-standing one.
			successor = p
		}
	}
	if removed == nil {
		return apperrors.ErrNotAMember
	}

	if err := d.conversations.RemoveParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	if removed.Role == models.RoleAdmin && adminsLeft == 0 && successor != nil {
		if err := d.conversations.SetRole(ctx, conversationID, successor.UserID, models.RoleAdmin); err != nil {
			log.Printf("directory: admin succession failed for conversation %s: %v", conversationID, err)
		}
	}
	return nil
}

// ListForUser returns the user's conversations, most recent first, optionally
// filtered by type.
func (d *Directory) ListForUser(ctx context.Context, userID int64, convType *models.ConversationType) ([]models.Conversation, error) {
	return d.conversations.ListForUser(ctx, userID, convType)
}

// ParticipantsOf returns the conversation's membership.
func (d *Directory) ParticipantsOf(ctx context.Context, conversationID string) ([]models.Participant, error) {
	return d.conversations.ParticipantsOf(ctx, conversationID)
}

// IsParticipant checks membership.
func (d *Directory) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	return d.conversations.IsParticipant(ctx, conversationID, userID)
}
