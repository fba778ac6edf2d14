package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/directory"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
)

// ConversationHandler exposes the conversation directory over REST.
type ConversationHandler struct {
	directory *directory.Directory
	users     repositories.UserRepository
	audit     *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(dir *directory.Directory, users repositories.UserRepository, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{directory: dir, users: users, audit: audit}
}

// List returns the caller's conversations, optionally filtered by type.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetInt64("userID")

	var convType *models.ConversationType
	switch c.Query("type") {
	case "":
	case string(models.ConversationDirect):
		t := models.ConversationDirect
		convType = &t
	case string(models.ConversationGroup):
		t := models.ConversationGroup
		convType = &t
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation type"})
		return
	}

	convs, err := h.directory.ListForUser(c.Request.Context(), userID, convType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// StartDirect creates or returns the direct conversation with another user.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	conv, err := h.directory.FindOrCreateDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// CreateGroup creates a group conversation with the caller as ADMIN.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		MemberIDs   []int64 `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	conv, err := h.directory.CreateGroup(c.Request.Context(), userID, req.MemberIDs, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("group %s created with %d members", conv.ID, len(req.MemberIDs)+1),
		observability.RequestIDFromRequest(c.Request), &userID)
	c.JSON(http.StatusCreated, conv)
}

// Participants returns the membership of a conversation the caller belongs to,
// each member carrying its public presence projection.
func (h *ConversationHandler) Participants(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetInt64("userID")

	member, err := h.directory.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	participants, err := h.directory.ParticipantsOf(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]int64, 0, len(participants))
	for _, part := range participants {
		ids = append(ids, part.UserID)
	}
	users, err := h.users.GetUsers(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	presence := make(map[int64]models.PublicUser, len(users))
	for _, user := range users {
		presence[user.ID] = user.Public()
	}

	type participantView struct {
		models.Participant
		User *models.PublicUser `json:"user,omitempty"`
	}
	views := make([]participantView, 0, len(participants))
	for _, part := range participants {
		view := participantView{Participant: part}
		if pub, ok := presence[part.UserID]; ok {
			view.User = &pub
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"participants": views})
}

// AddParticipant joins a user to a group conversation.
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	callerID := c.GetInt64("userID")

	member, err := h.directory.IsParticipant(c.Request.Context(), conversationID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.AddParticipant(c.Request.Context(), conversationID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("user %d joined conversation %s", req.UserID, conversationID),
		observability.RequestIDFromRequest(c.Request), &callerID)
	c.Status(http.StatusNoContent)
}

// RemoveParticipant removes a user from a group conversation. Members can
// remove themselves; removing someone else requires membership too.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	callerID := c.GetInt64("userID")

	targetID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	member, err := h.directory.IsParticipant(c.Request.Context(), conversationID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	if err := h.directory.RemoveParticipant(c.Request.Context(), conversationID, targetID); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("user %d left conversation %s", targetID, conversationID),
		observability.RequestIDFromRequest(c.Request), &callerID)
	c.Status(http.StatusNoContent)
}
