package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/delivery"
	"realtime-service/internal/directory"
	"realtime-service/internal/repositories"
)

// MessageHandler exposes message history and the send/read paths over REST.
// The websocket gateway drives the same pipeline for connected clients.
type MessageHandler struct {
	pipeline  *delivery.Pipeline
	messages  repositories.MessageRepository
	directory *directory.Directory
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(pipeline *delivery.Pipeline, messages repositories.MessageRepository, dir *directory.Directory) *MessageHandler {
	return &MessageHandler{
		pipeline:  pipeline,
		messages:  messages,
		directory: dir,
	}
}

// List returns the conversation's messages in chronological order.
func (h *MessageHandler) List(c *gin.Context) {
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

	msgs, err := h.messages.ListForConversation(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Post sends a message into the conversation through the delivery pipeline.
func (h *MessageHandler) Post(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetInt64("userID")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.pipeline.Send(c.Request.Context(), conversationID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead stamps a message read on behalf of the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID := c.Param("message_id")
	userID := c.GetInt64("userID")

	msg, err := h.pipeline.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
