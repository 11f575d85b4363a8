package api

import (
	stderrors "errors"
	"net/http"

	"zapline/backend/internal/service"
	"zapline/backend/pkg/errors"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ConversationHandler exposes the conversation registry, inbox and
// message history.
type ConversationHandler struct {
	conversations *service.ConversationService
	inbox         *service.InboxService
	messages      *service.MessageService
	directory     *service.Directory
	log           *logger.Logger
}

func NewConversationHandler(
	conversations *service.ConversationService,
	inbox *service.InboxService,
	messages *service.MessageService,
	directory *service.Directory,
	log *logger.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		inbox:         inbox,
		messages:      messages,
		directory:     directory,
		log:           log,
	}
}

type createConversationRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

// CreateOrGet handles POST /api/v1/conversations. The same pair always
// maps to the same conversation, whichever side asks.
func (h *ConversationHandler) CreateOrGet(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidArgumentError("peer_id is required"))
		return
	}

	conversation, err := h.conversations.GetOrCreate(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrUserNotFound):
			c.Error(errors.NewNotFoundError("peer not found"))
		default:
			c.Error(errors.NewPersistenceError("could not resolve conversation"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conversation.ID})
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	entries, err := h.inbox.List(c.Request.Context(), userID)
	if err != nil {
		c.Error(errors.NewPersistenceError("could not load inbox"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": entries})
}

type historyMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	SenderName     string `json:"sender_name"`
	Recipient      string `json:"recipient"`
	Text           string `json:"text"`
	Seq            int64  `json:"seq"`
	CreatedAt      string `json:"created_at"`
}

// History handles GET /api/v1/conversations/:id/messages. Only
// participants may read a conversation's history.
func (h *ConversationHandler) History(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	conversationID := c.Param("id")
	if err := h.conversations.EnsureParticipant(c.Request.Context(), conversationID, userID); err != nil {
		switch {
		case stderrors.Is(err, service.ErrConversationNotFound):
			c.Error(errors.NewNotFoundError("conversation not found"))
		case stderrors.Is(err, service.ErrNotParticipant):
			c.Error(errors.NewUnauthorizedError("not a participant of this conversation"))
		default:
			c.Error(errors.NewPersistenceError("could not load conversation"))
		}
		return
	}

	messages, err := h.messages.History(c.Request.Context(), conversationID)
	if err != nil {
		c.Error(errors.NewPersistenceError("could not load messages"))
		return
	}

	// Two participants at most, so names resolve from a tiny local set.
	names := make(map[string]string)
	out := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		name, ok := names[m.SenderID]
		if !ok {
			name, err = h.directory.DisplayName(c.Request.Context(), m.SenderID)
			if err != nil {
				name = ""
			}
			names[m.SenderID] = name
		}
		out = append(out, historyMessage{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         m.SenderID,
			SenderName:     name,
			Recipient:      m.RecipientID,
			Text:           m.Text,
			Seq:            m.Seq,
			CreatedAt:      m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": out})
}
