package ws

import (
	"context"
	"encoding/json"
	"errors"

	"zapline/backend/internal/models"
	"zapline/backend/internal/service"
	"zapline/backend/pkg/logger"
)

// MessageLog durably appends chat messages.
type MessageLog interface {
	Append(ctx context.Context, conversationID, senderID, recipientID, text string) (*models.Message, error)
}

// ConversationDirectory answers participant questions about conversations.
type ConversationDirectory interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	Participants(ctx context.Context, conversationID string) ([]string, error)
}

// NameDirectory resolves display names.
type NameDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Relay routes inbound socket events: join requests against the
// participant registry, and messages through the durable log before any
// broadcast. A message that cannot be stored is never delivered.
type Relay struct {
	hub           *Hub
	messages      MessageLog
	conversations ConversationDirectory
	metrics       *Metrics
	log           *logger.Logger
}

func NewRelay(hub *Hub, messages MessageLog, conversations ConversationDirectory, metrics *Metrics, log *logger.Logger) *Relay {
	return &Relay{
		hub:           hub,
		messages:      messages,
		conversations: conversations,
		metrics:       metrics,
		log:           log,
	}
}

// Handle dispatches one inbound frame from a client.
func (r *Relay) Handle(client *Client, payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		r.reject(client, "INVALID_ARGUMENT", "malformed event")
		return
	}

	switch event.Type {
	case EventJoin:
		r.handleJoin(client, &event)
	case EventMessage:
		r.handleSend(client, &event)
	default:
		r.reject(client, "INVALID_ARGUMENT", "unknown event type")
	}
}

func (r *Relay) handleJoin(client *Client, event *Event) {
	if event.ConversationID == "" {
		r.reject(client, "INVALID_ARGUMENT", "conversation_id is required")
		return
	}

	ctx := context.Background()
	ok, err := r.conversations.IsParticipant(ctx, event.ConversationID, client.UserID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			r.reject(client, "NOT_FOUND", "conversation not found")
		} else {
			r.log.LogError(err, "join lookup failed", "conversation_id", event.ConversationID)
			r.reject(client, "PERSISTENCE_ERROR", "conversation lookup failed")
		}
		return
	}
	if !ok {
		r.reject(client, "UNAUTHORIZED", "not a participant of this conversation")
		return
	}

	r.hub.Join(client, event.ConversationID)
	r.log.Info("client joined room", "user_id", client.UserID, "conversation_id", event.ConversationID)
}

func (r *Relay) handleSend(client *Client, event *Event) {
	if event.ConversationID == "" {
		r.reject(client, "INVALID_ARGUMENT", "conversation_id is required")
		return
	}

	ctx := context.Background()
	participants, err := r.conversations.Participants(ctx, event.ConversationID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			r.reject(client, "NOT_FOUND", "conversation not found")
		} else {
			r.log.LogError(err, "send lookup failed", "conversation_id", event.ConversationID)
			r.reject(client, "PERSISTENCE_ERROR", "conversation lookup failed")
		}
		return
	}

	sender := false
	recipient := event.To
	for _, id := range participants {
		if id == client.UserID {
			sender = true
		} else if recipient == "" {
			recipient = id
		}
	}
	if !sender {
		r.reject(client, "UNAUTHORIZED", "not a participant of this conversation")
		return
	}
	if recipient == "" {
		// Notes-to-self conversation
		recipient = client.UserID
	}

	message, err := r.messages.Append(ctx, event.ConversationID, client.UserID, recipient, event.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLarge):
			r.reject(client, "INVALID_ARGUMENT", err.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			r.reject(client, "PERSISTENCE_ERROR", "message could not be stored")
		default:
			r.log.LogError(err, "message append failed", "conversation_id", event.ConversationID)
			r.reject(client, "PERSISTENCE_ERROR", "message could not be stored")
		}
		return
	}

	r.hub.BroadcastRoom(event.ConversationID, MessageEvent{
		Type:           EventMessage,
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Sender:         message.SenderID,
		SenderName:     client.UserName,
		Text:           message.Text,
		Seq:            message.Seq,
		CreatedAt:      message.CreatedAt,
	})
	r.hub.NotifyUsers(participants, ActivityEvent{
		Type:           EventActivity,
		ConversationID: message.ConversationID,
	})
	r.metrics.MessageRelayed()
}

func (r *Relay) reject(client *Client, code, message string) {
	r.metrics.RelayFailed(code)
	r.hub.SendTo(client, ErrorEvent{Type: EventError, Code: code, Message: message})
}
