package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"zapline/backend/internal/models"
	"zapline/backend/internal/repository"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/resilience"
)

// MessageService appends to and reads from the durable message log. Store
// access runs behind a circuit breaker and a deadline so a failing
// database surfaces as ErrStoreUnavailable instead of hanging callers.
type MessageService struct {
	messages     repository.MessageRepository
	breaker      *resilience.CircuitBreaker
	storeTimeout time.Duration
	maxBytes     int
	log          *logger.Logger
}

func NewMessageService(messages repository.MessageRepository, breaker *resilience.CircuitBreaker, storeTimeout time.Duration, maxBytes int, log *logger.Logger) *MessageService {
	return &MessageService{
		messages:     messages,
		breaker:      breaker,
		storeTimeout: storeTimeout,
		maxBytes:     maxBytes,
		log:          log,
	}
}

// Append validates and durably persists a message. The returned message
// carries the server-assigned ID, Seq and CreatedAt.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID, recipientID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if s.maxBytes > 0 && len(text) > s.maxBytes {
		return nil, ErrMessageTooLarge
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Text:           text,
	}

	err := s.withStore(ctx, func(ctx context.Context) error {
		return s.messages.Append(ctx, message)
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// History returns all messages of a conversation in sequence order.
func (s *MessageService) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.withStore(ctx, func(ctx context.Context) error {
		var err error
		messages, err = s.messages.ListByConversation(ctx, conversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MessageService) withStore(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.breaker.Execute(func() error {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Error("message store unavailable", "error", err)
			return ErrStoreUnavailable
		}
		return err
	}
	return nil
}
