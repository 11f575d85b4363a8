package service

import (
	"context"
	"errors"

	"zapline/backend/internal/models"
	"zapline/backend/internal/repository"
	"zapline/backend/pkg/logger"

	"gorm.io/gorm"
)

// ConversationService owns the pairwise conversation registry. A pair of
// users has at most one conversation regardless of who initiated it.
type ConversationService struct {
	conversations repository.ConversationRepository
	directory     *Directory
	log           *logger.Logger
}

func NewConversationService(conversations repository.ConversationRepository, directory *Directory, log *logger.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, directory: directory, log: log}
}

// GetOrCreate returns the conversation between the two users, creating it
// when none exists. Both users must be registered accounts. Concurrent
// creation for the same pair converges on a single winner through the
// unique pair index.
func (s *ConversationService) GetOrCreate(ctx context.Context, userID, peerID string) (*models.Conversation, error) {
	for _, id := range []string{userID, peerID} {
		exists, err := s.directory.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrUserNotFound
		}
	}

	conversation, err := s.conversations.GetByPair(ctx, userID, peerID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.Conversation{UserA: userID, UserB: peerID}
	if err := s.conversations.Create(ctx, created); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another request created the pair first; hand back its row.
			return s.conversations.GetByPair(ctx, userID, peerID)
		}
		return nil, err
	}

	s.log.Info("conversation created", "conversation_id", created.ID)
	return created, nil
}

func (s *ConversationService) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

// Participants returns the two user IDs of a conversation.
func (s *ConversationService) Participants(ctx context.Context, conversationID string) ([]string, error) {
	conversation, err := s.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return []string{conversation.UserA, conversation.UserB}, nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	conversation, err := s.GetByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return conversation.HasParticipant(userID), nil
}

// EnsureParticipant fails with ErrNotParticipant unless the user belongs
// to the conversation.
func (s *ConversationService) EnsureParticipant(ctx context.Context, conversationID, userID string) error {
	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}
