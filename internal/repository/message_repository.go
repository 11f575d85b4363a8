package repository

import (
	"context"
	"time"

	"zapline/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository is the store contract for the durable message log
type MessageRepository interface {
	// Append persists the message and assigns the next sequence number
	// for its conversation. The message is mutated in place with the
	// assigned Seq, ID and CreatedAt.
	Append(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// LatestPerConversation returns the newest message of each listed
	// conversation, keyed by conversation ID. Conversations with no
	// messages are absent from the result.
	LatestPerConversation(ctx context.Context, conversationIDs []string) (map[string]models.Message, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Append(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the conversation row so concurrent appends serialize and
		// sequence numbers stay gapless per conversation.
		var conversation models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conversation, "id = ?", message.ConversationID).Error; err != nil {
			return err
		}

		var maxSeq int64
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ?", message.ConversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		message.Seq = maxSeq + 1
		message.CreatedAt = time.Now().UTC()
		return tx.Create(message).Error
	})
}

func (r *GormMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) LatestPerConversation(ctx context.Context, conversationIDs []string) (map[string]models.Message, error) {
	latest := make(map[string]models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return latest, nil
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).Raw(`
		SELECT * FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY conversation_id ORDER BY seq DESC
			) AS rn
			FROM messages
			WHERE conversation_id IN ?
		) ranked
		WHERE rn = 1`, conversationIDs).
		Scan(&messages).Error
	if err != nil {
		return nil, err
	}

	for _, m := range messages {
		latest[m.ConversationID] = m
	}
	return latest, nil
}
