package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is an immutable, append-only record owned by the message log.
// CreatedAt is assigned server-side at persistence time. Seq is a
// per-conversation monotonic sequence assigned inside the append
// transaction; it breaks timestamp ties deterministically and gives history
// a total order even when wall clocks skew.
type Message struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ConversationID string    `gorm:"type:uuid;index;uniqueIndex:idx_messages_conversation_seq" json:"conversation_id"`
	SenderID       string    `gorm:"type:uuid" json:"sender_id"`
	RecipientID    string    `gorm:"type:uuid" json:"recipient_id"`
	Text           string    `json:"text"`
	Seq            int64     `gorm:"uniqueIndex:idx_messages_conversation_seq" json:"seq"`
	CreatedAt      time.Time `json:"created_at"`
}

// BeforeCreate is a GORM hook assigning the message id
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
