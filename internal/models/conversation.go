package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a persistent 2-party channel. The participant pair is
// stored in canonical order (lexicographically smaller id first) so that a
// single composite unique index enforces at most one conversation per
// unordered pair. A conversation is never mutated or deleted after creation.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserA     string    `gorm:"type:uuid;uniqueIndex:idx_conversations_pair" json:"user_a"`
	UserB     string    `gorm:"type:uuid;uniqueIndex:idx_conversations_pair" json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePair returns the two ids in canonical storage order
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// BeforeCreate is a GORM hook assigning an id and normalizing the pair
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UserA, c.UserB = NormalizePair(c.UserA, c.UserB)
	return nil
}

// HasParticipant reports whether the user is one of the two participants
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// Other returns the participant that is not the given user. For a
// notes-to-self conversation both participants are the same user.
func (c *Conversation) Other(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}
