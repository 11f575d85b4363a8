package service

import (
	"context"
	"sort"
	"time"

	"zapline/backend/internal/repository"
)

// InboxEntry is one conversation in a user's inbox, decorated with the
// peer's name and the latest message, if any.
type InboxEntry struct {
	ConversationID  string     `json:"conversation_id"`
	PeerID          string     `json:"peer_id"`
	PeerName        string     `json:"peer_name"`
	LastMessageText *string    `json:"last_message_text"`
	LastSenderID    *string    `json:"last_sender_id"`
	LastActivity    time.Time  `json:"last_activity"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

// InboxService aggregates a user's conversations into an inbox view
// ordered by most recent activity.
type InboxService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	directory     *Directory
}

func NewInboxService(conversations repository.ConversationRepository, messages repository.MessageRepository, directory *Directory) *InboxService {
	return &InboxService{conversations: conversations, messages: messages, directory: directory}
}

// List returns every conversation the user participates in, newest
// activity first. Conversations without messages fall back to their
// creation time for ordering.
func (s *InboxService) List(ctx context.Context, userID string) ([]InboxEntry, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return []InboxEntry{}, nil
	}

	ids := make([]string, len(conversations))
	for i, c := range conversations {
		ids[i] = c.ID
	}
	latest, err := s.messages.LatestPerConversation(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]InboxEntry, 0, len(conversations))
	for _, c := range conversations {
		peerID := c.Other(userID)
		peerName, err := s.directory.DisplayName(ctx, peerID)
		if err != nil {
			return nil, err
		}

		entry := InboxEntry{
			ConversationID: c.ID,
			PeerID:         peerID,
			PeerName:       peerName,
			LastActivity:   c.CreatedAt,
		}
		if m, ok := latest[c.ID]; ok {
			text := m.Text
			sender := m.SenderID
			created := m.CreatedAt
			entry.LastMessageText = &text
			entry.LastSenderID = &sender
			entry.LastMessageTime = &created
			entry.LastActivity = created
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastActivity.Equal(entries[j].LastActivity) {
			return entries[i].LastActivity.After(entries[j].LastActivity)
		}
		return entries[i].ConversationID < entries[j].ConversationID
	})
	return entries, nil
}
