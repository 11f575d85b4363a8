package service

import (
	"context"
	"sync"
	"time"

	"zapline/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == user.Phone {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	hashed, err := models.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = hashed
	user.CreatedAt = time.Now().UTC()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	createErr     error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*models.Conversation)}
}

func (f *fakeConversationRepo) Create(_ context.Context, conversation *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	lo, hi := models.NormalizePair(conversation.UserA, conversation.UserB)
	for _, c := range f.conversations {
		if c.UserA == lo && c.UserB == hi {
			return gorm.ErrDuplicatedKey
		}
	}
	conversation.UserA, conversation.UserB = lo, hi
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	copied := *conversation
	f.conversations[conversation.ID] = &copied
	return nil
}

func (f *fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeConversationRepo) GetByPair(_ context.Context, userA, userB string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lo, hi := models.NormalizePair(userA, userB)
	for _, c := range f.conversations {
		if c.UserA == lo && c.UserB == hi {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationRepo) ListForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[string][]models.Message
	appendErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string][]models.Message)}
}

func (f *fakeMessageRepo) Append(_ context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	message.ID = uuid.New().String()
	message.Seq = int64(len(f.messages[message.ConversationID])) + 1
	message.CreatedAt = time.Now().UTC()
	f.messages[message.ConversationID] = append(f.messages[message.ConversationID], *message)
	return nil
}

func (f *fakeMessageRepo) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeMessageRepo) LatestPerConversation(_ context.Context, conversationIDs []string) (map[string]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest := make(map[string]models.Message)
	for _, id := range conversationIDs {
		if msgs := f.messages[id]; len(msgs) > 0 {
			latest[id] = msgs[len(msgs)-1]
		}
	}
	return latest, nil
}
