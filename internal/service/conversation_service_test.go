package service

import (
	"context"
	"testing"

	"zapline/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUsers(t *testing.T, repo *fakeUserRepo, names ...string) []string {
	t.Helper()
	ids := make([]string, len(names))
	for i, name := range names {
		user := &models.User{Name: name, Phone: "1555000" + name, Password: "secret1"}
		require.NoError(t, repo.Create(context.Background(), user))
		ids[i] = user.ID
	}
	return ids
}

func newTestConversationService() (*ConversationService, *fakeUserRepo, *fakeConversationRepo) {
	users := newFakeUserRepo()
	conversations := newFakeConversationRepo()
	directory := NewDirectory(users, nil)
	return NewConversationService(conversations, directory, testLogger()), users, conversations
}

func TestGetOrCreateIsIdempotentAcrossDirections(t *testing.T) {
	svc, users, _ := newTestConversationService()
	ids := seedUsers(t, users, "alice", "bob")
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, ids[0], ids[1])
	require.NoError(t, err)

	second, err := svc.GetOrCreate(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateUnknownPeer(t *testing.T) {
	svc, users, _ := newTestConversationService()
	ids := seedUsers(t, users, "alice")

	_, err := svc.GetOrCreate(context.Background(), ids[0], "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetOrCreateSelfConversation(t *testing.T) {
	svc, users, _ := newTestConversationService()
	ids := seedUsers(t, users, "alice")

	conversation, err := svc.GetOrCreate(context.Background(), ids[0], ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], conversation.UserA)
	assert.Equal(t, ids[0], conversation.UserB)
}

func TestGetOrCreateLosesCreationRace(t *testing.T) {
	svc, users, conversations := newTestConversationService()
	ids := seedUsers(t, users, "alice", "bob")
	ctx := context.Background()

	// The winner's row exists but was inserted after our lookup missed.
	winner := &models.Conversation{UserA: ids[0], UserB: ids[1]}
	require.NoError(t, conversations.Create(ctx, winner))
	conversations.createErr = gorm.ErrDuplicatedKey

	got, err := svc.GetOrCreate(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, winner.ID, got.ID)
}

func TestIsParticipant(t *testing.T) {
	svc, users, _ := newTestConversationService()
	ids := seedUsers(t, users, "alice", "bob", "carol")
	ctx := context.Background()

	conversation, err := svc.GetOrCreate(ctx, ids[0], ids[1])
	require.NoError(t, err)

	ok, err := svc.IsParticipant(ctx, conversation.ID, ids[0])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsParticipant(ctx, conversation.ID, ids[2])
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsParticipant(ctx, "missing", ids[0])
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.NoError(t, svc.EnsureParticipant(ctx, conversation.ID, ids[1]))
	assert.ErrorIs(t, svc.EnsureParticipant(ctx, conversation.ID, ids[2]), ErrNotParticipant)
}
