package ws

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"zapline/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

type fakePresence struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (f *fakePresence) Online(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = append(f.online, userID)
	return nil
}

func (f *fakePresence) Offline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, userID)
	return nil
}

func newTestClient(hub *Hub, userID, userName string, buffer int) *Client {
	return NewClient(hub, nil, userID, userName, buffer, testLogger())
}

func drainEvent(t *testing.T, client *Client, out any) {
	t.Helper()
	select {
	case payload := <-client.send:
		require.NoError(t, json.Unmarshal(payload, out))
	default:
		t.Fatal("no event queued for client")
	}
}

func assertNoEvent(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected event queued: %s", payload)
	default:
	}
}

func TestRegisterUnregisterTracksPresence(t *testing.T) {
	presence := &fakePresence{}
	hub := NewHub(presence, nil, testLogger())

	first := newTestClient(hub, "alice", "Alice", 4)
	second := newTestClient(hub, "alice", "Alice", 4)
	hub.Register(first)
	hub.Register(second)

	// Presence flips once per user, not per connection.
	assert.Equal(t, []string{"alice"}, presence.online)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(first)
	assert.Empty(t, presence.offline)
	hub.Unregister(second)
	assert.Equal(t, []string{"alice"}, presence.offline)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestBroadcastRoomReachesOnlyJoined(t *testing.T) {
	hub := NewHub(nil, nil, testLogger())

	joined := newTestClient(hub, "alice", "Alice", 4)
	outsider := newTestClient(hub, "bob", "Bob", 4)
	hub.Register(joined)
	hub.Register(outsider)
	hub.Join(joined, "conv-1")

	hub.BroadcastRoom("conv-1", ActivityEvent{Type: EventActivity, ConversationID: "conv-1"})

	var got ActivityEvent
	drainEvent(t, joined, &got)
	assert.Equal(t, "conv-1", got.ConversationID)
	assertNoEvent(t, outsider)
}

func TestNotifyUsersIgnoresRooms(t *testing.T) {
	hub := NewHub(nil, nil, testLogger())

	target := newTestClient(hub, "alice", "Alice", 4)
	other := newTestClient(hub, "bob", "Bob", 4)
	hub.Register(target)
	hub.Register(other)

	hub.NotifyUsers([]string{"alice"}, ActivityEvent{Type: EventActivity, ConversationID: "conv-1"})

	var got ActivityEvent
	drainEvent(t, target, &got)
	assert.Equal(t, EventActivity, got.Type)
	assertNoEvent(t, other)
}

func TestNotifyUsersDeduplicatesSelfPair(t *testing.T) {
	hub := NewHub(nil, nil, testLogger())

	client := newTestClient(hub, "alice", "Alice", 4)
	hub.Register(client)

	hub.NotifyUsers([]string{"alice", "alice"}, ActivityEvent{Type: EventActivity, ConversationID: "conv-1"})

	var got ActivityEvent
	drainEvent(t, client, &got)
	assertNoEvent(t, client)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil, nil, testLogger())

	slow := newTestClient(hub, "alice", "Alice", 1)
	hub.Register(slow)
	hub.Join(slow, "conv-1")

	hub.BroadcastRoom("conv-1", ActivityEvent{Type: EventActivity, ConversationID: "conv-1"})
	hub.BroadcastRoom("conv-1", ActivityEvent{Type: EventActivity, ConversationID: "conv-1"})

	assert.Equal(t, 0, hub.ClientCount())
}

func TestUnregisterCleansRooms(t *testing.T) {
	hub := NewHub(nil, nil, testLogger())

	client := newTestClient(hub, "alice", "Alice", 4)
	hub.Register(client)
	hub.Join(client, "conv-1")
	hub.Unregister(client)

	// Unregister twice is harmless.
	hub.Unregister(client)

	hub.BroadcastRoom("conv-1", ActivityEvent{Type: EventActivity, ConversationID: "conv-1"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestShutdownDisconnectsAll(t *testing.T) {
	hub := NewHub(nil, nil, testLogger())

	for _, id := range []string{"alice", "bob", "carol"} {
		hub.Register(newTestClient(hub, id, id, 4))
	}
	require.Equal(t, 3, hub.ClientCount())

	hub.Shutdown()
	assert.Equal(t, 0, hub.ClientCount())
}
