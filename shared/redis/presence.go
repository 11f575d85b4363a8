package redis

import (
	"context"
	"time"
)

const presenceKeyPrefix = "zapline:online:"

// Presence records which users currently hold at least one live socket.
// A per-user counter with a TTL keeps entries from leaking when a process
// dies without running its disconnect cleanup.
type Presence struct {
	client *Client
	ttl    time.Duration
}

// NewPresence creates a presence tracker with the given entry TTL
func NewPresence(client *Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Presence{client: client, ttl: ttl}
}

// Online records one more live connection for the user
func (p *Presence) Online(ctx context.Context, userID string) error {
	key := presenceKeyPrefix + userID
	if err := p.client.rdb.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return p.client.rdb.Expire(ctx, key, p.ttl).Err()
}

// Offline records one closed connection; the key is removed once the last
// connection for the user is gone
func (p *Presence) Offline(ctx context.Context, userID string) error {
	key := presenceKeyPrefix + userID
	remaining, err := p.client.rdb.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return p.client.rdb.Del(ctx, key).Err()
	}
	return nil
}

// IsOnline reports whether the user has any live connection
func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.rdb.Exists(ctx, presenceKeyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
