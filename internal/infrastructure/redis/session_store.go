package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vendabots/fleet-runtime/internal/domain"
)

// Order-bump sessions live in Redis so a restarted worker can pick up a
// half-answered bump sequence. TTL doubles as the GC for abandoned sessions.
const sessionTTL = 30 * time.Minute

type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(chatID int64) string { return fmt.Sprintf("orderbump_%d", chatID) }

func (s *SessionStore) Put(ctx context.Context, sess *domain.BumpSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(sess.ChatID), raw, sessionTTL).Err()
}

func (s *SessionStore) Get(ctx context.Context, chatID int64) (*domain.BumpSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess domain.BumpSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		_ = s.Delete(ctx, chatID)
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, sessionKey(chatID)).Err()
}
