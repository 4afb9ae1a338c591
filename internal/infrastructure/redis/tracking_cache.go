package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/vendabots/fleet-runtime/internal/domain"
)

const trackingTTL = 30 * 24 * time.Hour

// TrackingCache holds click-to-conversion attribution payloads under
// several indices so the funnel can rebuild a Purchase event from whatever
// identifier survived the journey.
type TrackingCache struct {
	client  *redis.Client
	tokenID func() string
}

func NewTrackingCache(client *redis.Client) (*TrackingCache, error) {
	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, err
	}
	return &TrackingCache{client: client, tokenID: gen}, nil
}

func trackingKey(token string) string     { return "tracking:" + token }
func chatKey(chatID int64) string         { return fmt.Sprintf("tracking:chat:%d", chatID) }
func fbclidKey(fbclid string) string      { return "tracking:fbclid:" + fbclid }
func lastTokenKey(chatID int64) string    { return fmt.Sprintf("tracking:last_token:user:%d", chatID) }
func shortHashKey(hash string) string     { return "tracking_hash:" + hash }
func paymentKey(externalID string) string { return "tracking:payment:" + externalID }

func (t *TrackingCache) GenerateToken(ctx context.Context, botID uint, chatID int64, fbclid string) (string, error) {
	token := t.tokenID()
	payload := &domain.TrackingPayload{
		Token:  token,
		BotID:  botID,
		ChatID: chatID,
		Fbclid: fbclid,
	}
	if err := t.Save(ctx, payload); err != nil {
		return "", err
	}
	return token, nil
}

// Save is an idempotent upsert that refreshes every index.
func (t *TrackingCache) Save(ctx context.Context, payload *domain.TrackingPayload) error {
	if payload.Token == "" {
		return errors.New("tracking payload without token")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	pipe := t.client.Pipeline()
	pipe.Set(ctx, trackingKey(payload.Token), raw, trackingTTL)
	if payload.ChatID != 0 {
		pipe.Set(ctx, chatKey(payload.ChatID), raw, trackingTTL)
		pipe.Set(ctx, lastTokenKey(payload.ChatID), payload.Token, trackingTTL)
	}
	if payload.Fbclid != "" {
		pipe.Set(ctx, fbclidKey(payload.Fbclid), raw, trackingTTL)
		pipe.Set(ctx, shortHashKey(ShortHash(payload.Fbclid)), payload.Fbclid, trackingTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (t *TrackingCache) SaveForPayment(ctx context.Context, externalID string, payload *domain.TrackingPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, paymentKey(externalID), raw, trackingTTL).Err()
}

func (t *TrackingCache) RecoverForPayment(ctx context.Context, externalID string) (*domain.TrackingPayload, error) {
	return t.get(ctx, paymentKey(externalID))
}

func (t *TrackingCache) Recover(ctx context.Context, token string) (*domain.TrackingPayload, error) {
	return t.get(ctx, trackingKey(token))
}

func (t *TrackingCache) RecoverByChat(ctx context.Context, chatID int64) (*domain.TrackingPayload, error) {
	return t.get(ctx, chatKey(chatID))
}

func (t *TrackingCache) RecoverByFbclid(ctx context.Context, fbclid string) (*domain.TrackingPayload, error) {
	return t.get(ctx, fbclidKey(fbclid))
}

func (t *TrackingCache) RecoverByLastToken(ctx context.Context, chatID int64) (*domain.TrackingPayload, error) {
	token, err := t.client.Get(ctx, lastTokenKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t.Recover(ctx, token)
}

// ResolveShortHash maps the truncated fbclid hash from a deep-link payload
// back to the full click id.
func (t *TrackingCache) ResolveShortHash(ctx context.Context, hash string) (string, error) {
	fbclid, err := t.client.Get(ctx, shortHashKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return fbclid, err
}

func (t *TrackingCache) get(ctx context.Context, key string) (*domain.TrackingPayload, error) {
	raw, err := t.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload domain.TrackingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
