// Package redis implements the distributed coordinator, the tracking cache,
// and the order-bump session store on a shared Redis instance.
package redis

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vendabots/fleet-runtime/internal/config"
)

func NewClient(cfg *config.FleetConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Coordinator serializes cross-worker operations through SET NX leases.
// Release is best-effort; the TTL is the safety net.
type Coordinator struct {
	client *redis.Client
}

func NewCoordinator(client *redis.Client) *Coordinator {
	return &Coordinator{client: client}
}

func (c *Coordinator) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, "1", ttl).Result()
}

func (c *Coordinator) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Coordinator) Heartbeat(ctx context.Context, botID uint, ttl time.Duration) error {
	return c.client.Set(ctx, HeartbeatKey(botID), time.Now().Format(time.RFC3339), ttl).Err()
}

func (c *Coordinator) Alive(ctx context.Context, botID uint) (bool, error) {
	n, err := c.client.Exists(ctx, HeartbeatKey(botID)).Result()
	return n > 0, err
}

func (c *Coordinator) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		c.client.Expire(ctx, key, ttl)
	}
	return n, nil
}

// Lock key conventions. TTLs are fixed by contract; callers must not invent
// their own formats.

func UpdateKey(updateID int64) string { return fmt.Sprintf("update:%d", updateID) }

func StartKey(chatID int64) string { return fmt.Sprintf("start:%d", chatID) }

func StartProcessKey(botID uint, chatID int64) string {
	return fmt.Sprintf("start_process:%d:%d", botID, chatID)
}

func LastStartKey(chatID int64) string { return fmt.Sprintf("last_start:%d", chatID) }

func BotStartKey(botID uint) string { return fmt.Sprintf("start:bot:%d", botID) }

func MsgKey(botID uint, chatID int64, text string) string {
	return fmt.Sprintf("msg:%d:%d:%s", botID, chatID, ShortHash(text))
}

func SendMediaAndTextKey(chatID int64, contentHash string) string {
	return fmt.Sprintf("send_media_and_text:%d:%s", chatID, contentHash)
}

func SendTextOnlyKey(chatID int64, textHash string) string {
	return fmt.Sprintf("send_text_only:%d:%s", chatID, textHash)
}

func HeartbeatKey(botID uint) string { return fmt.Sprintf("bot_heartbeat:%d", botID) }

// ShortHash is the truncated md5 used in lock keys and deep-link lookups.
func ShortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// ContentHash fingerprints one sequenced send (text || media || buttons).
func ContentHash(text, mediaURL, buttons string) string {
	sum := md5.Sum([]byte(text + "|" + mediaURL + "|" + buttons))
	return hex.EncodeToString(sum[:])
}

// Lock TTLs from the coordinator contract.
const (
	TTLUpdate       = 20 * time.Second
	TTLStart        = 3 * time.Second
	TTLStartProcess = 10 * time.Second
	TTLMsg          = 3 * time.Second
	TTLSendMedia    = 15 * time.Second
	TTLSendText     = 10 * time.Second
	TTLLastStart    = 5 * time.Second
	TTLBotStart     = 10 * time.Second
	TTLHeartbeat    = 180 * time.Second
)
