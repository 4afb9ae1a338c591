package domain

import (
	"context"
	"time"
)

// Coordinator serializes operations across workers through short-lived
// leases on a process-external key-value store. Release is best-effort;
// the TTL is the safety net.
type Coordinator interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Heartbeat(ctx context.Context, botID uint, ttl time.Duration) error
	Alive(ctx context.Context, botID uint) (bool, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// TxRunner scopes fn to one database transaction. Repository calls made
// with the inner context join it; an error from fn rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TaskProducer enqueues deferred work on the shared broker. The runtime
// contains no consumers.
type TaskProducer interface {
	Enqueue(ctx context.Context, topic, task string, kwargs any) (taskID string, err error)
}

// Task queue topic names.
const (
	TopicTasks   = "tasks"
	TopicGateway = "gateway"
	TopicWebhook = "webhook"
)

// TrackingCache stores per-click attribution payloads under several lookup
// indices, so the funnel can always rebuild a Purchase event.
type TrackingCache interface {
	GenerateToken(ctx context.Context, botID uint, chatID int64, fbclid string) (string, error)
	Save(ctx context.Context, payload *TrackingPayload) error
	SaveForPayment(ctx context.Context, externalID string, payload *TrackingPayload) error
	RecoverForPayment(ctx context.Context, externalID string) (*TrackingPayload, error)
	Recover(ctx context.Context, token string) (*TrackingPayload, error)
	RecoverByChat(ctx context.Context, chatID int64) (*TrackingPayload, error)
	RecoverByFbclid(ctx context.Context, fbclid string) (*TrackingPayload, error)
	RecoverByLastToken(ctx context.Context, chatID int64) (*TrackingPayload, error)
	ResolveShortHash(ctx context.Context, hash string) (string, error)
}

// BumpSession is the in-flight order-bump state for one chat. Coordinator
// backed so it survives process restarts.
type BumpSession struct {
	BotID         uint             `json:"bot_id"`
	ChatID        int64            `json:"chat_id"`
	OriginalPrice float64          `json:"original_price"`
	Description   string           `json:"description"`
	MainIndex     int              `json:"main_index"`
	Bumps         []OrderBump      `json:"bumps"`
	CurrentIndex  int              `json:"current_index"`
	Accepted      []int            `json:"accepted"`
	BumpValue     float64          `json:"bump_value"`
	CreatedAt     time.Time        `json:"created_at"`
	Tracking      *TrackingPayload `json:"tracking,omitempty"`
}

// Expired reports whether the session passed the 30-minute GC boundary.
func (s *BumpSession) Expired(now time.Time) bool {
	return !s.CreatedAt.After(now.Add(-30 * time.Minute))
}

type SessionStore interface {
	Put(ctx context.Context, s *BumpSession) error
	Get(ctx context.Context, chatID int64) (*BumpSession, error)
	Delete(ctx context.Context, chatID int64) error
}
