package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionRemoved   SubscriptionStatus = "removed"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionError     SubscriptionStatus = "error"
)

// Subscription grants timed VIP-chat access bought through a Payment.
// Exactly one per Payment; activation happens when the user joins the chat.
type Subscription struct {
	ID            uint
	PaymentID     uint
	BotID         uint
	ChatID        int64
	DurationValue int
	DurationUnit  string
	VIPChatID     int64
	Status        SubscriptionStatus
	ErrorCount    int
	StartedAt     *time.Time
	ExpiresAt     *time.Time
	RemovedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Activate starts the access window. ExpiresAt = started + duration.
func (s *Subscription) Activate(now time.Time) {
	s.Status = SubscriptionActive
	s.StartedAt = &now
	expires := now.Add(s.Duration())
	s.ExpiresAt = &expires
}

func (s *Subscription) Duration() time.Duration {
	day := 24 * time.Hour
	switch s.DurationUnit {
	case "weeks":
		return time.Duration(s.DurationValue) * 7 * day
	case "months":
		return time.Duration(s.DurationValue) * 30 * day
	default:
		return time.Duration(s.DurationValue) * day
	}
}
