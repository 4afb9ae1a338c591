package domain

import (
	"context"
	"time"
)

type BotRepository interface {
	GetByID(ctx context.Context, id uint) (*Bot, error)
	GetByToken(ctx context.Context, token string) (*Bot, error)
	ListActive(ctx context.Context) ([]*Bot, error)
	SetRunning(ctx context.Context, id uint, running bool) error
	SetActive(ctx context.Context, id uint, active bool) error
	// IncrementTotals adds one sale and its revenue to the bot and its tenant.
	IncrementTotals(ctx context.Context, id uint, revenue float64) error
	RotateToken(ctx context.Context, id uint, newToken string) error
}

type BotConfigRepository interface {
	GetByBotID(ctx context.Context, botID uint) (*BotConfig, error)
	Save(ctx context.Context, cfg *BotConfig) error
}

type BotUserRepository interface {
	GetOrCreate(ctx context.Context, botID uint, chatID int64, displayName string) (*BotUser, error)
	Get(ctx context.Context, botID uint, chatID int64) (*BotUser, error)
	Update(ctx context.Context, user *BotUser) error
	// ResetWelcome unconditionally clears welcome_sent and bumps
	// last_interaction inside one transaction. /start is absolute re-entry.
	ResetWelcome(ctx context.Context, botID uint, chatID int64) error
	MarkWelcomeSent(ctx context.Context, botID uint, chatID int64, at time.Time) error
	MarkViewContentSent(ctx context.Context, botID uint, chatID int64) (bool, error)
	ArchiveByBot(ctx context.Context, botID uint) error
	ListForRemarketing(ctx context.Context, botID uint, audience RemarketingAudience) ([]*BotUser, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uint) (*Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*Payment, error)
	GetByGatewayTx(ctx context.Context, kind, txID, txHash string) (*Payment, error)
	// FindReusable returns a pending payment for (bot, chat, product) not
	// older than maxAge with the exact amount, or nil.
	FindReusable(ctx context.Context, botID uint, chatID int64, product string, amount float64, maxAge time.Duration) (*Payment, error)
	// FindRecentPendingOther returns a pending payment for the chat on a
	// different product created within window, or nil.
	FindRecentPendingOther(ctx context.Context, botID uint, chatID int64, product string, window time.Duration) (*Payment, error)
	// MarkPaid performs the conditional pending→paid update. Returns false
	// when another worker already applied the transition.
	MarkPaid(ctx context.Context, id uint, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint) error
	MarkPurchaseSent(ctx context.Context, id uint) (bool, error)
	Update(ctx context.Context, p *Payment) error
	// ListStalePending returns pending payments of a gateway kind aged
	// between minAge and maxAge, skipping rows touched within debounce.
	ListStalePending(ctx context.Context, kind string, minAge, maxAge, debounce time.Duration, limit int) ([]*Payment, error)
}

type CommissionRepository interface {
	// CreateIfAbsent inserts the commission row unless one already exists
	// for the payment. Returns true when inserted.
	CreateIfAbsent(ctx context.Context, c *Commission) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID uint) (*Commission, error)
}

type GatewayRepository interface {
	GetActiveVerified(ctx context.Context, tenantID uint, kind string) (*Gateway, error)
	// PickActiveVerified returns the tenant's runtime gateway regardless of
	// kind, preferring the most recently verified.
	PickActiveVerified(ctx context.Context, tenantID uint) (*Gateway, error)
	GetByID(ctx context.Context, id uint) (*Gateway, error)
	GetByProducerID(ctx context.Context, kind, producerID string) (*Gateway, error)
	SetVerified(ctx context.Context, id uint, verified bool) error
	IncrementTotal(ctx context.Context, id uint) error
	IncrementSuccessful(ctx context.Context, id uint) error
	ListByKind(ctx context.Context, kind string) ([]*Gateway, error)
}

type PoolRepository interface {
	GetByID(ctx context.Context, id uint) (*Pool, error)
	GetBySlug(ctx context.Context, tenantID uint, slug string) (*Pool, error)
	UpdateLastChosen(ctx context.Context, id uint, index int) error
	UpdateHealth(ctx context.Context, id uint, healthy, total int) error
	ListBots(ctx context.Context, poolID uint) ([]*PoolBot, error)
	UpdateBotStatus(ctx context.Context, poolBotID uint, status PoolBotStatus, failures int, circuitUntil *time.Time) error
}

type WebhookEventRepository interface {
	// Insert appends the event; returns ErrDuplicateWebhook on a dedup-key
	// conflict.
	Insert(ctx context.Context, e *WebhookEvent) error
	LatestForTx(ctx context.Context, kind, txHash string) (*WebhookEvent, error)
}

type PendingMatchRepository interface {
	Upsert(ctx context.Context, m *WebhookPendingMatch) error
	// ListWaiting returns waiting rows in ascending attempt order.
	ListWaiting(ctx context.Context, limit int) ([]*WebhookPendingMatch, error)
	IncrementAttempts(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

type SubscriptionRepository interface {
	CreateIfAbsent(ctx context.Context, s *Subscription) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID uint) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
	// ListPendingForChat returns pending subscriptions bought by the chat,
	// for activation when the buyer joins the VIP chat.
	ListPendingForChat(ctx context.Context, chatID int64) ([]*Subscription, error)
}

type RemarketingRepository interface {
	GetCampaign(ctx context.Context, id uint) (*RemarketingCampaign, error)
	ListDue(ctx context.Context, now time.Time) ([]*RemarketingCampaign, error)
	IncrementSent(ctx context.Context, id uint, sent, failed int64) error
	IncrementClicked(ctx context.Context, id uint) error
	IsBlacklisted(ctx context.Context, botID uint, chatID int64) (bool, error)
	Blacklist(ctx context.Context, botID uint, chatID int64, reason string) error
}

type BotMessageRepository interface {
	Insert(ctx context.Context, m *BotMessage) error
	// HasSimilarRecent reports an identical (bot, chat, text) row within
	// window. Secondary guard for Telegram redeliveries.
	HasSimilarRecent(ctx context.Context, botID uint, chatID int64, text string, window time.Duration) (bool, error)
	LastOutboundAt(ctx context.Context, botID uint, chatID int64) (*time.Time, error)
}
