package models

import "time"

type WebhookEventModel struct {
	ID          uint   `gorm:"primaryKey"`
	GatewayKind string `gorm:"index"`
	DedupKey    string `gorm:"uniqueIndex"`
	TxID        string
	TxHash      string `gorm:"index"`
	Status      string
	RawPayload  string `gorm:"type:jsonb"`
	ReceivedAt  time.Time
}

type WebhookPendingMatchModel struct {
	ID          uint `gorm:"primaryKey"`
	GatewayKind string
	DedupKey    string `gorm:"uniqueIndex"`
	TxID        string
	TxHash      string
	Payload     string `gorm:"type:jsonb"`
	Attempts    int    `gorm:"index"`
	LastAttempt *time.Time
	Status      string `gorm:"index"`
	CreatedAt   time.Time
}

type SubscriptionModel struct {
	ID            uint `gorm:"primaryKey"`
	PaymentID     uint `gorm:"uniqueIndex"`
	BotID         uint `gorm:"index"`
	ChatID        int64
	DurationValue int
	DurationUnit  string
	VIPChatID     int64
	Status        string `gorm:"index:idx_sub_status_expires"`
	ErrorCount    int
	StartedAt     *time.Time
	ExpiresAt     *time.Time `gorm:"index:idx_sub_status_expires"`
	RemovedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RemarketingCampaignModel struct {
	ID           uint `gorm:"primaryKey"`
	BotID        uint `gorm:"index"`
	Audience     string
	Text         string
	MediaURL     string
	MediaKind    string
	Buttons      string `gorm:"type:jsonb"`
	SentCount    int64
	FailedCount  int64
	ClickedCount int64
	ScheduledAt  *time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RemarketingBlacklistModel struct {
	ID        uint  `gorm:"primaryKey"`
	BotID     uint  `gorm:"index:idx_rmkt_ban,unique"`
	ChatID    int64 `gorm:"index:idx_rmkt_ban,unique"`
	Reason    string
	CreatedAt time.Time
}

type BotMessageModel struct {
	ID         uint  `gorm:"primaryKey"`
	BotID      uint  `gorm:"index:idx_msg_bot_chat"`
	ChatID     int64 `gorm:"index:idx_msg_bot_chat"`
	TelegramID int64
	Direction  string
	Text       string
	MediaURL   string
	MediaKind  string
	CreatedAt  time.Time `gorm:"index"`
}
