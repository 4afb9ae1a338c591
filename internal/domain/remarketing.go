package domain

import "time"

type RemarketingAudience string

const (
	AudienceAll       RemarketingAudience = "all"
	AudienceNonBuyers RemarketingAudience = "non_buyers"
	AudienceBuyers    RemarketingAudience = "buyers"
)

type RemarketingButton struct {
	Text  string  `json:"text"`
	Price float64 `json:"price"`
	URL   string  `json:"url,omitempty"`
}

// RemarketingCampaign is a tenant broadcast to past chats. Send counters
// are monotonic.
type RemarketingCampaign struct {
	ID           uint
	BotID        uint
	Audience     RemarketingAudience
	Text         string
	MediaURL     string
	MediaKind    MediaKind
	Buttons      []RemarketingButton
	SentCount    int64
	FailedCount  int64
	ClickedCount int64
	ScheduledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RemarketingBlacklist bans one (bot, chat) pair from broadcasts.
type RemarketingBlacklist struct {
	ID        uint
	BotID     uint
	ChatID    int64
	Reason    string
	CreatedAt time.Time
}
