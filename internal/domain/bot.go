package domain

import "time"

type Bot struct {
	ID           uint
	TenantID     uint
	Token        string
	Username     string
	Active       bool
	Running      bool
	TotalSales   int64
	TotalRevenue float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// MainButton is a purchasable product button on the welcome keyboard.
type MainButton struct {
	Text        string      `json:"text"`
	Price       float64     `json:"price"`
	Description string      `json:"description"`
	OrderBumps  []OrderBump `json:"order_bumps,omitempty"`
	// Subscription marks the product as a VIP-chat subscription.
	Subscription *SubscriptionPlan `json:"subscription,omitempty"`
	AccessText   string            `json:"access_text,omitempty"`
}

type RedirectButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type OrderBump struct {
	Enabled     bool    `json:"enabled"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Text        string  `json:"text,omitempty"`
}

type DownsellPricing string

const (
	DownsellFixed      DownsellPricing = "fixed"
	DownsellPercentage DownsellPricing = "percentage"
)

type Downsell struct {
	DelayMinutes int             `json:"delay_minutes"`
	PricingMode  DownsellPricing `json:"pricing_mode"`
	Price        float64         `json:"price"`
	Percentage   float64         `json:"percentage"`
	Text         string          `json:"text"`
	MediaURL     string          `json:"media_url,omitempty"`
	MediaKind    MediaKind       `json:"media_kind,omitempty"`
	OrderBump    *OrderBump      `json:"order_bump,omitempty"`
}

type Upsell struct {
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Text        string  `json:"text"`
}

type SubscriptionPlan struct {
	DurationValue int    `json:"duration_value"`
	DurationUnit  string `json:"duration_unit"` // days, weeks, months
	VIPChatID     int64  `json:"vip_chat_id"`
}

type FlowNode struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Next    []string `json:"next,omitempty"`
	Payload string   `json:"payload,omitempty"`
}

// BotConfig holds the funnel definition for one bot. Exactly one row per Bot.
type BotConfig struct {
	ID               uint
	BotID            uint
	WelcomeText      string
	WelcomeMediaURL  string
	WelcomeMediaKind MediaKind
	MainButtons      []MainButton
	RedirectButtons  []RedirectButton
	DownsellsEnabled bool
	Downsells        []Downsell
	Upsells          []Upsell
	AccessText       string
	AccessURL        string
	FlowEnabled      bool
	FlowNodes        []FlowNode
	FlowStartNode    string
	UpdatedAt        time.Time
}

// BotUser is one Telegram chat known to a bot. (BotID, ChatID) is unique
// among non-archived rows; archived rows are excluded from the funnel.
type BotUser struct {
	ID              uint
	BotID           uint
	ChatID          int64
	DisplayName     string
	Archived        bool
	WelcomeSent     bool
	WelcomeSentAt   *time.Time
	LastInteraction time.Time

	// Tracking attribution captured on /start.
	Fbclid              string
	Fbp                 string
	Fbc                 string
	UTMSource           string
	UTMMedium           string
	UTMCampaign         string
	CampaignCode        string
	TrackingToken       string
	ClickIP             string
	UserAgent           string
	Device              string
	OS                  string
	Browser             string
	GeoCity             string
	GeoState            string
	GeoCountry          string
	ClickedAt           *time.Time
	MetaPageViewSent    bool
	MetaViewContentSent bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
