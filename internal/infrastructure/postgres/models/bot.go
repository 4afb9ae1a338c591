package models

import "time"

type BotModel struct {
	ID           uint   `gorm:"primaryKey"`
	TenantID     uint   `gorm:"index"`
	Token        string `gorm:"uniqueIndex"`
	Username     string
	Active       bool `gorm:"index"`
	Running      bool
	TotalSales   int64
	TotalRevenue float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TenantTotalModel aggregates owner-level sales across all of a tenant's
// bots. Maintained by the paid-transition batch.
type TenantTotalModel struct {
	TenantID     uint `gorm:"primaryKey"`
	TotalSales   int64
	TotalRevenue float64
	UpdatedAt    time.Time
}

type BotConfigModel struct {
	ID               uint `gorm:"primaryKey"`
	BotID            uint `gorm:"uniqueIndex"`
	WelcomeText      string
	WelcomeMediaURL  string
	WelcomeMediaKind string
	MainButtons      string `gorm:"type:jsonb"`
	RedirectButtons  string `gorm:"type:jsonb"`
	DownsellsEnabled bool
	Downsells        string `gorm:"type:jsonb"`
	Upsells          string `gorm:"type:jsonb"`
	AccessText       string
	AccessURL        string
	FlowEnabled      bool
	FlowNodes        string `gorm:"type:jsonb"`
	FlowStartNode    string
	UpdatedAt        time.Time
}

type BotUserModel struct {
	ID              uint  `gorm:"primaryKey"`
	BotID           uint  `gorm:"index:idx_bot_chat"`
	ChatID          int64 `gorm:"index:idx_bot_chat"`
	DisplayName     string
	Archived        bool `gorm:"index"`
	WelcomeSent     bool
	WelcomeSentAt   *time.Time
	LastInteraction time.Time

	Fbclid        string
	Fbp           string
	Fbc           string
	UTMSource     string
	UTMMedium     string
	UTMCampaign   string
	CampaignCode  string
	TrackingToken string
	ClickIP       string
	UserAgent     string
	Device        string
	OS            string
	Browser       string
	GeoCity       string
	GeoState      string
	GeoCountry    string
	ClickedAt     *time.Time

	MetaPageViewSent    bool
	MetaViewContentSent bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
