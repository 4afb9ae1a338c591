package models

import "time"

type GatewayModel struct {
	ID                     uint   `gorm:"primaryKey"`
	TenantID               uint   `gorm:"index:idx_tenant_kind"`
	Kind                   string `gorm:"index:idx_tenant_kind"`
	Credentials            string
	SplitPercent           float64
	Active                 bool
	Verified               bool
	TotalTransactions      int64
	SuccessfulTransactions int64
	ProducerID             string `gorm:"index"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type PoolModel struct {
	ID              uint   `gorm:"primaryKey"`
	TenantID        uint   `gorm:"index:idx_tenant_slug,unique"`
	Slug            string `gorm:"index:idx_tenant_slug,unique"`
	Active          bool
	Strategy        string
	LastChosenIndex int
	HealthyBots     int
	TotalBots       int

	PixelID          string
	PixelAccessToken string
	TrackingEnabled  bool
	EventsEnabled    bool
	CloakerEnabled   bool
	CloakerParam     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PoolBotModel struct {
	ID                  uint `gorm:"primaryKey"`
	PoolID              uint `gorm:"index:idx_pool_bot,unique"`
	BotID               uint `gorm:"index:idx_pool_bot,unique"`
	Weight              int
	Priority            int
	Enabled             bool
	Status              string
	ActiveConnections   int64
	ConsecutiveFailures int
	CircuitOpenUntil    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
