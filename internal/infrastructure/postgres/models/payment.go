package models

import "time"

type PaymentModel struct {
	ID            uint   `gorm:"primaryKey"`
	BotID         uint   `gorm:"index"`
	ExternalID    string `gorm:"uniqueIndex"`
	GatewayKind   string `gorm:"index:idx_gateway_tx,unique"`
	GatewayTxID   string `gorm:"index"`
	GatewayTxHash string `gorm:"index:idx_gateway_tx,unique"`
	Amount        float64
	Status        string `gorm:"index:idx_status_created"`
	PixCode       string
	QRCodeURL     string

	CustomerChatID   int64 `gorm:"index"`
	CustomerName     string
	CustomerUsername string
	ProductName      string
	ButtonIndex      int
	ButtonConfig     string `gorm:"type:jsonb"`

	OrderBumpShown    bool
	OrderBumpAccepted bool
	OrderBumpValue    float64
	IsDownsell        bool
	DownsellIndex     int
	IsUpsell          bool
	UpsellIndex       int
	FromRemarketing   bool

	DeliveryToken    string
	MetaPurchaseSent bool
	HasSubscription  bool

	Fbclid          string
	Fbp             string
	Fbc             string
	UTMSource       string
	UTMMedium       string
	UTMCampaign     string
	CampaignCode    string
	TrackingToken   string
	PageViewEventID string
	ClickIP         string
	UserAgent       string
	Device          string
	OS              string
	Browser         string

	CreatedAt time.Time `gorm:"index:idx_status_created"`
	UpdatedAt time.Time
	PaidAt    *time.Time
}

type CommissionModel struct {
	ID        uint `gorm:"primaryKey"`
	PaymentID uint `gorm:"uniqueIndex"`
	TenantID  uint `gorm:"index"`
	Percent   float64
	Amount    float64
	CreatedAt time.Time
}
