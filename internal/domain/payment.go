package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is one PIX charge issued to a chat. The pending→paid transition is
// one-way and guarded by a conditional update on the status column.
type Payment struct {
	ID            uint
	BotID         uint
	ExternalID    string
	GatewayKind   string
	GatewayTxID   string
	GatewayTxHash string
	Amount        float64
	Status        PaymentStatus
	PixCode       string
	QRCodeURL     string

	CustomerChatID   int64
	CustomerName     string
	CustomerUsername string
	ProductName      string
	ButtonIndex      int
	ButtonConfig     *MainButton

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

	// Tracking snapshot carried from BotUser at creation time.
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

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}

// Commission is the platform cut on a paid Payment. Exactly one per payment.
type Commission struct {
	ID        uint
	PaymentID uint
	TenantID  uint
	Percent   float64
	Amount    float64
	CreatedAt time.Time
}
