// Package gateway isolates per-provider PIX APIs behind a uniform surface.
// Webhook interpretation is total and side-effect free.
package gateway

import (
	"context"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

type Customer struct {
	ChatID   int64
	Name     string
	Username string
	Document string
}

type PixRequest struct {
	Amount       float64
	Description  string
	ExternalID   string
	SplitPercent float64
	Customer     Customer
}

type PixResult struct {
	PixCode   string
	QRCodeURL string
	TxID      string
	TxHash    string
	Status    domain.PaymentStatus
}

type PaymentInfo struct {
	Status    domain.PaymentStatus
	Amount    float64
	PayerName string
	PayerDoc  string
}

// WebhookResult is the provider-neutral reading of one webhook payload.
type WebhookResult struct {
	Status      domain.PaymentStatus
	Amount      float64
	TxID        string
	TxHash      string
	ExternalRef string
	// DedupKey is stable per distinct webhook identity.
	DedupKey string
	// ProducerID is set by multi-account providers whose single credential
	// serves many tenant accounts.
	ProducerID string
}

// Provider is one payment gateway backend.
type Provider interface {
	Kind() string
	// MinimumAmount is the provider's floor in BRL.
	MinimumAmount() float64
	// SupportsStatusQuery reports whether QueryPaymentStatus works; some
	// providers are webhook-only.
	SupportsStatusQuery() bool
	// AllowsPixReuse reports whether a pending PIX may be re-issued to the
	// same customer instead of minting a new one.
	AllowsPixReuse() bool

	VerifyCredentials(ctx context.Context) (bool, error)
	GeneratePIX(ctx context.Context, req PixRequest) (*PixResult, error)
	QueryPaymentStatus(ctx context.Context, txID string) (*PaymentInfo, error)
	// InterpretWebhook parses the raw payload. Pure; no I/O.
	InterpretWebhook(payload []byte) (*WebhookResult, error)
}

// MapStatus folds every provider's status vocabulary into the three
// internal states. Unknown strings map to pending so a later webhook can
// still settle the payment.
func MapStatus(providerStatus string) domain.PaymentStatus {
	switch providerStatus {
	case "paid", "approved", "confirmed", "PAID_OUT", "APPROVED", "COMPLETED", "completed":
		return domain.PaymentPaid
	case "expired", "cancelled", "canceled", "rejected", "refused", "EXPIRED", "CANCELED", "REJECTED":
		return domain.PaymentFailed
	case "pending", "created", "waiting_payment", "PENDING", "CREATED":
		return domain.PaymentPending
	default:
		return domain.PaymentPending
	}
}
