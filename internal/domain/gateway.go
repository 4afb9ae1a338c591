package domain

import "time"

// Gateway holds one tenant's credentials for a payment provider.
// Credentials are stored encrypted at rest; at most one active+verified
// gateway per (tenant, kind) is selected by the runtime.
type Gateway struct {
	ID                     uint
	TenantID               uint
	Kind                   string
	Credentials            string // encrypted blob
	SplitPercent           float64
	Active                 bool
	Verified               bool
	TotalTransactions      int64
	SuccessfulTransactions int64
	// ProducerID identifies the tenant account on multi-account providers
	// whose webhooks carry the producing hash.
	ProducerID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
