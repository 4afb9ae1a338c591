package domain

import "time"

// WebhookEvent is an immutable record of one distinct gateway webhook
// delivery. DedupKey is provider-specific but stable for the transaction.
type WebhookEvent struct {
	ID          uint
	GatewayKind string
	DedupKey    string
	TxID        string
	TxHash      string
	Status      string
	RawPayload  string
	ReceivedAt  time.Time
}

type PendingMatchStatus string

const (
	PendingMatchWaiting   PendingMatchStatus = "waiting"
	PendingMatchResolved  PendingMatchStatus = "resolved"
	PendingMatchDiscarded PendingMatchStatus = "discarded"
)

// WebhookPendingMatch holds a webhook that arrived before its Payment row
// existed. The late-replay worker drains it.
type WebhookPendingMatch struct {
	ID          uint
	GatewayKind string
	DedupKey    string
	TxID        string
	TxHash      string
	Payload     string
	Attempts    int
	LastAttempt *time.Time
	Status      PendingMatchStatus
	CreatedAt   time.Time
}
