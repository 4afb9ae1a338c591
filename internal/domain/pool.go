package domain

import "time"

type PoolStrategy string

const (
	StrategyRoundRobin       PoolStrategy = "round-robin"
	StrategyLeastConnections PoolStrategy = "least-connections"
	StrategyRandom           PoolStrategy = "random"
	StrategyWeighted         PoolStrategy = "weighted"
)

// Pool is a named group of bots fronting one ad-funnel URL. The pool's Meta
// config is the authoritative tracking source, not the per-bot one.
type Pool struct {
	ID              uint
	TenantID        uint
	Slug            string
	Active          bool
	Strategy        PoolStrategy
	LastChosenIndex int
	HealthyBots     int
	TotalBots       int

	PixelID          string
	PixelAccessToken string // encrypted blob
	TrackingEnabled  bool
	EventsEnabled    bool
	CloakerEnabled   bool
	CloakerParam     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PoolBotStatus string

const (
	PoolBotOnline   PoolBotStatus = "online"
	PoolBotOffline  PoolBotStatus = "offline"
	PoolBotDegraded PoolBotStatus = "degraded"
	PoolBotChecking PoolBotStatus = "checking"
)

type PoolBot struct {
	ID                  uint
	PoolID              uint
	BotID               uint
	Weight              int
	Priority            int
	Enabled             bool
	Status              PoolBotStatus
	ActiveConnections   int64
	ConsecutiveFailures int
	// CircuitOpenUntil in the past means the bot is eligible again.
	CircuitOpenUntil *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Eligible reports whether the pool member may receive traffic now.
func (pb *PoolBot) Eligible(now time.Time) bool {
	if !pb.Enabled || pb.Status == PoolBotOffline {
		return false
	}
	if pb.CircuitOpenUntil != nil && pb.CircuitOpenUntil.After(now) {
		return false
	}
	return true
}
