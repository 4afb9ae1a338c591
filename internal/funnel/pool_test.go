package funnel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

func poolBots(conns ...int64) []*domain.PoolBot {
	out := make([]*domain.PoolBot, len(conns))
	for i, c := range conns {
		out[i] = &domain.PoolBot{ID: uint(i + 1), BotID: uint(i + 1), Enabled: true, Status: domain.PoolBotOnline, ActiveConnections: c, Weight: 1}
	}
	return out
}

func TestPickPoolBotRoundRobin(t *testing.T) {
	eligible := poolBots(0, 0, 0)

	chosen, next := pickPoolBot(domain.StrategyRoundRobin, eligible, 0, 0)
	assert.Equal(t, eligible[1], chosen)
	assert.Equal(t, 1, next)

	chosen, next = pickPoolBot(domain.StrategyRoundRobin, eligible, 2, 0)
	assert.Equal(t, eligible[0], chosen, "rotation wraps")
	assert.Equal(t, 0, next)

	// Unknown strategies fall back to round-robin.
	_, next = pickPoolBot("mystery", eligible, 1, 0)
	assert.Equal(t, 2, next)
}

func TestPickPoolBotLeastConnections(t *testing.T) {
	eligible := poolBots(5, 2, 9)
	chosen, next := pickPoolBot(domain.StrategyLeastConnections, eligible, 0, 0)
	assert.Equal(t, eligible[1], chosen)
	assert.Equal(t, -1, next, "stateless strategy keeps no rotation index")
}

func TestPickPoolBotRandom(t *testing.T) {
	eligible := poolBots(0, 0, 0)
	chosen, next := pickPoolBot(domain.StrategyRandom, eligible, 0, 4)
	assert.Equal(t, eligible[1], chosen, "seed modulo len selects the member")
	assert.Equal(t, -1, next)
}

func TestPickPoolBotWeighted(t *testing.T) {
	eligible := poolBots(0, 0)
	eligible[0].Weight = 3
	eligible[1].Weight = 1

	chosen, _ := pickPoolBot(domain.StrategyWeighted, eligible, 0, 2)
	assert.Equal(t, eligible[0], chosen)

	chosen, _ = pickPoolBot(domain.StrategyWeighted, eligible, 0, 3)
	assert.Equal(t, eligible[1], chosen)

	// Zero weight counts as one so the member still gets traffic.
	eligible[0].Weight = 0
	chosen, _ = pickPoolBot(domain.StrategyWeighted, eligible, 0, 0)
	assert.Equal(t, eligible[0], chosen)
}

func TestPoolBotEligible(t *testing.T) {
	now := time.Now()

	pb := &domain.PoolBot{Enabled: true, Status: domain.PoolBotOnline}
	assert.True(t, pb.Eligible(now))

	pb.Enabled = false
	assert.False(t, pb.Eligible(now))

	pb.Enabled = true
	pb.Status = domain.PoolBotOffline
	assert.False(t, pb.Eligible(now))

	pb.Status = domain.PoolBotDegraded
	open := now.Add(time.Minute)
	pb.CircuitOpenUntil = &open
	assert.False(t, pb.Eligible(now), "open circuit blocks traffic")

	closed := now.Add(-time.Second)
	pb.CircuitOpenUntil = &closed
	assert.True(t, pb.Eligible(now), "expired circuit re-admits the bot")
}
