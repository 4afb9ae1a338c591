package funnel

import (
	"context"
	"math/rand"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

// SelectPoolBot picks the pool member that should front the next click,
// honoring the pool's strategy and each member's circuit breaker. Health
// counters are recomputed as a side effect of every selection.
func (e *Engine) SelectPoolBot(ctx context.Context, pool *domain.Pool) (*domain.PoolBot, error) {
	members, err := e.Pools.ListBots(ctx, pool.ID)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	eligible := make([]*domain.PoolBot, 0, len(members))
	for _, m := range members {
		if m.Eligible(now) {
			eligible = append(eligible, m)
		}
	}
	if err := e.Pools.UpdateHealth(ctx, pool.ID, len(eligible), len(members)); err != nil {
		e.Logger.WithError(err).Warn("pool health update failed")
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNoEligiblePoolBot
	}

	chosen, nextIndex := pickPoolBot(pool.Strategy, eligible, pool.LastChosenIndex, rand.Int63())
	if nextIndex >= 0 {
		if err := e.Pools.UpdateLastChosen(ctx, pool.ID, nextIndex); err != nil {
			e.Logger.WithError(err).Warn("pool rotation persist failed")
		}
	}
	return chosen, nil
}

// pickPoolBot is the pure strategy core. nextIndex is -1 when the
// strategy keeps no rotation state.
func pickPoolBot(strategy domain.PoolStrategy, eligible []*domain.PoolBot, lastIndex int, seed int64) (*domain.PoolBot, int) {
	switch strategy {
	case domain.StrategyLeastConnections:
		best := eligible[0]
		for _, m := range eligible[1:] {
			if m.ActiveConnections < best.ActiveConnections {
				best = m
			}
		}
		return best, -1

	case domain.StrategyRandom:
		return eligible[seed%int64(len(eligible))], -1

	case domain.StrategyWeighted:
		total := 0
		for _, m := range eligible {
			w := m.Weight
			if w < 1 {
				w = 1
			}
			total += w
		}
		pick := int(seed % int64(total))
		for _, m := range eligible {
			w := m.Weight
			if w < 1 {
				w = 1
			}
			if pick < w {
				return m, -1
			}
			pick -= w
		}
		return eligible[len(eligible)-1], -1

	default: // round-robin
		next := (lastIndex + 1) % len(eligible)
		return eligible[next], next
	}
}

// MarkPoolBotFailure trips the circuit after repeated failures, giving
// the member a cool-down proportional to its failure streak.
func (e *Engine) MarkPoolBotFailure(ctx context.Context, member *domain.PoolBot) error {
	failures := member.ConsecutiveFailures + 1
	status := member.Status
	var circuitUntil *time.Time
	if failures >= 3 {
		status = domain.PoolBotDegraded
		until := timeNow().Add(time.Duration(failures) * time.Minute)
		circuitUntil = &until
	}
	return e.Pools.UpdateBotStatus(ctx, member.ID, status, failures, circuitUntil)
}

// MarkPoolBotHealthy resets the breaker after a successful probe.
func (e *Engine) MarkPoolBotHealthy(ctx context.Context, member *domain.PoolBot) error {
	return e.Pools.UpdateBotStatus(ctx, member.ID, domain.PoolBotOnline, 0, nil)
}
