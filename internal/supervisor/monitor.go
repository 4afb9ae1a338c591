package supervisor

import (
	"context"
	"fmt"
	"time"

	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

const (
	heartbeatInterval = 30 * time.Second
	// auditEveryCycles puts the webhook audit at roughly five minutes.
	auditEveryCycles = 10

	monitorBackoffFloor = time.Second
	monitorBackoffCeil  = 5 * time.Minute
)

// monitor is the per-bot health loop: heartbeat every cycle, webhook
// audit every tenth. Transient errors back off exponentially; only the
// stop signal ends the loop.
func (s *Supervisor) monitor(ctx context.Context, rb *runningBot) {
	log := s.logger.WithField("bot_id", rb.bot.ID)
	backoff := monitorBackoffFloor
	cycle := 0

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cycle++

		if err := s.monitorCycle(ctx, rb, cycle); err != nil {
			log.WithError(err).WithField("backoff", backoff).Warn("monitor cycle failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > monitorBackoffCeil {
				backoff = monitorBackoffCeil
			}
			continue
		}
		backoff = monitorBackoffFloor
	}
}

func (s *Supervisor) monitorCycle(ctx context.Context, rb *runningBot, cycle int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor panic: %v", r)
		}
	}()

	if hbErr := s.coord.Heartbeat(ctx, rb.bot.ID, fleetredis.TTLHeartbeat); hbErr != nil {
		return fmt.Errorf("heartbeat: %w", hbErr)
	}

	base := s.cfg.Telegram.WebhookBaseURL
	if !auditDue(base, cycle) {
		return nil
	}
	if rb.polling {
		return s.recoverWebhook(ctx, rb, base)
	}

	mode, auditErr := rb.client.AuditWebhook(ctx, base)
	if auditErr != nil {
		return fmt.Errorf("webhook audit: %w", auditErr)
	}
	if mode == telegram.ModeLongPoll {
		// Telegram cannot reach our endpoint; carry the bot on getUpdates
		// until a later audit finds the webhook healthy again.
		s.metrics.WebhookFailoverTotal.WithLabelValues(fmt.Sprint(rb.bot.ID)).Inc()
		s.startPolling(rb)
	}
	return nil
}

// auditDue gates the webhook audit on cadence alone. A failed-over bot is
// audited like any other so the webhook comes back without a restart.
func auditDue(base string, cycle int) bool {
	return base != "" && cycle%auditEveryCycles == 0
}

// recoverWebhook moves a failed-over bot back to webhook mode. The poll
// loop stops first; Telegram rejects setWebhook while getUpdates is open.
func (s *Supervisor) recoverWebhook(ctx context.Context, rb *runningBot, base string) error {
	rb.stopPolling()
	if err := rb.client.InstallWebhook(ctx, base); err != nil {
		if ferr := rb.client.Failover(ctx); ferr != nil {
			s.logger.WithError(ferr).WithField("bot_id", rb.bot.ID).Warn("webhook delete during failover failed")
		}
		s.metrics.WebhookFailoverTotal.WithLabelValues(fmt.Sprint(rb.bot.ID)).Inc()
		s.startPolling(rb)
		return fmt.Errorf("webhook re-install: %w", err)
	}
	s.logger.WithField("bot_id", rb.bot.ID).Info("webhook re-installed, long-poll retired")
	return nil
}
