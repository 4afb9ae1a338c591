// Package reconcile closes the gaps webhooks leave: polling stale pending
// payments, replaying webhooks that arrived before their payment row, and
// sweeping expired subscriptions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/funnel"
	"github.com/vendabots/fleet-runtime/internal/gateway"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
)

const (
	// pendingMinAge keeps the poller off payments young enough for a
	// webhook to still be in flight.
	pendingMinAge = 10 * time.Minute
	// pendingMaxAge bounds the sweep; PIX charges older than a day are
	// dead and gateways purge them anyway.
	pendingMaxAge = 24 * time.Hour

	pendingBatchSize = 100

	// replayAttemptCeiling caps how often an orphaned webhook is retried
	// before being dropped as unmatched.
	replayAttemptCeiling = 12

	replayBatchSize = 50

	subscriptionBatchSize = 50
)

type Worker struct {
	cfg     *config.FleetConfig
	logger  *logrus.Entry
	metrics *metrics.FleetMetrics

	payments domain.PaymentRepository
	gateways domain.GatewayRepository
	webhooks domain.WebhookEventRepository
	pending  domain.PendingMatchRepository
	subs     domain.SubscriptionRepository

	registry *gateway.Registry
	engine   *funnel.Engine
}

func NewWorker(cfg *config.FleetConfig, logger *logrus.Entry, m *metrics.FleetMetrics,
	payments domain.PaymentRepository, gateways domain.GatewayRepository,
	webhooks domain.WebhookEventRepository, pending domain.PendingMatchRepository,
	subs domain.SubscriptionRepository, registry *gateway.Registry, engine *funnel.Engine) *Worker {

	return &Worker{
		cfg: cfg, logger: logger, metrics: m,
		payments: payments, gateways: gateways, webhooks: webhooks,
		pending: pending, subs: subs, registry: registry, engine: engine,
	}
}

// SyncPending polls the gateway for stale pending payments of every
// pollable kind. Debounce skips rows touched recently, and a fresher
// recorded webhook for the same transaction wins over polling.
func (w *Worker) SyncPending(ctx context.Context) {
	for _, kind := range w.registry.Kinds() {
		parser, err := w.registry.ParserFor(kind)
		if err != nil || !parser.SupportsStatusQuery() {
			continue
		}
		if err := w.syncPendingKind(ctx, kind); err != nil {
			w.logger.WithError(err).WithField("gateway_kind", kind).Error("pending sync failed")
		}
	}
}

func (w *Worker) syncPendingKind(ctx context.Context, kind string) error {
	debounce := time.Duration(w.cfg.Reconcile.DebounceFor(kind)) * time.Second
	stale, err := w.payments.ListStalePending(ctx, kind, pendingMinAge, pendingMaxAge, debounce, pendingBatchSize)
	if err != nil {
		return fmt.Errorf("list stale pending: %w", err)
	}

	providers := map[uint]gateway.Provider{}
	for _, p := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := w.logger.WithFields(logrus.Fields{"payment_id": p.ID, "gateway_kind": kind})

		if event, err := w.webhooks.LatestForTx(ctx, kind, p.GatewayTxHash); err == nil && event != nil {
			if event.ReceivedAt.After(p.UpdatedAt) {
				// The webhook path already saw this transaction; let its
				// replay settle the row instead of racing it with a poll.
				continue
			}
		}

		provider, err := w.providerFor(ctx, p, providers)
		if err != nil {
			log.WithError(err).Warn("provider resolve failed")
			continue
		}

		info, err := provider.QueryPaymentStatus(ctx, p.GatewayTxID)
		if err != nil {
			if !errors.Is(err, domain.ErrStatusQueryUnsupported) {
				log.WithError(err).Warn("status query failed")
			}
			continue
		}
		if info == nil {
			continue
		}

		switch info.Status {
		case domain.PaymentPaid:
			err := w.engine.ApplyPaid(ctx, p, "reconcile")
			if err != nil && !errors.Is(err, domain.ErrAlreadyPaid) {
				log.WithError(err).Error("reconcile paid transition failed")
				continue
			}
			w.metrics.ReconcileAppliedTotal.WithLabelValues(kind).Inc()
		case domain.PaymentFailed:
			if err := w.payments.MarkFailed(ctx, p.ID); err != nil {
				log.WithError(err).Warn("mark failed errored")
			}
		}
	}
	return nil
}

// providerFor builds (and memoizes per sweep) the credentialed provider
// owning a payment's gateway.
func (w *Worker) providerFor(ctx context.Context, p *domain.Payment, cache map[uint]gateway.Provider) (gateway.Provider, error) {
	gws, err := w.gateways.ListByKind(ctx, p.GatewayKind)
	if err != nil {
		return nil, err
	}
	for _, gw := range gws {
		if !gw.Active || !gw.Verified {
			continue
		}
		if provider, ok := cache[gw.ID]; ok {
			return provider, nil
		}
		provider, err := w.registry.ForGateway(gw)
		if err != nil {
			continue
		}
		cache[gw.ID] = provider
		return provider, nil
	}
	return nil, domain.ErrNoActiveGateway
}

// ReplayPending re-runs parked webhooks against the payment table,
// oldest attempts first. Rows are deleted on success or at the attempt
// ceiling; everything else just gets its counter bumped.
func (w *Worker) ReplayPending(ctx context.Context) {
	rows, err := w.pending.ListWaiting(ctx, replayBatchSize)
	if err != nil {
		w.logger.WithError(err).Error("pending match listing failed")
		return
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}
		log := w.logger.WithFields(logrus.Fields{"match_id": row.ID, "gateway_kind": row.GatewayKind})

		err := w.engine.HandlePaymentWebhook(ctx, row.GatewayKind, []byte(row.Payload), true)
		switch {
		case err == nil:
			if err := w.pending.Delete(ctx, row.ID); err != nil {
				log.WithError(err).Warn("resolved match delete failed")
			}
		case errors.Is(err, domain.ErrPaymentNotFound):
			if row.Attempts+1 >= replayAttemptCeiling {
				log.Warn("webhook never matched a payment, discarding")
				if err := w.pending.Delete(ctx, row.ID); err != nil {
					log.WithError(err).Warn("discard delete failed")
				}
				continue
			}
			if err := w.pending.IncrementAttempts(ctx, row.ID, time.Now()); err != nil {
				log.WithError(err).Warn("attempt counter bump failed")
			}
		default:
			log.WithError(err).Error("webhook replay failed")
		}
	}
}

// KickFromVIP is the Telegram action the subscription sweep needs.
type KickFromVIP func(ctx context.Context, botID uint, vipChatID, userChatID int64) error

// SweepSubscriptions expires overdue VIP access: kick from the chat,
// then mark removed. A failed kick marks the row errored with a bumped
// counter so the next sweep retries it.
func (w *Worker) SweepSubscriptions(ctx context.Context, kick KickFromVIP) {
	now := time.Now()
	expired, err := w.subs.ListExpired(ctx, now, subscriptionBatchSize)
	if err != nil {
		w.logger.WithError(err).Error("expired subscription listing failed")
		return
	}

	for _, sub := range expired {
		if ctx.Err() != nil {
			return
		}
		log := w.logger.WithFields(logrus.Fields{"subscription_id": sub.ID, "bot_id": sub.BotID})

		if err := kick(ctx, sub.BotID, sub.VIPChatID, sub.ChatID); err != nil {
			log.WithError(err).Warn("VIP removal failed")
			sub.Status = domain.SubscriptionError
			sub.ErrorCount++
			if err := w.subs.Update(ctx, sub); err != nil {
				log.WithError(err).Error("subscription error state persist failed")
			}
			continue
		}

		sub.Status = domain.SubscriptionRemoved
		sub.RemovedAt = &now
		if err := w.subs.Update(ctx, sub); err != nil {
			log.WithError(err).Error("subscription removal persist failed")
			continue
		}
		log.Info("expired subscription removed from VIP chat")
	}
}
