package funnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

// HandlePaymentWebhook applies one gateway webhook. The flow is
// dedup-first: the event row's unique dedup key drops redeliveries before
// any state is touched. Webhooks that beat their payment row into the
// database are parked for the late-replay worker.
func (e *Engine) HandlePaymentWebhook(ctx context.Context, kind string, payload []byte, skipPendingEnqueue bool) error {
	log := e.Logger.WithField("gateway_kind", kind)

	parser, err := e.Registry.ParserFor(kind)
	if err != nil {
		return err
	}
	res, err := parser.InterpretWebhook(payload)
	if err != nil {
		return fmt.Errorf("interpret %s webhook: %w", kind, err)
	}

	err = e.Webhooks.Insert(ctx, &domain.WebhookEvent{
		GatewayKind: kind,
		DedupKey:    res.DedupKey,
		TxID:        res.TxID,
		TxHash:      res.TxHash,
		Status:      string(res.Status),
		RawPayload:  string(payload),
		ReceivedAt:  timeNow(),
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateWebhook) && skipPendingEnqueue:
		// A replay re-runs the payload whose event row was written on the
		// original delivery; the existing row must not stop the payment
		// lookup, or a parked paid webhook never settles its payment.
	case errors.Is(err, domain.ErrDuplicateWebhook):
		e.Metrics.WebhookDedupTotal.WithLabelValues(kind).Inc()
		log.WithField("dedup_key", res.DedupKey).Debug("webhook dropped as duplicate")
		return nil
	case err != nil:
		return fmt.Errorf("record webhook event: %w", err)
	}

	if res.ProducerID != "" {
		// Multi-account providers: confirm the producing account maps to a
		// known gateway row before trusting the payload.
		if gw, err := e.Gateways.GetByProducerID(ctx, kind, res.ProducerID); err != nil || gw == nil {
			log.WithField("producer_id", res.ProducerID).Warn("webhook from unknown producer account")
		}
	}

	p, err := e.Payments.GetByGatewayTx(ctx, kind, res.TxID, res.TxHash)
	if (err != nil || p == nil) && res.ExternalRef != "" {
		p, err = e.Payments.GetByExternalID(ctx, res.ExternalRef)
	}
	if err != nil || p == nil {
		e.Metrics.WebhookOrphanTotal.WithLabelValues(kind).Inc()
		if skipPendingEnqueue {
			return domain.ErrPaymentNotFound
		}
		if err := e.Pending.Upsert(ctx, &domain.WebhookPendingMatch{
			GatewayKind: kind,
			DedupKey:    res.DedupKey,
			TxID:        res.TxID,
			TxHash:      res.TxHash,
			Payload:     string(payload),
			Status:      domain.PendingMatchWaiting,
			CreatedAt:   timeNow(),
		}); err != nil {
			return fmt.Errorf("park orphan webhook: %w", err)
		}
		log.WithField("tx_hash", res.TxHash).Info("webhook parked, payment row not found yet")
		return nil
	}

	switch res.Status {
	case domain.PaymentPaid:
		err := e.ApplyPaid(ctx, p, "webhook")
		if errors.Is(err, domain.ErrAlreadyPaid) {
			return nil
		}
		return err
	case domain.PaymentFailed:
		if p.Status != domain.PaymentPending {
			return nil
		}
		if err := e.Payments.MarkFailed(ctx, p.ID); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		e.Metrics.PaymentsFailedTotal.WithLabelValues(kind, "webhook").Inc()
		return nil
	default:
		// Pending confirmations carry no new state.
		return nil
	}
}
