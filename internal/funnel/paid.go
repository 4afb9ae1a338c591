package funnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/kafka"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// ApplyPaid runs the pending→paid side-effect batch exactly once. The
// conditional UPDATE on the status column is the only gate: whichever of
// webhook, reconciliation, or verify-button wins it runs the batch; the
// losers get ErrAlreadyPaid and stop.
//
// The row updates of the batch (status, totals, gateway counters,
// commission, subscription) commit atomically. A failed row leaves the
// payment pending, so the transition can be retried by the next signal.
// Sends and queue events run after commit, best-effort.
func (e *Engine) ApplyPaid(ctx context.Context, p *domain.Payment, source string) error {
	log := e.Logger.WithFields(map[string]any{
		"payment_id": p.ID, "external_id": p.ExternalID, "source": source,
	})

	now := timeNow()
	var bot *domain.Bot
	err := e.Tx.InTx(ctx, func(ctx context.Context) error {
		won, err := e.Payments.MarkPaid(ctx, p.ID, now)
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if !won {
			return domain.ErrAlreadyPaid
		}

		bot, err = e.Bots.GetByID(ctx, p.BotID)
		if err != nil {
			return fmt.Errorf("load bot %d: %w", p.BotID, err)
		}
		if err := e.Bots.IncrementTotals(ctx, p.BotID, p.Amount); err != nil {
			return fmt.Errorf("totals increment: %w", err)
		}
		// A tenant without a matching gateway row is tolerable; the
		// counter just has nowhere to go.
		if gw, err := e.Gateways.GetActiveVerified(ctx, bot.TenantID, p.GatewayKind); err == nil && gw != nil {
			if err := e.Gateways.IncrementSuccessful(ctx, gw.ID); err != nil {
				return fmt.Errorf("gateway success increment: %w", err)
			}
		}
		if _, err := e.Commissions.CreateIfAbsent(ctx, &domain.Commission{
			PaymentID: p.ID,
			TenantID:  bot.TenantID,
			Percent:   e.Config.Platform.CommissionPercent,
			Amount:    p.Amount * e.Config.Platform.CommissionPercent / 100,
		}); err != nil {
			return fmt.Errorf("commission insert: %w", err)
		}
		if p.HasSubscription && p.ButtonConfig != nil && p.ButtonConfig.Subscription != nil {
			plan := p.ButtonConfig.Subscription
			if _, err := e.Subs.CreateIfAbsent(ctx, &domain.Subscription{
				PaymentID:     p.ID,
				BotID:         p.BotID,
				ChatID:        p.CustomerChatID,
				DurationValue: plan.DurationValue,
				DurationUnit:  plan.DurationUnit,
				VIPChatID:     plan.VIPChatID,
				Status:        domain.SubscriptionPending,
			}); err != nil {
				return fmt.Errorf("subscription insert: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyPaid) {
		return err
	}
	if err != nil {
		return fmt.Errorf("paid transition for payment %d: %w", p.ID, err)
	}
	p.Status = domain.PaymentPaid
	p.PaidAt = &now

	e.Metrics.PaymentsPaidTotal.WithLabelValues(p.GatewayKind, source).Inc()
	e.Metrics.PaymentsAmountPaid.WithLabelValues(p.GatewayKind).Add(p.Amount)
	log.WithField("amount", p.Amount).Info("payment paid")

	cfg, err := e.Configs.GetByBotID(ctx, p.BotID)
	if err != nil {
		log.WithError(err).Warn("config load failed in paid batch")
		cfg = nil
	}
	downsellCount := 0
	if cfg != nil {
		downsellCount = len(cfg.Downsells)
	}
	e.CancelDownsells(p.BotID, p.ID, downsellCount)

	if won, err := e.Payments.MarkPurchaseSent(ctx, p.ID); err != nil {
		log.WithError(err).Error("purchase flag flip failed")
	} else if won {
		if err := e.enqueuePurchase(ctx, p); err != nil {
			log.WithError(err).Error("purchase event dispatch failed")
		}
	}

	if err := e.deliverAccess(ctx, p, cfg); err != nil {
		log.WithError(err).Error("access delivery failed")
	}

	if _, err := e.Producer.Enqueue(ctx, domain.TopicTasks, kafka.TaskDashboardEvent, kafka.DashboardEventArgs{
		TenantID: bot.TenantID,
		Event:    "payment.paid",
		Data: map[string]any{
			"payment_id":  p.ID,
			"external_id": p.ExternalID,
			"bot_id":      p.BotID,
			"amount":      p.Amount,
			"product":     p.ProductName,
			"source":      source,
		},
	}); err != nil {
		log.WithError(err).Warn("dashboard event enqueue failed")
	}

	return nil
}

// deliverAccess sends the product to the buyer: the button's own access
// text when set, else the bot-wide one, with the access link carrying the
// payment's delivery token.
func (e *Engine) deliverAccess(ctx context.Context, p *domain.Payment, cfg *domain.BotConfig) error {
	client, ok := e.Clients.Resolve(p.BotID)
	if !ok {
		return fmt.Errorf("bot %d has no live telegram client", p.BotID)
	}

	text := ""
	accessURL := ""
	if p.ButtonConfig != nil {
		text = p.ButtonConfig.AccessText
	}
	if cfg != nil {
		if text == "" {
			text = cfg.AccessText
		}
		accessURL = cfg.AccessURL
	}
	if text == "" {
		text = msgAccessDefault
	}

	var rows [][]telegram.Button
	if accessURL != "" {
		rows = [][]telegram.Button{{{
			Text: "🔓 Acessar",
			URL:  fmt.Sprintf("%s?t=%s", accessURL, p.DeliveryToken),
		}}}
	}

	return e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID:   p.BotID,
		ChatID:  p.CustomerChatID,
		Text:    text,
		Buttons: rows,
	})
}
