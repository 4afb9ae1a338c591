package funnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// HandleVerify services the "verify payment" button. Already-paid
// payments re-deliver access; pollable providers get an active status
// query; webhook-only providers answer with the pending message.
func (e *Engine) HandleVerify(ctx context.Context, u *domain.Update, paymentID uint) error {
	p, err := e.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return domain.ErrPaymentNotFound
	}
	if p.CustomerChatID != u.ChatID {
		// A forwarded keyboard must not leak someone else's purchase.
		return fmt.Errorf("verify for payment %d pressed in foreign chat %d", paymentID, u.ChatID)
	}

	if p.Status == domain.PaymentPaid {
		cfg, err := e.Configs.GetByBotID(ctx, p.BotID)
		if err != nil {
			cfg = nil
		}
		// A paid row with the flag still clear means the earlier Purchase
		// dispatch was lost; the flip keeps the retry at-most-once.
		if won, err := e.Payments.MarkPurchaseSent(ctx, p.ID); err == nil && won {
			if err := e.enqueuePurchase(ctx, p); err != nil {
				e.Logger.WithError(err).Error("purchase dispatch on verify failed")
			}
		}
		return e.deliverAccess(ctx, p, cfg)
	}

	bot, err := e.Bots.GetByID(ctx, p.BotID)
	if err != nil {
		return fmt.Errorf("load bot %d: %w", p.BotID, err)
	}
	gw, err := e.Gateways.GetActiveVerified(ctx, bot.TenantID, p.GatewayKind)
	if err == nil && gw != nil {
		provider, perr := e.Registry.ForGateway(gw)
		if perr == nil && provider.SupportsStatusQuery() {
			info, qerr := provider.QueryPaymentStatus(ctx, p.GatewayTxID)
			if qerr != nil && !errors.Is(qerr, domain.ErrStatusQueryUnsupported) {
				e.Logger.WithError(qerr).WithField("payment_id", p.ID).Warn("status query failed")
			}
			if info != nil && info.Status == domain.PaymentPaid {
				err := e.ApplyPaid(ctx, p, "verify")
				if err != nil && !errors.Is(err, domain.ErrAlreadyPaid) {
					return err
				}
				return nil
			}
		}
	}

	return e.sendPendingReply(ctx, u, p)
}

func (e *Engine) sendPendingReply(ctx context.Context, u *domain.Update, p *domain.Payment) error {
	client, ok := e.Clients.Resolve(u.BotID)
	if !ok {
		return fmt.Errorf("bot %d has no live telegram client", u.BotID)
	}
	return e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID:  u.BotID,
		ChatID: u.ChatID,
		Text:   fmt.Sprintf(msgPaymentPending, p.PixCode),
		Buttons: [][]telegram.Button{{{
			Text:         msgVerifyButton,
			CallbackData: fmt.Sprintf("verify_%d", p.ID),
		}}},
	})
}
