package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

func downsellJobID(botID, paymentID uint, index int) string {
	return fmt.Sprintf("downsell_%d_%d_%d", botID, paymentID, index)
}

// ScheduleDownsells arms one job per configured downsell, anchored to the
// payment's creation time. Re-arming the same payment replaces the jobs.
func (e *Engine) ScheduleDownsells(p *domain.Payment, cfg *domain.BotConfig) {
	for i, d := range cfg.Downsells {
		at := p.CreatedAt.Add(time.Duration(d.DelayMinutes) * time.Minute)
		index := i
		paymentID := p.ID
		botID := p.BotID
		e.Sched.ScheduleAt(downsellJobID(botID, paymentID, index), at, func(ctx context.Context) {
			e.fireDownsell(ctx, botID, paymentID, index)
		})
		e.Metrics.DownsellScheduledTotal.WithLabelValues(fmt.Sprint(botID)).Inc()
	}
}

// CancelDownsells disarms every downsell job for the payment. Called on
// the paid transition.
func (e *Engine) CancelDownsells(botID, paymentID uint, count int) {
	for i := 0; i < count; i++ {
		id := downsellJobID(botID, paymentID, i)
		if e.Sched.Has(id) {
			e.Sched.Remove(id)
			e.Metrics.DownsellCancelledTotal.WithLabelValues(fmt.Sprint(botID)).Inc()
		}
	}
}

// fireDownsell sends offer index to the payment's chat, unless the
// payment settled or the tenant disabled downsells since arming.
func (e *Engine) fireDownsell(ctx context.Context, botID, paymentID uint, index int) {
	log := e.Logger.WithFields(map[string]any{"bot_id": botID, "payment_id": paymentID, "downsell": index})

	payment, err := e.Payments.GetByID(ctx, paymentID)
	if err != nil {
		log.WithError(err).Warn("downsell fire: payment load failed")
		return
	}
	if payment.Status != domain.PaymentPending {
		log.Debug("downsell skipped, payment no longer pending")
		return
	}

	cfg, err := e.Configs.GetByBotID(ctx, botID)
	if err != nil {
		log.WithError(err).Warn("downsell fire: config load failed")
		return
	}
	if !cfg.DownsellsEnabled || index >= len(cfg.Downsells) {
		log.Debug("downsell skipped, disabled or removed from config")
		return
	}
	d := cfg.Downsells[index]

	client, ok := e.Clients.Resolve(botID)
	if !ok {
		log.Warn("downsell fire: bot has no live client")
		return
	}

	rows := e.downsellButtons(cfg, d, index, payment)
	if len(rows) == 0 {
		log.Debug("downsell skipped, nothing to offer")
		return
	}

	if err := e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID:     botID,
		ChatID:    payment.CustomerChatID,
		Text:      d.Text,
		MediaURL:  d.MediaURL,
		MediaKind: d.MediaKind,
		Buttons:   rows,
	}); err != nil {
		log.WithError(err).Error("downsell send failed")
		return
	}
	e.Metrics.DownsellFiredTotal.WithLabelValues(fmt.Sprint(botID)).Inc()
}

// downsellButtons builds the offer keyboard. Fixed mode re-offers the
// original product at the fixed price; percentage mode discounts every
// main button, one row each.
func (e *Engine) downsellButtons(cfg *domain.BotConfig, d domain.Downsell, index int, payment *domain.Payment) [][]telegram.Button {
	switch d.PricingMode {
	case domain.DownsellPercentage:
		rows := make([][]telegram.Button, 0, len(cfg.MainButtons))
		for i, btn := range cfg.MainButtons {
			price := btn.Price * (1 - d.Percentage/100)
			if price <= 0 {
				continue
			}
			cents := int64(price*100 + 0.5)
			rows = append(rows, []telegram.Button{{
				Text:         fmt.Sprintf("%s — R$ %.2f", btn.Text, price),
				CallbackData: fmt.Sprintf("dwnsl_%d_%d_%d", index, i, cents),
			}})
		}
		return rows
	default:
		if d.Price <= 0 {
			return nil
		}
		cents := int64(d.Price*100 + 0.5)
		return [][]telegram.Button{{{
			Text:         fmt.Sprintf("💰 Quero por R$ %.2f", d.Price),
			CallbackData: fmt.Sprintf("downsell_%d_%d_%d", index, cents, payment.ButtonIndex),
		}}}
	}
}

// handleDownsellBuy services a downsell offer click. When the downsell
// carries its own bump, the bump question interposes before the charge.
func (e *Engine) handleDownsellBuy(ctx context.Context, u *domain.Update, downsellIndex, mainIndex int, cents int64) error {
	cfg, err := e.Configs.GetByBotID(ctx, u.BotID)
	if err != nil {
		return fmt.Errorf("load bot config: %w", err)
	}
	if downsellIndex < 0 || downsellIndex >= len(cfg.Downsells) {
		return fmt.Errorf("downsell callback for missing offer %d", downsellIndex)
	}
	d := cfg.Downsells[downsellIndex]

	if d.OrderBump != nil && d.OrderBump.Enabled {
		// Park the main index in a session so the bump answer can finish
		// the sale with full context.
		session := &domain.BumpSession{
			BotID:         u.BotID,
			ChatID:        u.ChatID,
			OriginalPrice: float64(cents) / 100,
			Description:   d.Text,
			MainIndex:     mainIndex,
			Bumps:         []domain.OrderBump{*d.OrderBump},
			CreatedAt:     timeNow(),
		}
		if err := e.Sessions.Put(ctx, session); err != nil {
			e.Logger.WithError(err).Warn("downsell bump session persist failed, selling directly")
			return e.sellDownsell(ctx, u, cfg, downsellIndex, mainIndex, float64(cents)/100, false, 0)
		}
		client, ok := e.Clients.Resolve(u.BotID)
		if !ok {
			return fmt.Errorf("bot %d has no live telegram client", u.BotID)
		}
		bumpCents := int64(d.OrderBump.Price*100 + 0.5)
		prompt := d.OrderBump.Text
		if prompt == "" {
			prompt = d.OrderBump.Description
		}
		return e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
			BotID:  u.BotID,
			ChatID: u.ChatID,
			Text:   fmt.Sprintf(msgBumpPrompt, prompt, d.OrderBump.Price),
			Buttons: [][]telegram.Button{
				{{Text: msgBumpYes, CallbackData: fmt.Sprintf("downsell_bump_yes_%d_%d", downsellIndex, cents+bumpCents)}},
				{{Text: msgBumpNo, CallbackData: fmt.Sprintf("downsell_bump_no_%d_%d", downsellIndex, cents)}},
			},
		})
	}

	return e.sellDownsell(ctx, u, cfg, downsellIndex, mainIndex, float64(cents)/100, false, 0)
}

// handleDownsellBumpAnswer finishes a downsell sale after its bump
// question. The callback cents already include the bump on yes.
func (e *Engine) handleDownsellBumpAnswer(ctx context.Context, u *domain.Update, downsellIndex int, cents int64, accepted bool) error {
	cfg, err := e.Configs.GetByBotID(ctx, u.BotID)
	if err != nil {
		return fmt.Errorf("load bot config: %w", err)
	}
	if downsellIndex < 0 || downsellIndex >= len(cfg.Downsells) {
		return fmt.Errorf("downsell bump answer for missing offer %d", downsellIndex)
	}

	mainIndex := 0
	var bumpValue float64
	if s, err := e.Sessions.Get(ctx, u.ChatID); err == nil && s != nil {
		mainIndex = s.MainIndex
		if err := e.Sessions.Delete(ctx, u.ChatID); err != nil {
			e.Logger.WithError(err).Warn("downsell bump session delete failed")
		}
	}
	if accepted {
		if ob := cfg.Downsells[downsellIndex].OrderBump; ob != nil {
			bumpValue = ob.Price
		}
	}

	return e.sellDownsell(ctx, u, cfg, downsellIndex, mainIndex, float64(cents)/100, accepted, bumpValue)
}

func (e *Engine) sellDownsell(ctx context.Context, u *domain.Update, cfg *domain.BotConfig, downsellIndex, mainIndex int, amount float64, bumpAccepted bool, bumpValue float64) error {
	d := cfg.Downsells[downsellIndex]

	var btn *domain.MainButton
	productName := fmt.Sprintf("Oferta especial %d", downsellIndex+1)
	if mainIndex >= 0 && mainIndex < len(cfg.MainButtons) {
		btn = &cfg.MainButtons[mainIndex]
		productName = btn.Text
	}

	return e.sellAndSchedule(ctx, u, PixIntent{
		BotID:             u.BotID,
		ChatID:            u.ChatID,
		CustomerName:      u.FromName,
		Username:          u.FromUsername,
		Amount:            amount,
		Description:       d.Text,
		ProductName:       productName,
		ButtonIndex:       mainIndex,
		Button:            btn,
		OrderBumpShown:    d.OrderBump != nil && d.OrderBump.Enabled,
		OrderBumpAccepted: bumpAccepted,
		OrderBumpValue:    bumpValue,
		IsDownsell:        true,
		DownsellIndex:     downsellIndex,
	})
}
