package funnel

import (
	"context"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// handleBuy starts the purchase path for main button i. Any in-flight bump
// session is cancelled first: a new click is new intent.
func (e *Engine) handleBuy(ctx context.Context, u *domain.Update, index int) error {
	if err := e.Sessions.Delete(ctx, u.ChatID); err != nil {
		e.Logger.WithError(err).Warn("bump session cancellation failed")
	}

	cfg, err := e.Configs.GetByBotID(ctx, u.BotID)
	if err != nil {
		return fmt.Errorf("load bot config: %w", err)
	}
	if index < 0 || index >= len(cfg.MainButtons) {
		return fmt.Errorf("buy callback for missing button %d", index)
	}
	btn := cfg.MainButtons[index]

	bumps := enabledBumps(btn.OrderBumps)
	if len(bumps) == 0 {
		return e.sellAndSchedule(ctx, u, PixIntent{
			BotID:        u.BotID,
			ChatID:       u.ChatID,
			CustomerName: u.FromName,
			Username:     u.FromUsername,
			Amount:       btn.Price,
			Description:  productDescription(btn),
			ProductName:  btn.Text,
			ButtonIndex:  index,
			Button:       &btn,
		})
	}

	session := &domain.BumpSession{
		BotID:         u.BotID,
		ChatID:        u.ChatID,
		OriginalPrice: btn.Price,
		Description:   productDescription(btn),
		MainIndex:     index,
		Bumps:         bumps,
		CreatedAt:     timeNow(),
	}
	if err := e.Sessions.Put(ctx, session); err != nil {
		// A lost session degrades to selling without bumps, not to silence.
		e.Logger.WithError(err).Warn("bump session persist failed, selling directly")
		return e.sellAndSchedule(ctx, u, PixIntent{
			BotID: u.BotID, ChatID: u.ChatID, CustomerName: u.FromName, Username: u.FromUsername,
			Amount: btn.Price, Description: productDescription(btn), ProductName: btn.Text,
			ButtonIndex: index, Button: &btn,
		})
	}
	return e.showBump(ctx, session)
}

// showBump presents bump CurrentIndex of the session. Prices ride in the
// callback as cents so a config edit mid-session cannot change the charge.
func (e *Engine) showBump(ctx context.Context, s *domain.BumpSession) error {
	client, ok := e.Clients.Resolve(s.BotID)
	if !ok {
		return fmt.Errorf("bot %d has no live telegram client", s.BotID)
	}
	bump := s.Bumps[s.CurrentIndex]
	cents := int64(bump.Price*100 + 0.5)

	prompt := bump.Text
	if prompt == "" {
		prompt = bump.Description
	}

	return e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID:  s.BotID,
		ChatID: s.ChatID,
		Text:   fmt.Sprintf(msgBumpPrompt, prompt, bump.Price),
		Buttons: [][]telegram.Button{
			{{Text: msgBumpYes, CallbackData: fmt.Sprintf("multi_bump_yes_%d_%d_%d", s.ChatID, s.CurrentIndex, cents)}},
			{{Text: msgBumpNo, CallbackData: fmt.Sprintf("multi_bump_no_%d_%d_%d", s.ChatID, s.CurrentIndex, cents)}},
		},
	})
}

// handleMultiBumpAnswer advances the sequential bump flow one step.
func (e *Engine) handleMultiBumpAnswer(ctx context.Context, u *domain.Update, bumpIndex int, cents int64, accepted bool) error {
	s, err := e.Sessions.Get(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if s == nil || s.BotID != u.BotID {
		// Session expired or superseded; the answer has nothing to apply to.
		e.Logger.WithFields(map[string]any{"chat_id": u.ChatID}).Debug("bump answer without session")
		return nil
	}
	if bumpIndex != s.CurrentIndex || bumpIndex >= len(s.Bumps) {
		e.Logger.WithFields(map[string]any{"chat_id": u.ChatID, "index": bumpIndex}).Debug("out-of-step bump answer ignored")
		return nil
	}

	if accepted {
		s.Accepted = append(s.Accepted, bumpIndex)
		s.BumpValue += float64(cents) / 100
	}
	s.CurrentIndex++

	if s.CurrentIndex < len(s.Bumps) {
		if err := e.Sessions.Put(ctx, s); err != nil {
			return err
		}
		return e.showBump(ctx, s)
	}
	return e.finalizeBumpSession(ctx, u, s)
}

// handleBumpAnswer services the legacy single-bump vocabulary by folding
// it into the sequential flow.
func (e *Engine) handleBumpAnswer(ctx context.Context, u *domain.Update, bumpIndex int, accepted bool) error {
	s, err := e.Sessions.Get(ctx, u.ChatID)
	if err != nil {
		return err
	}
	if s == nil || bumpIndex >= len(s.Bumps) {
		return nil
	}
	cents := int64(s.Bumps[bumpIndex].Price*100 + 0.5)
	return e.handleMultiBumpAnswer(ctx, u, bumpIndex, cents, accepted)
}

func (e *Engine) finalizeBumpSession(ctx context.Context, u *domain.Update, s *domain.BumpSession) error {
	if err := e.Sessions.Delete(ctx, u.ChatID); err != nil {
		e.Logger.WithError(err).Warn("bump session delete failed")
	}

	cfg, err := e.Configs.GetByBotID(ctx, s.BotID)
	if err != nil {
		return fmt.Errorf("load bot config: %w", err)
	}
	var btn *domain.MainButton
	if s.MainIndex >= 0 && s.MainIndex < len(cfg.MainButtons) {
		btn = &cfg.MainButtons[s.MainIndex]
	}

	productName := s.Description
	if btn != nil {
		productName = btn.Text
	}

	return e.sellAndSchedule(ctx, u, PixIntent{
		BotID:             s.BotID,
		ChatID:            s.ChatID,
		CustomerName:      u.FromName,
		Username:          u.FromUsername,
		Amount:            s.OriginalPrice + s.BumpValue,
		Description:       s.Description,
		ProductName:       productName,
		ButtonIndex:       s.MainIndex,
		Button:            btn,
		OrderBumpShown:    true,
		OrderBumpAccepted: len(s.Accepted) > 0,
		OrderBumpValue:    s.BumpValue,
	})
}

func enabledBumps(bumps []domain.OrderBump) []domain.OrderBump {
	out := make([]domain.OrderBump, 0, len(bumps))
	for _, b := range bumps {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

func productDescription(btn domain.MainButton) string {
	if btn.Description != "" {
		return btn.Description
	}
	return btn.Text
}
