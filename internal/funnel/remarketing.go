package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// remarketingPacing spaces broadcast sends to stay under Telegram's
// per-bot throughput ceiling.
const remarketingPacing = 50 * time.Millisecond

// DispatchCampaign broadcasts one campaign to its audience. Counters are
// monotonic: a re-run only ever adds.
func (e *Engine) DispatchCampaign(ctx context.Context, campaign *domain.RemarketingCampaign) error {
	log := e.Logger.WithFields(map[string]any{"campaign_id": campaign.ID, "bot_id": campaign.BotID})

	client, ok := e.Clients.Resolve(campaign.BotID)
	if !ok {
		return fmt.Errorf("bot %d has no live telegram client", campaign.BotID)
	}

	users, err := e.Users.ListForRemarketing(ctx, campaign.BotID, campaign.Audience)
	if err != nil {
		return fmt.Errorf("list audience: %w", err)
	}

	rows := make([][]telegram.Button, 0, len(campaign.Buttons))
	for i, btn := range campaign.Buttons {
		b := telegram.Button{Text: btn.Text}
		if btn.URL != "" {
			b.URL = btn.URL
		} else {
			b.CallbackData = fmt.Sprintf("rmkt_%d_%d", campaign.ID, i)
		}
		rows = append(rows, []telegram.Button{b})
	}

	var sent, failed int64
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}

		banned, err := e.Remarketing.IsBlacklisted(ctx, campaign.BotID, user.ChatID)
		if err != nil {
			log.WithError(err).Warn("blacklist check failed")
		} else if banned {
			continue
		}

		err = e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
			BotID:     campaign.BotID,
			ChatID:    user.ChatID,
			Text:      campaign.Text,
			MediaURL:  campaign.MediaURL,
			MediaKind: campaign.MediaKind,
			Buttons:   rows,
		})
		if err != nil {
			failed++
			// A chat that blocked the bot is permanently unreachable;
			// blacklist it so future campaigns skip the send.
			if err := e.Remarketing.Blacklist(ctx, campaign.BotID, user.ChatID, "send failed"); err != nil {
				log.WithError(err).Warn("blacklist insert failed")
			}
		} else {
			sent++
		}
		time.Sleep(remarketingPacing)
	}

	if err := e.Remarketing.IncrementSent(ctx, campaign.ID, sent, failed); err != nil {
		log.WithError(err).Error("campaign counter update failed")
	}
	log.WithFields(map[string]any{"sent": sent, "failed": failed}).Info("campaign dispatched")
	return nil
}

// HandleRemarketingClick turns a campaign button press into a charge.
func (e *Engine) HandleRemarketingClick(ctx context.Context, u *domain.Update, campaignID uint, buttonIndex int) error {
	campaign, err := e.Remarketing.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if buttonIndex < 0 || buttonIndex >= len(campaign.Buttons) {
		return fmt.Errorf("remarketing callback for missing button %d", buttonIndex)
	}
	btn := campaign.Buttons[buttonIndex]

	if err := e.Remarketing.IncrementClicked(ctx, campaignID); err != nil {
		e.Logger.WithError(err).Warn("campaign click counter failed")
	}
	if btn.Price <= 0 {
		return nil
	}

	return e.sellAndSchedule(ctx, u, PixIntent{
		BotID:           u.BotID,
		ChatID:          u.ChatID,
		CustomerName:    u.FromName,
		Username:        u.FromUsername,
		Amount:          btn.Price,
		Description:     btn.Text,
		ProductName:     btn.Text,
		ButtonIndex:     buttonIndex,
		FromRemarketing: true,
	})
}
