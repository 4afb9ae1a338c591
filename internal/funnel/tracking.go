package funnel

import (
	"context"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

// resolveTracking rebuilds the attribution payload for a purchase. The
// chain prefers the freshest identifier: the chat's last token, then the
// chat index, then the token stored on the BotUser, then a newly minted
// payload. Whatever is found is enriched from the BotUser row and missing
// browser identifiers are synthesized.
func (e *Engine) resolveTracking(ctx context.Context, botID uint, chatID int64, user *domain.BotUser) *domain.TrackingPayload {
	var payload *domain.TrackingPayload

	if p, err := e.Tracking.RecoverByLastToken(ctx, chatID); err == nil && p != nil {
		payload = p
	}
	if payload == nil {
		if p, err := e.Tracking.RecoverByChat(ctx, chatID); err == nil && p != nil {
			payload = p
		}
	}
	if payload == nil && user != nil && user.TrackingToken != "" {
		if p, err := e.Tracking.Recover(ctx, user.TrackingToken); err == nil && p != nil {
			payload = p
		}
	}
	if payload == nil {
		payload = &domain.TrackingPayload{BotID: botID, ChatID: chatID}
		if user != nil {
			payload.Fbclid = user.Fbclid
		}
		token, err := e.Tracking.GenerateToken(ctx, botID, chatID, payload.Fbclid)
		if err != nil {
			e.Logger.WithError(err).Warn("tracking token mint failed during resolve")
		} else {
			payload.Token = token
		}
	}

	if user != nil {
		payload.Merge(&domain.TrackingPayload{
			Fbclid:       user.Fbclid,
			Fbp:          user.Fbp,
			Fbc:          user.Fbc,
			UTMSource:    user.UTMSource,
			UTMMedium:    user.UTMMedium,
			UTMCampaign:  user.UTMCampaign,
			CampaignCode: user.CampaignCode,
			ClickIP:      user.ClickIP,
			UserAgent:    user.UserAgent,
		})
	}

	synthesizeBrowserIDs(payload, chatID)
	return payload
}

// synthesizeBrowserIDs fills fbp/fbc in Meta's wire format when the real
// browser cookies never reached us. Meta accepts synthetic values as long
// as the shape is right; matching quality just drops.
func synthesizeBrowserIDs(p *domain.TrackingPayload, chatID int64) {
	nowMs := timeNow().UnixMilli()
	if p.Fbp == "" {
		seed := chatID
		if seed < 0 {
			seed = -seed
		}
		p.Fbp = fmt.Sprintf("fb.1.%d.%d", nowMs, seed)
	}
	if p.Fbc == "" && p.Fbclid != "" {
		p.Fbc = fmt.Sprintf("fb.1.%d.%s", nowMs, p.Fbclid)
	}
}
