package funnel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/kafka"
)

// metaEventID derives a stable event id so Meta dedupes our retries and
// the browser pixel's duplicate of the same event.
func metaEventID(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// dispatchViewContent enqueues the first-/start ViewContent event. The
// meta_viewcontent_sent flag flip is the at-most-once gate: only the
// worker that wins the flip enqueues.
func (e *Engine) dispatchViewContent(ctx context.Context, u *domain.Update, dl *DeepLink, tracking *domain.TrackingPayload) {
	if dl == nil || dl.PoolID == 0 {
		return
	}
	log := e.Logger.WithFields(map[string]any{"bot_id": u.BotID, "chat_id": u.ChatID, "pool_id": dl.PoolID})

	pool, err := e.Pools.GetByID(ctx, dl.PoolID)
	if err != nil {
		log.WithError(err).Warn("pool load failed for viewcontent")
		return
	}
	if !pool.TrackingEnabled || !pool.EventsEnabled || pool.PixelID == "" {
		return
	}

	won, err := e.Users.MarkViewContentSent(ctx, u.BotID, u.ChatID)
	if err != nil {
		log.WithError(err).Warn("viewcontent flag flip failed")
		return
	}
	if !won {
		return
	}

	accessToken, err := e.Box.Decrypt(pool.PixelAccessToken)
	if err != nil {
		log.WithError(err).Error("pool pixel token decrypt failed")
		return
	}

	bot, err := e.Bots.GetByID(ctx, u.BotID)
	if err != nil {
		log.WithError(err).Warn("bot load failed for viewcontent")
		return
	}

	args := kafka.MetaEventArgs{
		PixelID:       pool.PixelID,
		AccessToken:   accessToken,
		EventName:     "ViewContent",
		EventID:       metaEventID("viewcontent", fmt.Sprint(pool.ID), fmt.Sprint(u.ChatID)),
		EventTime:     timeNow().Unix(),
		TestEventCode: e.Config.Platform.MetaTestEventCode,
		UserData:      metaUserData(tracking, u.ChatID),
		CustomData: map[string]any{
			"pool_id":       pool.ID,
			"pool_slug":     pool.Slug,
			"bot_id":        bot.ID,
			"bot_username":  bot.Username,
			"utm_source":    tracking.UTMSource,
			"utm_medium":    tracking.UTMMedium,
			"utm_campaign":  tracking.UTMCampaign,
			"campaign_code": tracking.CampaignCode,
		},
	}
	if _, err := e.Producer.Enqueue(ctx, domain.TopicTasks, kafka.TaskMetaViewContent, args); err != nil {
		log.WithError(err).Error("viewcontent enqueue failed")
	}
}

// enqueuePurchase builds and publishes the Purchase event for a paid
// payment. Caller must already hold the meta_purchase_sent flip.
func (e *Engine) enqueuePurchase(ctx context.Context, p *domain.Payment) error {
	tracking, err := e.Tracking.RecoverForPayment(ctx, p.ExternalID)
	if err != nil {
		e.Logger.WithError(err).Warn("payment tracking recover failed, using row snapshot")
	}
	if tracking == nil {
		tracking = &domain.TrackingPayload{
			Fbclid:          p.Fbclid,
			Fbp:             p.Fbp,
			Fbc:             p.Fbc,
			PageViewEventID: p.PageViewEventID,
			ClickIP:         p.ClickIP,
			UserAgent:       p.UserAgent,
		}
	}

	if tracking.PoolID == 0 {
		// Without a pool there is no pixel to hit; the dashboard event
		// still records the sale.
		return nil
	}
	pool, err := e.Pools.GetByID(ctx, tracking.PoolID)
	if err != nil {
		return fmt.Errorf("load pool %d for purchase event: %w", tracking.PoolID, err)
	}
	if !pool.TrackingEnabled || !pool.EventsEnabled || pool.PixelID == "" {
		return nil
	}
	accessToken, err := e.Box.Decrypt(pool.PixelAccessToken)
	if err != nil {
		return fmt.Errorf("pool pixel token decrypt: %w", err)
	}

	// Reusing the PageView event id lets Meta collapse the browser-side
	// pixel hit and this server event into one conversion.
	eventID := p.PageViewEventID
	if eventID == "" {
		eventID = metaEventID("purchase", p.ExternalID)
	}

	args := kafka.MetaEventArgs{
		PixelID:       pool.PixelID,
		AccessToken:   accessToken,
		EventName:     "Purchase",
		EventID:       eventID,
		EventTime:     timeNow().Unix(),
		TestEventCode: e.Config.Platform.MetaTestEventCode,
		UserData:      metaUserData(tracking, p.CustomerChatID),
		CustomData: map[string]any{
			"currency":     "BRL",
			"value":        p.Amount,
			"content_name": p.ProductName,
			"external_id":  p.ExternalID,
		},
	}
	if _, err := e.Producer.Enqueue(ctx, domain.TopicTasks, kafka.TaskMetaPurchase, args); err != nil {
		return fmt.Errorf("purchase enqueue: %w", err)
	}
	return nil
}

// metaUserData assembles Meta's user_data block. External ids prefer the
// click id, then the chat id, plus any landing-page ids that survived.
func metaUserData(t *domain.TrackingPayload, chatID int64) map[string]any {
	externalIDs := make([]string, 0, 2+len(t.ExternalIDs))
	if t.Fbclid != "" {
		externalIDs = append(externalIDs, t.Fbclid)
	}
	if chatID != 0 {
		externalIDs = append(externalIDs, fmt.Sprint(chatID))
	}
	externalIDs = append(externalIDs, t.ExternalIDs...)

	data := map[string]any{"external_id": externalIDs}
	if t.Fbp != "" {
		data["fbp"] = t.Fbp
	}
	if t.Fbc != "" {
		data["fbc"] = t.Fbc
	}
	if t.ClickIP != "" {
		data["client_ip_address"] = t.ClickIP
	}
	if t.UserAgent != "" {
		data["client_user_agent"] = t.UserAgent
	}
	return data
}
