package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/kafka"
	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// activeConversationWindow is how long after the last outbound a chat
// counts as mid-conversation for the text rebounce policy.
const activeConversationWindow = 30 * time.Minute

// reWelcomeLimit throttles welcome re-sends triggered by stray text.
const reWelcomeLimit = 5 * time.Minute

// HandleStart runs the /start pipeline. /start is absolute re-entry: the
// welcome flag is reset unconditionally and any in-flight bump session is
// cancelled, because the user's newest intent supersedes everything.
func (e *Engine) HandleStart(ctx context.Context, u *domain.Update, deepLink string) error {
	log := e.Logger.WithFields(map[string]any{"bot_id": u.BotID, "chat_id": u.ChatID})

	// The chat-scoped start lock drops double-tapped /start before any
	// state is touched; the bot-scoped locks below serialize the pipeline.
	ok, err := e.Coord.Acquire(ctx, fleetredis.StartKey(u.ChatID), fleetredis.TTLStart)
	if err != nil {
		log.WithError(err).Warn("start lock check failed, proceeding")
	} else if !ok {
		e.Metrics.LockContentionTotal.WithLabelValues("start").Inc()
		return nil
	}

	ok, err = e.Coord.Acquire(ctx, fleetredis.LastStartKey(u.ChatID), fleetredis.TTLLastStart)
	if err != nil {
		log.WithError(err).Warn("last_start lock check failed, proceeding")
	} else if !ok {
		e.Metrics.LockContentionTotal.WithLabelValues("last_start").Inc()
		return nil
	}

	ok, err = e.Coord.Acquire(ctx, fleetredis.StartProcessKey(u.BotID, u.ChatID), fleetredis.TTLStartProcess)
	if err != nil {
		log.WithError(err).Warn("start_process lock check failed, proceeding")
	} else if !ok {
		e.Metrics.LockContentionTotal.WithLabelValues("start_process").Inc()
		return nil
	}
	defer e.Coord.Release(ctx, fleetredis.StartProcessKey(u.BotID, u.ChatID))

	if err := e.Sessions.Delete(ctx, u.ChatID); err != nil {
		log.WithError(err).Warn("stale bump session cleanup failed")
	}

	if _, err := e.Users.GetOrCreate(ctx, u.BotID, u.ChatID, u.FromName); err != nil {
		return fmt.Errorf("get or create bot user: %w", err)
	}
	if err := e.Users.ResetWelcome(ctx, u.BotID, u.ChatID); err != nil {
		return fmt.Errorf("reset welcome: %w", err)
	}

	cfg, err := e.Configs.GetByBotID(ctx, u.BotID)
	if err != nil {
		return fmt.Errorf("load bot config: %w", err)
	}

	e.seedTracking(ctx, u, deepLink)

	if _, err := e.Producer.Enqueue(ctx, domain.TopicTasks, kafka.TaskStartPostProcess, kafka.StartPostProcessArgs{
		BotID:       u.BotID,
		ChatID:      u.ChatID,
		DeepLink:    deepLink,
		DisplayName: u.FromName,
	}); err != nil {
		// The welcome must go out even when the broker is down.
		log.WithError(err).Error("start post-process enqueue failed")
	}

	if err := e.sendWelcome(ctx, u.BotID, u.ChatID, cfg); err != nil {
		return err
	}

	if err := e.Users.MarkWelcomeSent(ctx, u.BotID, u.ChatID, timeNow()); err != nil {
		log.WithError(err).Warn("mark welcome sent failed")
	}
	return nil
}

// seedTracking decodes the deep link and seeds the tracking cache so the
// attribution chain survives even if the post-process worker lags. Device
// enrichment stays on the queue; geo runs detached here.
func (e *Engine) seedTracking(ctx context.Context, u *domain.Update, deepLink string) {
	dl, err := DecodeDeepLink(deepLink)
	if err != nil {
		e.Logger.WithError(err).WithField("chat_id", u.ChatID).Debug("undecodable deep link")
		return
	}
	if dl == nil {
		return
	}

	fbclid := ""
	if dl.FbclidHash != "" {
		fbclid, err = e.Tracking.ResolveShortHash(ctx, dl.FbclidHash)
		if err != nil {
			e.Logger.WithError(err).Debug("short-hash resolve failed")
		}
	}

	payload := &domain.TrackingPayload{
		BotID:        u.BotID,
		ChatID:       u.ChatID,
		PoolID:       dl.PoolID,
		Fbclid:       fbclid,
		UTMSource:    dl.UTMSource,
		UTMMedium:    dl.UTMMedium,
		UTMCampaign:  dl.UTMCampaign,
		CampaignCode: dl.CampaignCode,
	}
	if dl.ExternalID != "" {
		payload.ExternalIDs = []string{dl.ExternalID}
	}

	// Prefer the click payload captured on the landing page.
	if fbclid != "" {
		if prior, err := e.Tracking.RecoverByFbclid(ctx, fbclid); err == nil {
			payload.Merge(prior)
		}
	}
	if payload.Token == "" {
		token, err := e.Tracking.GenerateToken(ctx, u.BotID, u.ChatID, fbclid)
		if err != nil {
			e.Logger.WithError(err).Warn("tracking token mint failed")
			return
		}
		payload.Token = token
	}
	if err := e.Tracking.Save(ctx, payload); err != nil {
		e.Logger.WithError(err).Warn("tracking save failed")
	}

	e.enrichGeo(u.BotID, u.ChatID, payload.ClickIP)
	e.dispatchViewContent(ctx, u, dl, payload)
}

// enrichGeo fills the BotUser location fields from the click IP. Detached:
// the lookup hits a third party and must never delay the welcome.
func (e *Engine) enrichGeo(botID uint, chatID int64, clickIP string) {
	if e.Geo == nil || clickIP == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log := e.Logger.WithFields(map[string]any{"bot_id": botID, "chat_id": chatID})

		user, err := e.Users.Get(ctx, botID, chatID)
		if err != nil || user.GeoCity != "" {
			return
		}
		loc, err := e.Geo.Lookup(ctx, clickIP)
		if err != nil {
			log.WithError(err).Debug("geo lookup failed")
			return
		}
		user.GeoCity = loc.City
		user.GeoState = loc.State
		user.GeoCountry = loc.Country
		if err := e.Users.Update(ctx, user); err != nil {
			log.WithError(err).Warn("geo enrichment persist failed")
		}
	}()
}

// sendWelcome composes and sends the welcome step. Main buttons become
// buy_<i> callbacks; redirect buttons become URL buttons on their own rows.
func (e *Engine) sendWelcome(ctx context.Context, botID uint, chatID int64, cfg *domain.BotConfig) error {
	client, ok := e.Clients.Resolve(botID)
	if !ok {
		return fmt.Errorf("bot %d has no live telegram client", botID)
	}

	rows := make([][]telegram.Button, 0, len(cfg.MainButtons)+len(cfg.RedirectButtons))
	for i, btn := range cfg.MainButtons {
		rows = append(rows, []telegram.Button{{
			Text:         btn.Text,
			CallbackData: fmt.Sprintf("buy_%d", i),
		}})
	}
	for _, btn := range cfg.RedirectButtons {
		rows = append(rows, []telegram.Button{{Text: btn.Text, URL: btn.URL}})
	}

	return e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID:     botID,
		ChatID:    chatID,
		Text:      cfg.WelcomeText,
		MediaURL:  cfg.WelcomeMediaURL,
		MediaKind: cfg.WelcomeMediaKind,
		Buttons:   rows,
	})
}

// handleText is the rebounce policy for free text: inside an active
// conversation the text is only logged; outside one, the welcome is
// re-sent at most once per reWelcomeLimit. ViewContent is never
// re-dispatched from here.
func (e *Engine) handleText(ctx context.Context, u *domain.Update) error {
	lastOut, err := e.Messages.LastOutboundAt(ctx, u.BotID, u.ChatID)
	if err != nil {
		return err
	}
	now := timeNow()
	if lastOut != nil && now.Sub(*lastOut) < activeConversationWindow {
		return nil
	}

	user, err := e.Users.Get(ctx, u.BotID, u.ChatID)
	if err != nil {
		return err
	}
	if user.WelcomeSentAt != nil && now.Sub(*user.WelcomeSentAt) < reWelcomeLimit {
		return nil
	}

	cfg, err := e.Configs.GetByBotID(ctx, u.BotID)
	if err != nil {
		return err
	}
	if err := e.sendWelcome(ctx, u.BotID, u.ChatID, cfg); err != nil {
		return err
	}
	return e.Users.MarkWelcomeSent(ctx, u.BotID, u.ChatID, now)
}
