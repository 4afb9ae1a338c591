// Package telegram adapts the fleet to the Bot API: token validation,
// webhook install with long-poll failover, sequenced sends, and canonical
// update extraction.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/logging"
)

const tokenValidationAttempts = 5

var defaultAllowedUpdates = bot.AllowedUpdates{
	"message",
	"callback_query",
	"chat_member",
}

type Mode string

const (
	ModeWebhook  Mode = "webhook"
	ModeLongPoll Mode = "long_poll"
)

// Client owns one bot's Telegram connection.
type Client struct {
	botID  uint
	api    *bot.Bot
	mode   Mode
	logger *logrus.Entry
}

// ValidateToken calls getMe with exponential backoff. Retries cover
// transient DNS and connection errors; a 401 fails immediately because the
// token itself is wrong.
func ValidateToken(ctx context.Context, token string) (username string, err error) {
	api, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return "", fmt.Errorf("build telegram client: %w", err)
	}

	for attempt := 1; attempt <= tokenValidationAttempts; attempt++ {
		me, getErr := api.GetMe(ctx)
		if getErr == nil {
			return me.Username, nil
		}
		err = getErr
		if strings.Contains(getErr.Error(), "401") {
			return "", fmt.Errorf("token rejected: %w", getErr)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(1<<attempt) * time.Second):
		}
	}
	return "", fmt.Errorf("getMe failed after %d attempts: %w", tokenValidationAttempts, err)
}

// NewClient builds the connection with the update handler wired in. The
// handler runs for webhook and long-poll ingestion alike.
func NewClient(botID uint, token string, handler bot.HandlerFunc, logger *logrus.Entry) (*Client, error) {
	if logger == nil {
		logger = logging.Logger()
	}
	logger = logger.WithField("bot_id", botID)

	api, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(handler),
		bot.WithErrorsHandler(func(err error) {
			if err != nil {
				logger.WithError(err).Error("telegram transport error")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram client for bot %d: %w", botID, err)
	}

	return &Client{botID: botID, api: api, mode: ModeLongPoll, logger: logger}, nil
}

func (c *Client) API() *bot.Bot { return c.api }
func (c *Client) Mode() Mode    { return c.mode }

// WebhookURL builds the ingestion endpoint for this bot.
func WebhookURL(base string, botID uint) string {
	return fmt.Sprintf("%s/webhook/telegram/%d", strings.TrimRight(base, "/"), botID)
}

// InstallWebhook sets the webhook and verifies it took via getWebhookInfo.
// A persistent 502 in the webhook's last error means Telegram cannot reach
// us; the caller should fail over to long-poll.
func (c *Client) InstallWebhook(ctx context.Context, baseURL string) error {
	url := WebhookURL(baseURL, c.botID)
	if _, err := c.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            url,
		AllowedUpdates: defaultAllowedUpdates,
	}); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}

	info, err := c.api.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("getWebhookInfo: %w", err)
	}
	if info.URL != url {
		return fmt.Errorf("webhook url mismatch: want %s, telegram reports %s", url, info.URL)
	}
	if persistent502(info) {
		return errWebhookUnreachable
	}

	c.mode = ModeWebhook
	c.logger.WithField("url", url).Info("webhook installed")
	return nil
}

// AuditWebhook re-checks webhook health. Returns the mode the bot should
// run in after the audit.
func (c *Client) AuditWebhook(ctx context.Context, baseURL string) (Mode, error) {
	url := WebhookURL(baseURL, c.botID)
	info, err := c.api.GetWebhookInfo(ctx)
	if err != nil {
		return c.mode, fmt.Errorf("getWebhookInfo: %w", err)
	}

	switch {
	case persistent502(info):
		c.logger.WithField("last_error", info.LastErrorMessage).Warn("webhook persistently failing, failing over to long-poll")
		if err := c.Failover(ctx); err != nil {
			return c.mode, err
		}
		return ModeLongPoll, nil
	case info.URL != url:
		// Webhook was dropped or points elsewhere; re-install.
		if err := c.InstallWebhook(ctx, baseURL); err != nil {
			return c.mode, err
		}
		return ModeWebhook, nil
	default:
		c.mode = ModeWebhook
		return ModeWebhook, nil
	}
}

// Failover deletes the webhook so getUpdates polling can take over.
func (c *Client) Failover(ctx context.Context) error {
	if _, err := c.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: false}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	c.mode = ModeLongPoll
	return nil
}

// StartLongPoll blocks polling getUpdates until ctx is cancelled.
func (c *Client) StartLongPoll(ctx context.Context) {
	c.mode = ModeLongPoll
	c.logger.Info("long-poll started")
	c.api.Start(ctx)
	c.logger.Info("long-poll stopped")
}

// AnswerCallback acknowledges a callback query so the client stops its
// spinner. Failures are logged and swallowed; the funnel already acted.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) {
	if callbackID == "" {
		return
	}
	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	}); err != nil {
		c.logger.WithError(err).Debug("answerCallbackQuery failed")
	}
}

// KickFromChat removes a user from a VIP chat and immediately unbans so
// they can rejoin after a new purchase.
func (c *Client) KickFromChat(ctx context.Context, chatID, userID int64) error {
	if _, err := c.api.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("banChatMember: %w", err)
	}
	_, err := c.api.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	})
	return err
}

var errWebhookUnreachable = fmt.Errorf("telegram reports persistent 502 on webhook")

func persistent502(info *models.WebhookInfo) bool {
	if info == nil || info.LastErrorMessage == "" {
		return false
	}
	// A stale error from hours ago is not persistent.
	if time.Since(time.Unix(int64(info.LastErrorDate), 0)) > 10*time.Minute {
		return false
	}
	return strings.Contains(info.LastErrorMessage, "502")
}
