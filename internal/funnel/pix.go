package funnel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/gateway"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// pixReuseWindow is how long a pending PIX for the same product and exact
// amount is handed back instead of minting a new charge.
const pixReuseWindow = 5 * time.Minute

// pixRateLimitWindow blocks a second PIX for a different product while one
// this fresh is still pending.
const pixRateLimitWindow = 2 * time.Minute

// RateLimitError carries the remaining wait for the customer message.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("pending payment rate limit, wait %s", e.Wait)
}

func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

// PixIntent is everything a buy path knows when it asks for a charge.
type PixIntent struct {
	BotID        uint
	ChatID       int64
	CustomerName string
	Username     string

	Amount      float64
	Description string
	ProductName string
	ButtonIndex int
	Button      *domain.MainButton

	OrderBumpShown    bool
	OrderBumpAccepted bool
	OrderBumpValue    float64
	IsDownsell        bool
	DownsellIndex     int
	FromRemarketing   bool
}

// CreatePIX is the single charge-minting path behind every buy, bump,
// downsell, and remarketing button.
func (e *Engine) CreatePIX(ctx context.Context, intent PixIntent) (*domain.Payment, error) {
	if intent.ChatID == 0 {
		// Without a chat id the Purchase event can never be attributed.
		return nil, fmt.Errorf("pix intent without customer chat id")
	}

	bot, err := e.Bots.GetByID(ctx, intent.BotID)
	if err != nil {
		return nil, fmt.Errorf("load bot %d: %w", intent.BotID, err)
	}
	gw, err := e.Gateways.PickActiveVerified(ctx, bot.TenantID)
	if err != nil || gw == nil {
		return nil, domain.ErrNoActiveGateway
	}
	provider, err := e.Registry.ForGateway(gw)
	if err != nil {
		return nil, err
	}

	if provider.AllowsPixReuse() {
		existing, err := e.Payments.FindReusable(ctx, intent.BotID, intent.ChatID, intent.ProductName, intent.Amount, pixReuseWindow)
		if err != nil {
			e.Logger.WithError(err).Warn("pix reuse lookup failed")
		} else if existing != nil {
			e.Metrics.PixReuseTotal.WithLabelValues(gw.Kind).Inc()
			return existing, nil
		}
	}

	other, err := e.Payments.FindRecentPendingOther(ctx, intent.BotID, intent.ChatID, intent.ProductName, pixRateLimitWindow)
	if err != nil {
		e.Logger.WithError(err).Warn("rate limit lookup failed")
	} else if other != nil {
		e.Metrics.RateLimitedTotal.WithLabelValues(gw.Kind).Inc()
		wait := pixRateLimitWindow - timeNow().Sub(other.CreatedAt)
		return nil, &RateLimitError{Wait: wait}
	}

	externalID := mintExternalID(intent.BotID, timeNow())

	user, err := e.Users.Get(ctx, intent.BotID, intent.ChatID)
	if err != nil && !errors.Is(err, domain.ErrBotUserNotFound) {
		e.Logger.WithError(err).Warn("bot user load failed during pix")
	}
	tracking := e.resolveTracking(ctx, intent.BotID, intent.ChatID, user)

	timer := prometheus.NewTimer(e.Metrics.PixGenerateDuration.WithLabelValues(gw.Kind))
	result, err := provider.GeneratePIX(ctx, gateway.PixRequest{
		Amount:       intent.Amount,
		Description:  intent.Description,
		ExternalID:   externalID,
		SplitPercent: gw.SplitPercent,
		Customer: gateway.Customer{
			ChatID:   intent.ChatID,
			Name:     intent.CustomerName,
			Username: intent.Username,
		},
	})
	timer.ObserveDuration()
	if err != nil {
		e.Metrics.PaymentsFailedTotal.WithLabelValues(gw.Kind, failReason(err)).Inc()
		return nil, err
	}

	payment := &domain.Payment{
		BotID:         intent.BotID,
		ExternalID:    externalID,
		GatewayKind:   gw.Kind,
		GatewayTxID:   result.TxID,
		GatewayTxHash: result.TxHash,
		Amount:        intent.Amount,
		Status:        domain.PaymentPending,
		PixCode:       result.PixCode,
		QRCodeURL:     result.QRCodeURL,

		CustomerChatID:   intent.ChatID,
		CustomerName:     intent.CustomerName,
		CustomerUsername: intent.Username,
		ProductName:      intent.ProductName,
		ButtonIndex:      intent.ButtonIndex,
		ButtonConfig:     intent.Button,

		OrderBumpShown:    intent.OrderBumpShown,
		OrderBumpAccepted: intent.OrderBumpAccepted,
		OrderBumpValue:    intent.OrderBumpValue,
		IsDownsell:        intent.IsDownsell,
		DownsellIndex:     intent.DownsellIndex,
		FromRemarketing:   intent.FromRemarketing,

		DeliveryToken:   e.DeliveryToken(),
		HasSubscription: intent.Button != nil && intent.Button.Subscription != nil,

		Fbclid:          tracking.Fbclid,
		Fbp:             tracking.Fbp,
		Fbc:             tracking.Fbc,
		UTMSource:       tracking.UTMSource,
		UTMMedium:       tracking.UTMMedium,
		UTMCampaign:     tracking.UTMCampaign,
		CampaignCode:    tracking.CampaignCode,
		TrackingToken:   tracking.Token,
		PageViewEventID: tracking.PageViewEventID,
		ClickIP:         tracking.ClickIP,
		UserAgent:       tracking.UserAgent,

		CreatedAt: timeNow(),
	}
	if user != nil {
		payment.Device = user.Device
		payment.OS = user.OS
		payment.Browser = user.Browser
	}

	if err := e.Payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	if err := e.Tracking.SaveForPayment(ctx, externalID, tracking); err != nil {
		e.Logger.WithError(err).Warn("tracking save for payment failed")
	}
	if err := e.Gateways.IncrementTotal(ctx, gw.ID); err != nil {
		e.Logger.WithError(err).Warn("gateway total increment failed")
	}
	e.Metrics.PaymentsCreatedTotal.WithLabelValues(gw.Kind).Inc()

	return payment, nil
}

// sellAndSchedule runs the full post-intent path: create the charge, send
// the PIX message, arm downsells. Provider refusals turn into customer
// messages instead of bubbling.
func (e *Engine) sellAndSchedule(ctx context.Context, u *domain.Update, intent PixIntent) error {
	payment, err := e.CreatePIX(ctx, intent)
	if err != nil {
		return e.sendPixFailure(ctx, u, err)
	}

	if err := e.sendPixMessage(ctx, u.BotID, u.ChatID, payment); err != nil {
		return err
	}

	if !intent.IsDownsell {
		cfg, err := e.Configs.GetByBotID(ctx, u.BotID)
		if err == nil && cfg.DownsellsEnabled {
			e.ScheduleDownsells(payment, cfg)
		}
	}
	return nil
}

func (e *Engine) sendPixMessage(ctx context.Context, botID uint, chatID int64, p *domain.Payment) error {
	client, ok := e.Clients.Resolve(botID)
	if !ok {
		return fmt.Errorf("bot %d has no live telegram client", botID)
	}
	return e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID:  botID,
		ChatID: chatID,
		Text:   fmt.Sprintf(msgPixCreated, p.PixCode, msgVerifyButton),
		Buttons: [][]telegram.Button{{{
			Text:         msgVerifyButton,
			CallbackData: fmt.Sprintf("verify_%d", p.ID),
		}}},
	})
}

func (e *Engine) sendPixFailure(ctx context.Context, u *domain.Update, cause error) error {
	var msg string
	var rl *RateLimitError
	switch {
	case errors.As(cause, &rl):
		msg = rateLimitMessage(rl.Wait)
	case errors.Is(cause, domain.ErrNoActiveGateway):
		msg = msgNoGateway
	default:
		msg = msgPixRefused
	}

	client, ok := e.Clients.Resolve(u.BotID)
	if !ok {
		return cause
	}
	if err := e.Sender.SendSequenced(ctx, client.API(), telegram.SendParams{
		BotID: u.BotID, ChatID: u.ChatID, Text: msg,
	}); err != nil {
		return err
	}
	if errors.As(cause, &rl) {
		// Rate limiting is working as intended, not a failure.
		return nil
	}
	return cause
}

// mintExternalID builds the deterministic-format payment id the gateways
// and the dashboard both key on.
func mintExternalID(botID uint, now time.Time) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("BOT%d_%d_%s", botID, now.Unix(), entropy)
}

func failReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, domain.ErrPixRefused):
		return "refused"
	default:
		return "error"
	}
}
