// Package funnel drives the per-chat sales state machine: welcome, buy
// buttons, order bumps, PIX issuance, downsells, and the paid-transition
// side-effect batch.
package funnel

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/crypto"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/gateway"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/geoip"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
	"github.com/vendabots/fleet-runtime/internal/scheduler"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// ClientResolver hands the engine the live Telegram connection for a bot.
// The supervisor owns the connections; the funnel only borrows them.
type ClientResolver interface {
	Resolve(botID uint) (*telegram.Client, bool)
}

// Deps carries everything the engine needs. All fields are required unless
// noted.
type Deps struct {
	Config  *config.FleetConfig
	Logger  *logrus.Entry
	Metrics *metrics.FleetMetrics

	Bots        domain.BotRepository
	Configs     domain.BotConfigRepository
	Users       domain.BotUserRepository
	Payments    domain.PaymentRepository
	Gateways    domain.GatewayRepository
	Pools       domain.PoolRepository
	Webhooks    domain.WebhookEventRepository
	Pending     domain.PendingMatchRepository
	Commissions domain.CommissionRepository
	Subs        domain.SubscriptionRepository
	Remarketing domain.RemarketingRepository
	Messages    domain.BotMessageRepository

	Tx       domain.TxRunner
	Coord    domain.Coordinator
	Sessions domain.SessionStore
	Tracking domain.TrackingCache
	Producer domain.TaskProducer
	Registry *gateway.Registry
	Box      *crypto.Box
	Sched    *scheduler.Scheduler
	Sender   *telegram.Sender
	Clients  ClientResolver
	// Geo is optional; without it BotUser rows keep empty location fields.
	Geo *geoip.Client

	// DeliveryToken mints access-delivery tokens. Defaults to nanoid(21).
	DeliveryToken func() string
}

type Engine struct {
	Deps
}

func NewEngine(deps Deps) *Engine {
	if deps.DeliveryToken == nil {
		if gen, err := nanoid.Standard(21); err == nil {
			deps.DeliveryToken = gen
		} else {
			deps.DeliveryToken = uuid.NewString
		}
	}
	return &Engine{Deps: deps}
}

// HandleUpdate is the single entry point for every Telegram update,
// webhook-delivered or polled. The update-id lock makes redeliveries
// no-ops fleet-wide.
func (e *Engine) HandleUpdate(ctx context.Context, u *domain.Update) {
	log := e.Logger.WithFields(logrus.Fields{"bot_id": u.BotID, "chat_id": u.ChatID, "update_id": u.UpdateID})

	if u.UpdateID != 0 {
		ok, err := e.Coord.Acquire(ctx, fleetredis.UpdateKey(u.UpdateID), fleetredis.TTLUpdate)
		if err != nil {
			// Fail open: losing dedup beats dropping a paying customer.
			log.WithError(err).Warn("update lock check failed, processing anyway")
		} else if !ok {
			e.Metrics.LockContentionTotal.WithLabelValues("update").Inc()
			return
		}
	}

	switch u.Kind {
	case domain.UpdateMessage:
		e.handleMessage(ctx, u, log)
	case domain.UpdateCallback:
		e.handleCallback(ctx, u, log)
	case domain.UpdateChatMember:
		e.handleChatMember(ctx, u, log)
	}
}

func (e *Engine) handleMessage(ctx context.Context, u *domain.Update, log *logrus.Entry) {
	if u.Text != "" {
		ok, err := e.Coord.Acquire(ctx, fleetredis.MsgKey(u.BotID, u.ChatID, u.Text), fleetredis.TTLMsg)
		if err != nil {
			log.WithError(err).Warn("message lock check failed, processing anyway")
		} else if !ok {
			e.Metrics.LockContentionTotal.WithLabelValues("msg").Inc()
			return
		}
	}

	fresh, err := e.Sender.LogInbound(ctx, u)
	if err != nil {
		log.WithError(err).Warn("inbound log failed")
	}
	if !fresh {
		log.Debug("inbound dropped as redelivery")
		return
	}

	if u.IsCommand() {
		if strings.HasPrefix(u.Text, "/start") {
			if err := e.HandleStart(ctx, u, telegram.StartPayload(u.Text)); err != nil {
				log.WithError(err).Error("/start pipeline failed")
			}
			return
		}
		log.WithField("command", u.Text).Debug("unknown command ignored")
		return
	}

	if err := e.handleText(ctx, u); err != nil {
		log.WithError(err).Warn("text rebounce failed")
	}
}

func (e *Engine) handleCallback(ctx context.Context, u *domain.Update, log *logrus.Entry) {
	if client, ok := e.Clients.Resolve(u.BotID); ok {
		client.AnswerCallback(ctx, u.CallbackID)
	}

	cb := ParseCallback(u.CallbackData)
	if cb.Kind == CbUnknown {
		log.WithField("data", u.CallbackData).Debug("unknown callback ignored")
		return
	}
	if err := e.dispatchCallback(ctx, u, cb); err != nil {
		log.WithError(err).WithField("data", u.CallbackData).Error("callback handling failed")
	}
}

// handleChatMember activates pending subscriptions when the buyer joins
// the VIP chat they purchased.
func (e *Engine) handleChatMember(ctx context.Context, u *domain.Update, log *logrus.Entry) {
	if u.JoinedChatID == 0 {
		return
	}
	subs, err := e.Subs.ListPendingForChat(ctx, u.ChatID)
	if err != nil {
		log.WithError(err).Warn("pending subscription lookup failed")
		return
	}
	for _, s := range subs {
		if s.VIPChatID != u.JoinedChatID {
			continue
		}
		s.Activate(timeNow())
		if err := e.Subs.Update(ctx, s); err != nil {
			log.WithError(err).WithField("subscription_id", s.ID).Error("subscription activation failed")
			continue
		}
		log.WithField("subscription_id", s.ID).Info("subscription activated on VIP join")
	}
}
