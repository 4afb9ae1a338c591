// Package supervisor owns bot lifecycles: starting, stopping, monitoring,
// and restarting the fleet's Telegram connections. The registry is an
// actor; all mutations flow through one goroutine, and readers get a
// lock-free snapshot.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// UpdateHandler consumes canonical updates. The funnel engine implements it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u *domain.Update)
}

type runningBot struct {
	bot    *domain.Bot
	client *telegram.Client
	ctx    context.Context
	cancel context.CancelFunc

	// polling and pollCancel belong to the monitor goroutine once the bot
	// is up; the actor only touches them before the monitor starts.
	polling    bool
	pollCancel context.CancelFunc
}

// stopPolling retires the long-poll loop. Safe to call when none runs.
func (rb *runningBot) stopPolling() {
	if rb.pollCancel != nil {
		rb.pollCancel()
		rb.pollCancel = nil
	}
	rb.polling = false
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
)

type command struct {
	kind  commandKind
	bot   *domain.Bot
	botID uint
	reply chan error
}

type Supervisor struct {
	cfg     *config.FleetConfig
	logger  *logrus.Entry
	metrics *metrics.FleetMetrics
	bots    domain.BotRepository
	coord   domain.Coordinator
	handler UpdateHandler

	commands chan command
	running  map[uint]*runningBot
	clients  atomic.Value // map[uint]*telegram.Client
	wg       sync.WaitGroup
}

func New(cfg *config.FleetConfig, logger *logrus.Entry, m *metrics.FleetMetrics,
	bots domain.BotRepository, coord domain.Coordinator, handler UpdateHandler) *Supervisor {

	s := &Supervisor{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		bots:     bots,
		coord:    coord,
		handler:  handler,
		commands: make(chan command),
		running:  make(map[uint]*runningBot),
	}
	s.clients.Store(map[uint]*telegram.Client{})
	return s
}

// Resolve returns the live Telegram client for a bot. Safe from any
// goroutine; reads the latest registry snapshot.
func (s *Supervisor) Resolve(botID uint) (*telegram.Client, bool) {
	snap := s.clients.Load().(map[uint]*telegram.Client)
	c, ok := snap[botID]
	return c, ok
}

// Run is the registry actor. It owns the running map; nothing else
// touches it. Blocks until ctx is cancelled, then stops every bot.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for id := range s.running {
				s.stopLocked(context.Background(), id)
			}
			s.wg.Wait()
			return
		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdStart:
				cmd.reply <- s.startLocked(ctx, cmd.bot)
			case cmdStop:
				cmd.reply <- s.stopLocked(ctx, cmd.botID)
			}
		}
	}
}

// StartBot asks the actor to bring a bot online. Idempotent.
func (s *Supervisor) StartBot(ctx context.Context, b *domain.Bot) error {
	reply := make(chan error, 1)
	select {
	case s.commands <- command{kind: cmdStart, bot: b, reply: reply}:
		return <-reply
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopBot asks the actor to take a bot offline. Idempotent.
func (s *Supervisor) StopBot(ctx context.Context, botID uint) error {
	reply := make(chan error, 1)
	select {
	case s.commands <- command{kind: cmdStop, botID: botID, reply: reply}:
		return <-reply
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartAll brings every active bot online. Called at boot and by the
// watchdog sweep.
func (s *Supervisor) StartAll(ctx context.Context) {
	bots, err := s.bots.ListActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("active bot listing failed")
		return
	}
	for _, b := range bots {
		if err := s.StartBot(ctx, b); err != nil {
			s.logger.WithError(err).WithField("bot_id", b.ID).Error("bot start failed")
		}
	}
}

// startLocked runs on the actor goroutine. The start lock stops two
// fleet workers from double-connecting the same token, which Telegram
// punishes with conflict errors.
func (s *Supervisor) startLocked(ctx context.Context, b *domain.Bot) error {
	if _, ok := s.running[b.ID]; ok {
		return nil
	}
	log := s.logger.WithField("bot_id", b.ID)

	ok, err := s.coord.Acquire(ctx, fleetredis.BotStartKey(b.ID), fleetredis.TTLBotStart)
	if err != nil {
		log.WithError(err).Warn("bot start lock check failed, proceeding")
	} else if !ok {
		log.Info("another worker is starting this bot")
		return nil
	}

	username, err := telegram.ValidateToken(ctx, b.Token)
	if err != nil {
		return fmt.Errorf("token validation for bot %d: %w", b.ID, err)
	}
	if username != "" && username != b.Username {
		log.WithField("username", username).Info("bot username changed on Telegram side")
	}

	botID := b.ID
	handler := func(hctx context.Context, _ *bot.Bot, raw *models.Update) {
		s.handler.HandleUpdate(hctx, telegram.ParseUpdate(botID, raw))
	}
	client, err := telegram.NewClient(b.ID, b.Token, handler, s.logger)
	if err != nil {
		return err
	}

	botCtx, cancel := context.WithCancel(context.Background())
	rb := &runningBot{bot: b, client: client, ctx: botCtx, cancel: cancel}

	base := s.cfg.Telegram.WebhookBaseURL
	poll := base == ""
	if !poll {
		if err := client.InstallWebhook(ctx, base); err != nil {
			log.WithError(err).Warn("webhook install failed, falling back to long-poll")
			if err := client.Failover(ctx); err != nil {
				log.WithError(err).Warn("webhook delete during failover failed")
			}
			s.metrics.WebhookFailoverTotal.WithLabelValues(fmt.Sprint(b.ID)).Inc()
			poll = true
		}
	}
	if poll {
		s.startPolling(rb)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitor(botCtx, rb)
	}()

	s.running[b.ID] = rb
	s.publishSnapshot()
	if err := s.bots.SetRunning(ctx, b.ID, true); err != nil {
		log.WithError(err).Warn("running flag persist failed")
	}
	log.Info("bot started")
	return nil
}

func (s *Supervisor) stopLocked(ctx context.Context, botID uint) error {
	rb, ok := s.running[botID]
	if !ok {
		return nil
	}
	rb.cancel()
	delete(s.running, botID)
	s.publishSnapshot()
	if err := s.bots.SetRunning(ctx, botID, false); err != nil {
		s.logger.WithError(err).WithField("bot_id", botID).Warn("running flag persist failed")
	}
	s.logger.WithField("bot_id", botID).Info("bot stopped")
	return nil
}

// startPolling launches the long-poll loop under the bot's own context so
// a stop tears it down with everything else.
func (s *Supervisor) startPolling(rb *runningBot) {
	pollCtx, cancel := context.WithCancel(rb.ctx)
	rb.polling = true
	rb.pollCancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rb.client.StartLongPoll(pollCtx)
	}()
}

func (s *Supervisor) publishSnapshot() {
	snap := make(map[uint]*telegram.Client, len(s.running))
	for id, rb := range s.running {
		snap[id] = rb.client
	}
	s.clients.Store(snap)
}

// Watchdog re-starts active bots that dropped out of the registry, and
// stops bots deactivated by their tenant. Meant to run on an interval job.
func (s *Supervisor) Watchdog(ctx context.Context) {
	bots, err := s.bots.ListActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("watchdog bot listing failed")
		return
	}
	active := make(map[uint]*domain.Bot, len(bots))
	for _, b := range bots {
		active[b.ID] = b
	}

	snap := s.clients.Load().(map[uint]*telegram.Client)
	for id, b := range active {
		if _, ok := snap[id]; ok {
			continue
		}
		alive, err := s.coord.Alive(ctx, id)
		if err != nil {
			s.logger.WithError(err).Warn("heartbeat probe failed")
			continue
		}
		if alive {
			// Another fleet worker is carrying this bot.
			continue
		}
		s.logger.WithField("bot_id", id).Warn("active bot without heartbeat, restarting")
		if err := s.StartBot(ctx, b); err != nil {
			s.logger.WithError(err).WithField("bot_id", id).Error("watchdog restart failed")
		}
	}
	for id := range snap {
		if _, ok := active[id]; !ok {
			if err := s.StopBot(ctx, id); err != nil {
				s.logger.WithError(err).WithField("bot_id", id).Error("watchdog stop failed")
			}
		}
	}
}
