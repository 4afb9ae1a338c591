package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/crypto"
	"github.com/vendabots/fleet-runtime/internal/delivery/httpapi"
	"github.com/vendabots/fleet-runtime/internal/funnel"
	"github.com/vendabots/fleet-runtime/internal/gateway"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/geoip"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/kafka"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/migrate"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/repository"
	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
	"github.com/vendabots/fleet-runtime/internal/logging"
	"github.com/vendabots/fleet-runtime/internal/reconcile"
	"github.com/vendabots/fleet-runtime/internal/scheduler"
	"github.com/vendabots/fleet-runtime/internal/supervisor"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

const (
	watchdogInterval     = time.Minute
	replayInterval       = time.Minute
	remarketingInterval  = time.Minute
	subscriptionInterval = 5 * time.Minute

	shutdownGrace = 15 * time.Second
)

// clientRegistry breaks the funnel/supervisor construction cycle: the
// supervisor needs the engine as its update handler, so it is built
// second and attached here.
type clientRegistry struct {
	sup *supervisor.Supervisor
}

func (r *clientRegistry) Resolve(botID uint) (*telegram.Client, bool) {
	if r.sup == nil {
		return nil, false
	}
	return r.sup.Resolve(botID)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := config.MustLoad()

	logger, err := logging.Setup(cfg)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	db := postgres.MustInitDB(cfg)
	if err := migrate.RunMigrations(db, cfg.Migrations.Path, logger); err != nil {
		logger.WithError(err).Fatal("migrations failed")
	}

	botRepo := repository.NewDefaultBotRepository(db)
	configRepo := repository.NewDefaultBotConfigRepository(db)
	userRepo := repository.NewDefaultBotUserRepository(db)
	paymentRepo := repository.NewDefaultPaymentRepository(db)
	gatewayRepo := repository.NewDefaultGatewayRepository(db)
	poolRepo := repository.NewDefaultPoolRepository(db)
	webhookRepo := repository.NewDefaultWebhookEventRepository(db)
	pendingRepo := repository.NewDefaultPendingMatchRepository(db)
	commissionRepo := repository.NewDefaultCommissionRepository(db)
	subscriptionRepo := repository.NewDefaultSubscriptionRepository(db)
	remarketingRepo := repository.NewDefaultRemarketingRepository(db)
	messageRepo := repository.NewDefaultBotMessageRepository(db)

	// Redis
	redisClient := fleetredis.NewClient(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("redis unreachable")
	}
	coord := fleetredis.NewCoordinator(redisClient)
	sessions := fleetredis.NewSessionStore(redisClient)
	tracking, err := fleetredis.NewTrackingCache(redisClient)
	if err != nil {
		logger.WithError(err).Fatal("tracking cache init failed")
	}

	// Kafka
	producer := kafka.NewTaskProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	fleetMetrics := metrics.NewFleetMetrics()

	box, err := crypto.NewBox(cfg.Platform.CredentialsKey)
	if err != nil {
		logger.WithError(err).Fatal("credentials key invalid")
	}
	registry := gateway.NewRegistry(box)

	sched := scheduler.New(logger)
	defer sched.Shutdown()

	sender := telegram.NewSender(coord, messageRepo, fleetMetrics, logger)

	clients := &clientRegistry{}
	engine := funnel.NewEngine(funnel.Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: fleetMetrics,

		Bots:        botRepo,
		Configs:     configRepo,
		Users:       userRepo,
		Payments:    paymentRepo,
		Gateways:    gatewayRepo,
		Pools:       poolRepo,
		Webhooks:    webhookRepo,
		Pending:     pendingRepo,
		Commissions: commissionRepo,
		Subs:        subscriptionRepo,
		Remarketing: remarketingRepo,
		Messages:    messageRepo,

		Tx:       postgres.NewTxManager(db),
		Coord:    coord,
		Sessions: sessions,
		Tracking: tracking,
		Producer: producer,
		Registry: registry,
		Box:      box,
		Sched:    sched,
		Sender:   sender,
		Clients:  clients,
		Geo:      geoip.NewClient(),
	})

	sup := supervisor.New(cfg, logger, fleetMetrics, botRepo, coord, engine)
	clients.sup = sup
	go sup.Run(ctx)
	go sup.StartAll(ctx)

	// Background reconciliation
	worker := reconcile.NewWorker(cfg, logger, fleetMetrics,
		paymentRepo, gatewayRepo, webhookRepo, pendingRepo, subscriptionRepo,
		registry, engine)

	kick := func(kctx context.Context, botID uint, vipChatID, userChatID int64) error {
		client, ok := sup.Resolve(botID)
		if !ok {
			return fmt.Errorf("bot %d is not running", botID)
		}
		return client.KickFromChat(kctx, vipChatID, userChatID)
	}

	sched.ScheduleEvery("reconcile_sync", time.Duration(cfg.Reconcile.IntervalSeconds)*time.Second, worker.SyncPending)
	sched.ScheduleEvery("webhook_replay", replayInterval, worker.ReplayPending)
	sched.ScheduleEvery("subscription_sweep", subscriptionInterval, func(jctx context.Context) {
		worker.SweepSubscriptions(jctx, kick)
	})
	sched.ScheduleEvery("supervisor_watchdog", watchdogInterval, sup.Watchdog)
	sched.ScheduleEvery("remarketing_due", remarketingInterval, func(jctx context.Context) {
		due, err := remarketingRepo.ListDue(jctx, time.Now())
		if err != nil {
			logger.WithError(err).Error("due campaign listing failed")
			return
		}
		for _, campaign := range due {
			if err := engine.DispatchCampaign(jctx, campaign); err != nil {
				logger.WithError(err).WithField("campaign_id", campaign.ID).Error("campaign dispatch failed")
			}
		}
	})

	// HTTP: Telegram webhooks, gateway webhooks, health, metrics
	api := httpapi.NewServer(cfg, engine, logger)
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.Handler(),
	}

	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	logger.Info("fleet runtime stopped")
}
