// Package httpapi exposes the runtime's inbound HTTP surface: Telegram
// webhook ingestion per bot, gateway payment webhooks per provider kind,
// health, and Prometheus metrics.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/funnel"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// maxWebhookBody bounds gateway payloads; real ones are a few KB.
const maxWebhookBody = 1 << 20

// handleTimeout caps in-process webhook handling so Telegram and the
// gateways get their 200 before they time out and redeliver.
const handleTimeout = 25 * time.Second

type Server struct {
	engine *funnel.Engine
	logger *logrus.Entry
	router *gin.Engine
}

func NewServer(cfg *config.FleetConfig, engine *funnel.Engine, logger *logrus.Entry) *Server {
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{engine: engine, logger: logger, router: gin.New()}
	s.router.Use(gin.Recovery())

	s.router.POST("/webhook/telegram/:botID", s.telegramWebhook)
	s.router.POST("/webhook/payment/:kind", s.gatewayWebhook)
	s.router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// telegramWebhook accepts one raw update for one bot. The 200 goes back
// immediately; processing continues detached so a slow funnel step never
// makes Telegram mark the webhook as failing.
func (s *Server) telegramWebhook(c *gin.Context) {
	botID, err := strconv.ParseUint(c.Param("botID"), 10, 32)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	var raw models.Update
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.logger.WithError(err).Warn("undecodable telegram webhook body")
		c.Status(http.StatusBadRequest)
		return
	}

	u := telegram.ParseUpdate(uint(botID), &raw)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		s.engine.HandleUpdate(ctx, u)
	}()

	c.Status(http.StatusOK)
}

// gatewayWebhook processes one provider webhook inline. Dedup makes the
// handler idempotent, so a 500 is safe: the gateway redelivers and the
// duplicate is dropped.
func (s *Server) gatewayWebhook(c *gin.Context) {
	kind := c.Param("kind")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handleTimeout)
	defer cancel()

	if err := s.engine.HandlePaymentWebhook(ctx, kind, body, false); err != nil {
		s.logger.WithError(err).WithField("gateway_kind", kind).Error("gateway webhook processing failed")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
