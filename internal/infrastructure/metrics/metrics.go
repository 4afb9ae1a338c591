package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FleetMetrics aggregates the runtime's prometheus vectors.
type FleetMetrics struct {
	PaymentsCreatedTotal prometheus.CounterVec
	PaymentsPaidTotal    prometheus.CounterVec
	PaymentsFailedTotal  prometheus.CounterVec
	PaymentsAmountPaid   prometheus.CounterVec
	PixReuseTotal        prometheus.CounterVec
	RateLimitedTotal     prometheus.CounterVec

	WebhookDedupTotal     prometheus.CounterVec
	WebhookOrphanTotal    prometheus.CounterVec
	ReconcileAppliedTotal prometheus.CounterVec

	DownsellScheduledTotal prometheus.CounterVec
	DownsellFiredTotal     prometheus.CounterVec
	DownsellCancelledTotal prometheus.CounterVec

	TelegramSendErrorsTotal prometheus.CounterVec
	WebhookFailoverTotal    prometheus.CounterVec
	LockContentionTotal     prometheus.CounterVec

	PixGenerateDuration prometheus.HistogramVec
}

func NewFleetMetrics() *FleetMetrics {
	return &FleetMetrics{
		PaymentsCreatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_created_total",
				Help: "PIX payments created",
			},
			[]string{"gateway_kind"},
		),
		PaymentsPaidTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_paid_total",
				Help: "Payments that reached paid",
			},
			[]string{"gateway_kind", "source"},
		),
		PaymentsFailedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_failed_total",
				Help: "Payments refused or expired",
			},
			[]string{"gateway_kind", "reason"},
		),
		PaymentsAmountPaid: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_amount_paid_total",
				Help: "Sum of paid amounts in BRL",
			},
			[]string{"gateway_kind"},
		),
		PixReuseTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pix_reuse_total",
				Help: "PIX codes reused within the reuse window",
			},
			[]string{"gateway_kind"},
		),
		RateLimitedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pix_rate_limited_total",
				Help: "PIX requests rejected by the pending-payment rate limit",
			},
			[]string{"gateway_kind"},
		),
		WebhookDedupTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_dedup_total",
				Help: "Gateway webhooks dropped as duplicates",
			},
			[]string{"gateway_kind"},
		),
		WebhookOrphanTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_orphan_total",
				Help: "Webhooks that arrived before their payment row",
			},
			[]string{"gateway_kind"},
		),
		ReconcileAppliedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_applied_total",
				Help: "Paid transitions applied by reconciliation",
			},
			[]string{"gateway_kind"},
		),
		DownsellScheduledTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downsell_scheduled_total",
				Help: "Downsell jobs armed",
			},
			[]string{"bot_id"},
		),
		DownsellFiredTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downsell_fired_total",
				Help: "Downsell offers sent",
			},
			[]string{"bot_id"},
		),
		DownsellCancelledTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downsell_cancelled_total",
				Help: "Downsell jobs cancelled on paid transition",
			},
			[]string{"bot_id"},
		),
		TelegramSendErrorsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telegram_send_errors_total",
				Help: "Telegram send failures after retries",
			},
			[]string{"bot_id", "kind"},
		),
		WebhookFailoverTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telegram_webhook_failover_total",
				Help: "Bots switched from webhook to long-poll",
			},
			[]string{"bot_id"},
		),
		LockContentionTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_lock_contention_total",
				Help: "Coordinator lock acquisitions that lost the race",
			},
			[]string{"lock"},
		),
		PixGenerateDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pix_generate_duration_seconds",
				Help:    "Provider PIX generation latency",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"gateway_kind"},
		),
	}
}
