package funnel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/gateway"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/kafka"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
	"github.com/vendabots/fleet-runtime/internal/scheduler"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// Prometheus collectors register on the default registry; one shared
// instance keeps repeated engine construction from double-registering.
var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.FleetMetrics
)

func testFleetMetrics() *metrics.FleetMetrics {
	testMetricsOnce.Do(func() { testMetrics = metrics.NewFleetMetrics() })
	return testMetrics
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// Fakes embed their interface; only the methods a scenario touches are
// overridden, anything else panics and fails the test loudly.

// passTx runs fn directly; an error from fn surfaces exactly as a
// rolled-back transaction would.
type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePayments struct {
	domain.PaymentRepository
	markPaidWins  bool
	markPaidCalls int
	failedIDs     []uint
	purchaseWins  bool
	byGatewayTx   *domain.Payment
	byExternalID  *domain.Payment
}

func (f *fakePayments) MarkPaid(ctx context.Context, id uint, paidAt time.Time) (bool, error) {
	f.markPaidCalls++
	return f.markPaidWins, nil
}

func (f *fakePayments) MarkFailed(ctx context.Context, id uint) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

func (f *fakePayments) MarkPurchaseSent(ctx context.Context, id uint) (bool, error) {
	return f.purchaseWins, nil
}

func (f *fakePayments) GetByGatewayTx(ctx context.Context, kind, txID, txHash string) (*domain.Payment, error) {
	return f.byGatewayTx, nil
}

func (f *fakePayments) GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error) {
	return f.byExternalID, nil
}

type fakeBots struct {
	domain.BotRepository
	bot    *domain.Bot
	totals []float64
}

func (f *fakeBots) GetByID(ctx context.Context, id uint) (*domain.Bot, error) { return f.bot, nil }
func (f *fakeBots) IncrementTotals(ctx context.Context, id uint, revenue float64) error {
	f.totals = append(f.totals, revenue)
	return nil
}

type fakeGateways struct {
	domain.GatewayRepository
	successes []uint
}

func (f *fakeGateways) GetActiveVerified(ctx context.Context, tenantID uint, kind string) (*domain.Gateway, error) {
	return &domain.Gateway{ID: 31, TenantID: tenantID, Kind: kind, Active: true, Verified: true}, nil
}

func (f *fakeGateways) GetByProducerID(ctx context.Context, kind, producerID string) (*domain.Gateway, error) {
	return &domain.Gateway{ID: 32, Kind: kind, ProducerID: producerID}, nil
}

func (f *fakeGateways) IncrementSuccessful(ctx context.Context, id uint) error {
	f.successes = append(f.successes, id)
	return nil
}

type fakeConfigs struct {
	domain.BotConfigRepository
	cfg *domain.BotConfig
}

func (f *fakeConfigs) GetByBotID(ctx context.Context, botID uint) (*domain.BotConfig, error) {
	return f.cfg, nil
}

type fakeCommissions struct {
	domain.CommissionRepository
	created   []*domain.Commission
	createErr error
}

func (f *fakeCommissions) CreateIfAbsent(ctx context.Context, c *domain.Commission) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	f.created = append(f.created, c)
	return true, nil
}

type fakeSubs struct {
	domain.SubscriptionRepository
	created []*domain.Subscription
}

func (f *fakeSubs) CreateIfAbsent(ctx context.Context, s *domain.Subscription) (bool, error) {
	f.created = append(f.created, s)
	return true, nil
}

type fakeWebhooks struct {
	domain.WebhookEventRepository
	insertErr error
	inserted  []*domain.WebhookEvent
}

func (f *fakeWebhooks) Insert(ctx context.Context, e *domain.WebhookEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, e)
	return nil
}

type fakePending struct {
	domain.PendingMatchRepository
	parked []*domain.WebhookPendingMatch
}

func (f *fakePending) Upsert(ctx context.Context, m *domain.WebhookPendingMatch) error {
	f.parked = append(f.parked, m)
	return nil
}

type fakeTracking struct {
	domain.TrackingCache
	forPayment *domain.TrackingPayload
}

func (f *fakeTracking) RecoverForPayment(ctx context.Context, externalID string) (*domain.TrackingPayload, error) {
	return f.forPayment, nil
}

type fakeProducer struct {
	mu    sync.Mutex
	tasks []string
}

func (f *fakeProducer) Enqueue(ctx context.Context, topic, task string, kwargs any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return "task-id", nil
}

// noClients simulates the bot being offline; access delivery degrades to a
// logged error without aborting the paid batch.
type noClients struct{}

func (noClients) Resolve(botID uint) (*telegram.Client, bool) { return nil, false }

type paidFixture struct {
	engine      *Engine
	payments    *fakePayments
	bots        *fakeBots
	gateways    *fakeGateways
	commissions *fakeCommissions
	subs        *fakeSubs
	webhooks    *fakeWebhooks
	pending     *fakePending
	producer    *fakeProducer
}

func newPaidFixture(t *testing.T) *paidFixture {
	t.Helper()

	f := &paidFixture{
		payments:    &fakePayments{markPaidWins: true, purchaseWins: true},
		bots:        &fakeBots{bot: &domain.Bot{ID: 7, TenantID: 3}},
		gateways:    &fakeGateways{},
		commissions: &fakeCommissions{},
		subs:        &fakeSubs{},
		webhooks:    &fakeWebhooks{},
		pending:     &fakePending{},
		producer:    &fakeProducer{},
	}

	sched := scheduler.New(testLogger())
	t.Cleanup(sched.Shutdown)

	f.engine = NewEngine(Deps{
		Config:      &config.FleetConfig{Platform: config.Platform{CommissionPercent: 2}},
		Logger:      testLogger(),
		Metrics:     testFleetMetrics(),
		Tx:          passTx{},
		Bots:        f.bots,
		Configs:     &fakeConfigs{cfg: &domain.BotConfig{}},
		Payments:    f.payments,
		Gateways:    f.gateways,
		Commissions: f.commissions,
		Subs:        f.subs,
		Webhooks:    f.webhooks,
		Pending:     f.pending,
		Tracking:    &fakeTracking{},
		Producer:    f.producer,
		Registry:    gateway.NewRegistry(nil),
		Sched:       sched,
		Clients:     noClients{},
	})
	return f
}

func pendingPayment() *domain.Payment {
	return &domain.Payment{
		ID:             99,
		BotID:          7,
		ExternalID:     "BOT7_1700000000_cafebabe",
		GatewayKind:    "paradise",
		GatewayTxID:    "tx1",
		GatewayTxHash:  "abc123",
		Amount:         19.90,
		Status:         domain.PaymentPending,
		CustomerChatID: 555,
		ProductName:    "Produto",
	}
}

func TestApplyPaidWinnerRunsBatch(t *testing.T) {
	f := newPaidFixture(t)
	p := pendingPayment()

	err := f.engine.ApplyPaid(context.Background(), p, "webhook")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPaid, p.Status)
	require.NotNil(t, p.PaidAt)

	require.Len(t, f.commissions.created, 1)
	assert.Equal(t, uint(99), f.commissions.created[0].PaymentID)
	assert.InDelta(t, 19.90*0.02, f.commissions.created[0].Amount, 1e-9)

	assert.Equal(t, []uint{31}, f.gateways.successes)
	assert.Contains(t, f.producer.tasks, kafka.TaskDashboardEvent)
	assert.Empty(t, f.subs.created, "no subscription without a plan on the button")
}

func TestApplyPaidLoserStopsAtGate(t *testing.T) {
	f := newPaidFixture(t)
	f.payments.markPaidWins = false
	p := pendingPayment()

	err := f.engine.ApplyPaid(context.Background(), p, "reconcile")
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	assert.Empty(t, f.commissions.created)
	assert.Empty(t, f.producer.tasks)
	assert.Equal(t, domain.PaymentPending, p.Status, "loser must not mutate the row")
}

func TestApplyPaidCreatesSubscription(t *testing.T) {
	f := newPaidFixture(t)
	p := pendingPayment()
	p.HasSubscription = true
	p.ButtonConfig = &domain.MainButton{
		Subscription: &domain.SubscriptionPlan{DurationValue: 30, DurationUnit: "days", VIPChatID: -100999},
	}

	require.NoError(t, f.engine.ApplyPaid(context.Background(), p, "webhook"))

	require.Len(t, f.subs.created, 1)
	sub := f.subs.created[0]
	assert.Equal(t, uint(99), sub.PaymentID)
	assert.EqualValues(t, -100999, sub.VIPChatID)
	assert.Equal(t, domain.SubscriptionPending, sub.Status)
}

func TestHandlePaymentWebhookDuplicateIsDropped(t *testing.T) {
	f := newPaidFixture(t)
	f.webhooks.insertErr = domain.ErrDuplicateWebhook

	payload := []byte(`{"data":{"id":"tx1","hash":"abc123","status":"paid","amount":1990}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, false)
	require.NoError(t, err)

	assert.Zero(t, f.payments.markPaidCalls, "duplicate must not reach the paid gate")
	assert.Empty(t, f.pending.parked)
}

func TestHandlePaymentWebhookOrphanIsParked(t *testing.T) {
	f := newPaidFixture(t)

	payload := []byte(`{"data":{"id":"tx9","hash":"nohit","status":"paid","amount":500}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, false)
	require.NoError(t, err)

	require.Len(t, f.pending.parked, 1)
	assert.Equal(t, "nohit", f.pending.parked[0].TxHash)
	assert.Equal(t, domain.PendingMatchWaiting, f.pending.parked[0].Status)
}

func TestHandlePaymentWebhookOrphanReplayMode(t *testing.T) {
	f := newPaidFixture(t)

	payload := []byte(`{"data":{"id":"tx9","hash":"nohit","status":"paid","amount":500}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, true)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	assert.Empty(t, f.pending.parked, "replay mode never re-parks")
}

func TestHandlePaymentWebhookPaidAppliesTransition(t *testing.T) {
	f := newPaidFixture(t)
	f.payments.byGatewayTx = pendingPayment()

	payload := []byte(`{"data":{"id":"tx1","hash":"abc123","status":"paid","amount":1990}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.payments.markPaidCalls)
	assert.Contains(t, f.producer.tasks, kafka.TaskDashboardEvent)
}

func TestHandlePaymentWebhookSecondPaidWebhookIsNoop(t *testing.T) {
	f := newPaidFixture(t)
	f.payments.byGatewayTx = pendingPayment()
	f.payments.markPaidWins = false

	payload := []byte(`{"data":{"id":"tx1","hash":"abc123","status":"paid","amount":1990}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, false)
	assert.NoError(t, err, "losing the gate is success for the webhook")
}

func TestHandlePaymentWebhookFailedMarksPending(t *testing.T) {
	f := newPaidFixture(t)
	f.payments.byGatewayTx = pendingPayment()

	payload := []byte(`{"data":{"id":"tx1","hash":"abc123","status":"expired","amount":1990}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, false)
	require.NoError(t, err)
	assert.Equal(t, []uint{99}, f.payments.failedIDs)
}

func TestHandlePaymentWebhookFailedIgnoresSettled(t *testing.T) {
	f := newPaidFixture(t)
	paid := pendingPayment()
	paid.Status = domain.PaymentPaid
	f.payments.byGatewayTx = paid

	payload := []byte(`{"data":{"id":"tx1","hash":"abc123","status":"expired","amount":1990}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, false)
	require.NoError(t, err)
	assert.Empty(t, f.payments.failedIDs, "a late failure webhook cannot undo a paid row")
}

func TestApplyPaidRecordsBotTotals(t *testing.T) {
	f := newPaidFixture(t)
	p := pendingPayment()

	require.NoError(t, f.engine.ApplyPaid(context.Background(), p, "webhook"))
	assert.Equal(t, []float64{19.90}, f.bots.totals)
}

func TestApplyPaidRowFailureAbortsBatch(t *testing.T) {
	f := newPaidFixture(t)
	f.commissions.createErr = context.DeadlineExceeded
	p := pendingPayment()

	err := f.engine.ApplyPaid(context.Background(), p, "webhook")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAlreadyPaid)

	assert.Equal(t, domain.PaymentPending, p.Status, "aborted batch must leave the payment retryable")
	assert.Nil(t, p.PaidAt)
	assert.Empty(t, f.producer.tasks, "no dashboard event for a rolled-back transition")
}

func TestHandlePaymentWebhookReplaySettlesParkedPayment(t *testing.T) {
	f := newPaidFixture(t)
	// The event row was written when the webhook first arrived; the replay
	// re-runs the same payload after the payment row caught up.
	f.webhooks.insertErr = domain.ErrDuplicateWebhook
	f.payments.byGatewayTx = pendingPayment()

	payload := []byte(`{"data":{"id":"tx1","hash":"abc123","status":"paid","amount":1990}}`)
	err := f.engine.HandlePaymentWebhook(context.Background(), "paradise", payload, true)
	require.NoError(t, err)

	assert.Equal(t, 1, f.payments.markPaidCalls, "replay must push the parked payment through the gate")
	assert.Contains(t, f.producer.tasks, kafka.TaskDashboardEvent)
}

func TestHandlePaymentWebhookBadKind(t *testing.T) {
	f := newPaidFixture(t)
	err := f.engine.HandlePaymentWebhook(context.Background(), "stripe", []byte(`{}`), false)
	assert.Error(t, err)
}
