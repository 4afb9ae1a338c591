package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/funnel"
	"github.com/vendabots/fleet-runtime/internal/gateway"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
)

var (
	serverMetricsOnce sync.Once
	serverMetrics     *metrics.FleetMetrics
)

func serverFleetMetrics() *metrics.FleetMetrics {
	serverMetricsOnce.Do(func() { serverMetrics = metrics.NewFleetMetrics() })
	return serverMetrics
}

// dupWebhooks answers every insert as a redelivery, which the engine
// treats as a clean drop.
type dupWebhooks struct {
	domain.WebhookEventRepository
}

func (dupWebhooks) Insert(ctx context.Context, e *domain.WebhookEvent) error {
	return domain.ErrDuplicateWebhook
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	logger := logrus.NewEntry(l)

	engine := funnel.NewEngine(funnel.Deps{
		Logger:   logger,
		Metrics:  serverFleetMetrics(),
		Registry: gateway.NewRegistry(nil),
		Webhooks: dupWebhooks{},
	})
	return NewServer(&config.FleetConfig{Env: "development"}, engine, logger)
}

func TestGatewayWebhookRoute(t *testing.T) {
	s := newTestServer(t)
	payload := `{"data":{"id":"tx1","hash":"abc123","status":"paid","amount":1990}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/payment/paradise", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatewayWebhookUnknownKind(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/payment/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGatewayWebhookOldPathIsGone(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gateway/paradise", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
