package funnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendabots/fleet-runtime/internal/crypto"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/gateway"
)

const testCredentialsKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type fakePixPayments struct {
	domain.PaymentRepository
	reusable    *domain.Payment
	recentOther *domain.Payment
	created     []*domain.Payment
}

func (f *fakePixPayments) FindReusable(ctx context.Context, botID uint, chatID int64, product string, amount float64, window time.Duration) (*domain.Payment, error) {
	return f.reusable, nil
}

func (f *fakePixPayments) FindRecentPendingOther(ctx context.Context, botID uint, chatID int64, product string, window time.Duration) (*domain.Payment, error) {
	return f.recentOther, nil
}

func (f *fakePixPayments) Create(ctx context.Context, p *domain.Payment) error {
	f.created = append(f.created, p)
	return nil
}

type fakeGatewayPicker struct {
	domain.GatewayRepository
	gw *domain.Gateway
}

func (f *fakeGatewayPicker) PickActiveVerified(ctx context.Context, tenantID uint) (*domain.Gateway, error) {
	return f.gw, nil
}

// newPixFixture wires an engine whose gateway row carries real encrypted
// credentials, so CreatePIX exercises the registry decrypt path. An empty
// kind means no active gateway for the tenant.
func newPixFixture(t *testing.T, payments *fakePixPayments, kind string) *Engine {
	t.Helper()
	box, err := crypto.NewBox(testCredentialsKey)
	require.NoError(t, err)

	var gw *domain.Gateway
	if kind != "" {
		enc, err := box.Encrypt(`{}`)
		require.NoError(t, err)
		gw = &domain.Gateway{ID: 31, TenantID: 3, Kind: kind, Active: true, Verified: true, Credentials: enc}
	}

	return NewEngine(Deps{
		Logger:   testLogger(),
		Metrics:  testFleetMetrics(),
		Bots:     &fakeBots{bot: &domain.Bot{ID: 7, TenantID: 3}},
		Payments: payments,
		Gateways: &fakeGatewayPicker{gw: gw},
		Registry: gateway.NewRegistry(box),
		Clients:  noClients{},
	})
}

func TestCreatePIXReusesFreshPendingCharge(t *testing.T) {
	existing := &domain.Payment{ID: 12, PixCode: "pix-copy-paste", Status: domain.PaymentPending}
	payments := &fakePixPayments{reusable: existing}
	engine := newPixFixture(t, payments, "paradise")

	got, err := engine.CreatePIX(context.Background(), PixIntent{
		BotID: 7, ChatID: 555, Amount: 19.90, ProductName: "Produto",
	})
	require.NoError(t, err)
	assert.Same(t, existing, got)
	assert.Empty(t, payments.created, "reuse must not mint a second charge")
}

func TestCreatePIXRateLimitsCrossProduct(t *testing.T) {
	payments := &fakePixPayments{
		recentOther: &domain.Payment{ID: 13, ProductName: "Outro", CreatedAt: time.Now().Add(-30 * time.Second)},
	}
	engine := newPixFixture(t, payments, "paradise")

	_, err := engine.CreatePIX(context.Background(), PixIntent{
		BotID: 7, ChatID: 555, Amount: 9.90, ProductName: "Produto",
	})
	require.ErrorIs(t, err, domain.ErrRateLimited)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.Wait, time.Duration(0))
	assert.LessOrEqual(t, rl.Wait, pixRateLimitWindow)
	assert.Empty(t, payments.created)
}

func TestCreatePIXNoActiveGateway(t *testing.T) {
	engine := newPixFixture(t, &fakePixPayments{}, "")

	_, err := engine.CreatePIX(context.Background(), PixIntent{BotID: 7, ChatID: 555, Amount: 9.90})
	assert.ErrorIs(t, err, domain.ErrNoActiveGateway)
}

func TestCreatePIXRejectsMissingChat(t *testing.T) {
	engine := newPixFixture(t, &fakePixPayments{}, "")

	_, err := engine.CreatePIX(context.Background(), PixIntent{BotID: 7, Amount: 9.90})
	assert.Error(t, err)
}

func TestCreatePIXSurfacesCredentialRot(t *testing.T) {
	engine := newPixFixture(t, &fakePixPayments{}, "paradise")
	picker := engine.Gateways.(*fakeGatewayPicker)
	picker.gw.Credentials = "not-a-blob"

	_, err := engine.CreatePIX(context.Background(), PixIntent{BotID: 7, ChatID: 555, Amount: 9.90})
	assert.ErrorIs(t, err, domain.ErrCredentialsDecrypt)
}
