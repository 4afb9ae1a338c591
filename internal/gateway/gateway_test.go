package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   string
		want domain.PaymentStatus
	}{
		{"paid", domain.PaymentPaid},
		{"approved", domain.PaymentPaid},
		{"PAID_OUT", domain.PaymentPaid},
		{"COMPLETED", domain.PaymentPaid},
		{"expired", domain.PaymentFailed},
		{"canceled", domain.PaymentFailed},
		{"cancelled", domain.PaymentFailed},
		{"REJECTED", domain.PaymentFailed},
		{"pending", domain.PaymentPending},
		{"waiting_payment", domain.PaymentPending},
		{"", domain.PaymentPending},
		{"something_new", domain.PaymentPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStatus(tt.in), "status %q", tt.in)
	}
}

func TestParadiseInterpretWebhook(t *testing.T) {
	p := NewParadise(ParadiseCredentials{APIKey: "k"})

	payload := []byte(`{"event":"transaction.updated","data":{"id":"tx1","hash":"abc123","status":"paid","amount":990,"external_reference":"BOT7_1700000000_deadbeef"}}`)
	res, err := p.InterpretWebhook(payload)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, res.Status)
	assert.Equal(t, 9.90, res.Amount)
	assert.Equal(t, "tx1", res.TxID)
	assert.Equal(t, "abc123", res.TxHash)
	assert.Equal(t, "BOT7_1700000000_deadbeef", res.ExternalRef)
	assert.Equal(t, "paradise:abc123:paid", res.DedupKey)
	assert.Empty(t, res.ProducerID)

	_, err = p.InterpretWebhook([]byte(`{not json`))
	assert.Error(t, err)

	_, err = p.InterpretWebhook([]byte(`{"event":"ping","data":{}}`))
	assert.Error(t, err, "webhook without transaction identity must be rejected")
}

func TestPushynInterpretWebhook(t *testing.T) {
	p := NewPushyn(PushynCredentials{Token: "t"})

	res, err := p.InterpretWebhook([]byte(`{"id":"ABC-1","status":"paid","value":150}`))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, res.Status)
	assert.Equal(t, 1.50, res.Amount)
	assert.Equal(t, "abc-1", res.TxHash, "hash is the lowercased id")
	assert.Equal(t, "pushynpay:abc-1:paid", res.DedupKey)

	_, err = p.InterpretWebhook([]byte(`{"status":"paid"}`))
	assert.Error(t, err)
}

func TestUmbrellaInterpretWebhook(t *testing.T) {
	u := NewUmbrella(UmbrellaCredentials{PublicKey: "pk", SecretKey: "sk"})

	payload := []byte(`{"type":"charge.paid","data":{"id":"ch_1","transaction_hash":"h1","status":"paid","amount":2500,"reference":"BOT1_1_cafecafe","producer_hash":"prod-9"}}`)
	res, err := u.InterpretWebhook(payload)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, res.Status)
	assert.Equal(t, 25.00, res.Amount)
	assert.Equal(t, "prod-9", res.ProducerID)
	assert.Equal(t, "umbrella:h1:paid", res.DedupKey)

	assert.Equal(t, "prod-9", u.ExtractProducerIdentity(payload))
	assert.Empty(t, u.ExtractProducerIdentity([]byte(`broken`)))

	_, err = u.InterpretWebhook([]byte(`{"type":"charge.paid","data":{"id":"ch_1"}}`))
	assert.Error(t, err, "webhook without transaction hash must be rejected")
}

func TestGeneratePIXFloors(t *testing.T) {
	ctx := context.Background()

	_, err := NewParadise(ParadiseCredentials{}).GeneratePIX(ctx, PixRequest{Amount: 2.99})
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)

	_, err = NewPushyn(PushynCredentials{}).GeneratePIX(ctx, PixRequest{Amount: 0.49})
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)

	_, err = NewUmbrella(UmbrellaCredentials{}).GeneratePIX(ctx, PixRequest{Amount: 0.99})
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
}

func TestPushynStatusQueryUnsupported(t *testing.T) {
	_, err := NewPushyn(PushynCredentials{}).QueryPaymentStatus(context.Background(), "tx")
	assert.ErrorIs(t, err, domain.ErrStatusQueryUnsupported)
}

func TestRegistryKinds(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, []string{"paradise", "pushynpay", "umbrella"}, r.Kinds())

	for _, kind := range r.Kinds() {
		p, err := r.ParserFor(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, p.Kind())
	}

	_, err := r.ParserFor("stripe")
	assert.Error(t, err)
}
