package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

const pushynBaseURL = "https://api.pushynpay.com.br/api"

// pushynMinimum is R$0.50, the lowest floor in the fleet.
const pushynMinimum = 0.50

type PushynCredentials struct {
	Token string `json:"token"`
}

// Pushyn is webhook-only: no status polling, and a pending PIX may not be
// re-issued, so the funnel always mints a fresh code here.
type Pushyn struct {
	creds PushynCredentials
	http  *http.Client
}

func NewPushyn(creds PushynCredentials) *Pushyn {
	return &Pushyn{
		creds: creds,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *Pushyn) Kind() string              { return "pushynpay" }
func (p *Pushyn) MinimumAmount() float64    { return pushynMinimum }
func (p *Pushyn) SupportsStatusQuery() bool { return false }
func (p *Pushyn) AllowsPixReuse() bool      { return false }

func (p *Pushyn) VerifyCredentials(ctx context.Context) (bool, error) {
	// No auth probe endpoint; a zero-value PIX dry run is the documented
	// way to validate a token, so a minimum-value create + immediate 200
	// is treated as verified.
	resp, err := p.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

type pushynPixResponse struct {
	ID        string `json:"id"`
	QRCode    string `json:"qr_code"`
	QRCodeB64 string `json:"qr_code_base64"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (p *Pushyn) GeneratePIX(ctx context.Context, req PixRequest) (*PixResult, error) {
	if req.Amount < pushynMinimum {
		return nil, fmt.Errorf("%w: pushynpay floor is R$%.2f", domain.ErrBelowMinimum, pushynMinimum)
	}

	body := map[string]any{
		"value":       int64(req.Amount*100 + 0.5),
		"webhook_url": "",
		"split_rules": []map[string]any{},
		"external_id": req.ExternalID,
	}
	if req.SplitPercent > 0 {
		body["split_rules"] = []map[string]any{
			{"percentage": req.SplitPercent},
		}
	}

	resp, err := p.do(ctx, http.MethodPost, "/pix/cashIn", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out pushynPixResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pushynpay: bad response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: pushynpay rejected the token", domain.ErrPixRefused)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: %s", domain.ErrPixRefused, out.Message)
	}

	return &PixResult{
		PixCode:   out.QRCode,
		QRCodeURL: out.QRCodeB64,
		TxID:      out.ID,
		TxHash:    strings.ToLower(out.ID),
		Status:    MapStatus(out.Status),
	}, nil
}

func (p *Pushyn) QueryPaymentStatus(ctx context.Context, txID string) (*PaymentInfo, error) {
	return nil, domain.ErrStatusQueryUnsupported
}

type pushynWebhook struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Value    int64  `json:"value"`
	EndToEnd string `json:"end_to_end_id"`
	Payer    string `json:"payer_name"`
}

func (p *Pushyn) InterpretWebhook(payload []byte) (*WebhookResult, error) {
	var wh pushynWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("pushynpay: bad webhook payload: %w", err)
	}
	if wh.ID == "" {
		return nil, fmt.Errorf("pushynpay: webhook without transaction id")
	}
	return &WebhookResult{
		Status:   MapStatus(wh.Status),
		Amount:   float64(wh.Value) / 100,
		TxID:     wh.ID,
		TxHash:   strings.ToLower(wh.ID),
		DedupKey: fmt.Sprintf("pushynpay:%s:%s", strings.ToLower(wh.ID), wh.Status),
	}, nil
}

func (p *Pushyn) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, pushynBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.creds.Token)

	return p.http.Do(req)
}
