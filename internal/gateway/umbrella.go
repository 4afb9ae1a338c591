package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

const umbrellaBaseURL = "https://api.umbrellapay.com.br/v2"

const umbrellaMinimum = 1.00

type UmbrellaCredentials struct {
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key"`
}

// Umbrella is a multi-account provider: one platform credential serves many
// producer accounts, and webhooks carry the producer hash that routes them
// back to the owning tenant.
type Umbrella struct {
	creds UmbrellaCredentials
	http  *http.Client
}

func NewUmbrella(creds UmbrellaCredentials) *Umbrella {
	return &Umbrella{
		creds: creds,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (u *Umbrella) Kind() string              { return "umbrella" }
func (u *Umbrella) MinimumAmount() float64    { return umbrellaMinimum }
func (u *Umbrella) SupportsStatusQuery() bool { return true }
func (u *Umbrella) AllowsPixReuse() bool      { return true }

func (u *Umbrella) VerifyCredentials(ctx context.Context) (bool, error) {
	resp, err := u.do(ctx, http.MethodGet, "/merchant/profile", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (u *Umbrella) GeneratePIX(ctx context.Context, req PixRequest) (*PixResult, error) {
	if req.Amount < umbrellaMinimum {
		return nil, fmt.Errorf("%w: umbrella floor is R$%.2f", domain.ErrBelowMinimum, umbrellaMinimum)
	}

	body := map[string]any{
		"amount":      int64(req.Amount*100 + 0.5),
		"description": req.Description,
		"reference":   req.ExternalID,
		"split": map[string]any{
			"platform_percentage": req.SplitPercent,
		},
		"customer": map[string]any{
			"name": req.Customer.Name,
		},
		"payment_method": "pix",
	}

	resp, err := u.do(ctx, http.MethodPost, "/charges", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out struct {
		ID     string `json:"id"`
		Hash   string `json:"transaction_hash"`
		Status string `json:"status"`
		Pix    struct {
			Copypaste string `json:"copypaste"`
			QRCodeURL string `json:"qrcode_url"`
		} `json:"pix"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("umbrella: bad response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s", domain.ErrPixRefused, out.Message)
	}

	return &PixResult{
		PixCode:   out.Pix.Copypaste,
		QRCodeURL: out.Pix.QRCodeURL,
		TxID:      out.ID,
		TxHash:    out.Hash,
		Status:    MapStatus(out.Status),
	}, nil
}

func (u *Umbrella) QueryPaymentStatus(ctx context.Context, txID string) (*PaymentInfo, error) {
	resp, err := u.do(ctx, http.MethodGet, "/charges/"+txID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("umbrella: status query returned %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
		Payer  struct {
			Name string `json:"name"`
		} `json:"payer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return &PaymentInfo{
		Status:    MapStatus(out.Status),
		Amount:    float64(out.Amount) / 100,
		PayerName: out.Payer.Name,
	}, nil
}

type umbrellaWebhook struct {
	Type string `json:"type"`
	Data struct {
		ID           string `json:"id"`
		Hash         string `json:"transaction_hash"`
		Status       string `json:"status"`
		Amount       int64  `json:"amount"`
		Reference    string `json:"reference"`
		ProducerHash string `json:"producer_hash"`
	} `json:"data"`
}

func (u *Umbrella) InterpretWebhook(payload []byte) (*WebhookResult, error) {
	var wh umbrellaWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("umbrella: bad webhook payload: %w", err)
	}
	if wh.Data.Hash == "" {
		return nil, fmt.Errorf("umbrella: webhook without transaction hash")
	}
	return &WebhookResult{
		Status:      MapStatus(wh.Data.Status),
		Amount:      float64(wh.Data.Amount) / 100,
		TxID:        wh.Data.ID,
		TxHash:      wh.Data.Hash,
		ExternalRef: wh.Data.Reference,
		DedupKey:    fmt.Sprintf("umbrella:%s:%s", wh.Data.Hash, wh.Data.Status),
		ProducerID:  wh.Data.ProducerHash,
	}, nil
}

// ExtractProducerIdentity pulls the producing account hash out of a raw
// webhook without a full parse, for gateway-row routing before dispatch.
func (u *Umbrella) ExtractProducerIdentity(payload []byte) string {
	var wh umbrellaWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return ""
	}
	return wh.Data.ProducerHash
}

func (u *Umbrella) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, umbrellaBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Public-Key", u.creds.PublicKey)
	req.Header.Set("X-Signature", u.sign(raw))

	return u.http.Do(req)
}

func (u *Umbrella) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(u.creds.SecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
