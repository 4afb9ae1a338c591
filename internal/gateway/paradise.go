package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

const paradiseBaseURL = "https://api.paradisepags.com.br/v1"

// paradiseMinimum is the provider floor: R$3.00, the strictest in the fleet.
const paradiseMinimum = 3.00

type ParadiseCredentials struct {
	APIKey string `json:"api_key"`
}

type Paradise struct {
	creds ParadiseCredentials
	http  *http.Client
}

func NewParadise(creds ParadiseCredentials) *Paradise {
	return &Paradise{
		creds: creds,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *Paradise) Kind() string              { return "paradise" }
func (p *Paradise) MinimumAmount() float64    { return paradiseMinimum }
func (p *Paradise) SupportsStatusQuery() bool { return true }
func (p *Paradise) AllowsPixReuse() bool      { return true }

type paradisePixRequest struct {
	AmountCents  int64   `json:"amount"`
	Description  string  `json:"description"`
	ExternalRef  string  `json:"external_reference"`
	SplitPercent float64 `json:"split_percentage,omitempty"`
	Customer     struct {
		Name     string `json:"name"`
		Document string `json:"document,omitempty"`
	} `json:"customer"`
}

type paradisePixResponse struct {
	ID        string `json:"id"`
	Hash      string `json:"hash"`
	Status    string `json:"status"`
	PixCode   string `json:"pix_code"`
	QRCodeURL string `json:"qr_code_url"`
	Message   string `json:"message"`
}

func (p *Paradise) VerifyCredentials(ctx context.Context) (bool, error) {
	resp, err := p.do(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (p *Paradise) GeneratePIX(ctx context.Context, req PixRequest) (*PixResult, error) {
	if req.Amount < paradiseMinimum {
		return nil, fmt.Errorf("%w: paradise floor is R$%.2f", domain.ErrBelowMinimum, paradiseMinimum)
	}

	body := paradisePixRequest{
		AmountCents:  int64(req.Amount*100 + 0.5),
		Description:  req.Description,
		ExternalRef:  req.ExternalID,
		SplitPercent: req.SplitPercent,
	}
	body.Customer.Name = req.Customer.Name
	body.Customer.Document = req.Customer.Document

	resp, err := p.do(ctx, http.MethodPost, "/transactions/pix", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out paradisePixResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("paradise: bad response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity || MapStatus(out.Status) == domain.PaymentFailed {
		return nil, fmt.Errorf("%w: %s", domain.ErrPixRefused, out.Message)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("paradise: unexpected status %d", resp.StatusCode)
	}

	return &PixResult{
		PixCode:   out.PixCode,
		QRCodeURL: out.QRCodeURL,
		TxID:      out.ID,
		TxHash:    out.Hash,
		Status:    MapStatus(out.Status),
	}, nil
}

func (p *Paradise) QueryPaymentStatus(ctx context.Context, txID string) (*PaymentInfo, error) {
	resp, err := p.do(ctx, http.MethodGet, "/transactions/"+txID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paradise: status query returned %d", resp.StatusCode)
	}

	var out struct {
		Status      string `json:"status"`
		AmountCents int64  `json:"amount"`
		Payer       struct {
			Name     string `json:"name"`
			Document string `json:"document"`
		} `json:"payer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return &PaymentInfo{
		Status:    MapStatus(out.Status),
		Amount:    float64(out.AmountCents) / 100,
		PayerName: out.Payer.Name,
		PayerDoc:  out.Payer.Document,
	}, nil
}

type paradiseWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID          string `json:"id"`
		Hash        string `json:"hash"`
		Status      string `json:"status"`
		AmountCents int64  `json:"amount"`
		ExternalRef string `json:"external_reference"`
	} `json:"data"`
}

func (p *Paradise) InterpretWebhook(payload []byte) (*WebhookResult, error) {
	var wh paradiseWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("paradise: bad webhook payload: %w", err)
	}
	if wh.Data.ID == "" && wh.Data.Hash == "" {
		return nil, fmt.Errorf("paradise: webhook without transaction identity")
	}
	return &WebhookResult{
		Status:      MapStatus(wh.Data.Status),
		Amount:      float64(wh.Data.AmountCents) / 100,
		TxID:        wh.Data.ID,
		TxHash:      wh.Data.Hash,
		ExternalRef: wh.Data.ExternalRef,
		DedupKey:    fmt.Sprintf("paradise:%s:%s", wh.Data.Hash, wh.Data.Status),
	}, nil
}

func (p *Paradise) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, paradiseBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.creds.APIKey)

	return p.http.Do(req)
}
