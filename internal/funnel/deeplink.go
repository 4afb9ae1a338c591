package funnel

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DeepLink is the decoded /start payload minted by the landing redirect.
type DeepLink struct {
	PoolID       uint
	ExternalID   string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
	CampaignCode string
	// FbclidHash is the truncated hash carried in compact payloads; the
	// tracking cache resolves it back to the full click id.
	FbclidHash string
	Legacy     bool
}

// compactPayload is the single-letter JSON the redirect packs under
// Telegram's 64-byte start-parameter limit.
type compactPayload struct {
	Pool         uint   `json:"p,omitempty"`
	ExternalID   string `json:"e,omitempty"`
	UTMSource    string `json:"s,omitempty"`
	UTMMedium    string `json:"m,omitempty"`
	UTMCampaign  string `json:"c,omitempty"`
	FbclidHash   string `json:"f,omitempty"`
	CampaignCode string `json:"g,omitempty"`
}

// DecodeDeepLink parses the three accepted formats:
//
//	t<base64url JSON>   compact tracking payload
//	pool_<id>_<ext>     legacy pool link with external id
//	p<digits>           oldest legacy pool link
//
// An empty payload decodes to nil without error.
func DecodeDeepLink(payload string) (*DeepLink, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(payload, "t"):
		raw, err := decodeBase64URL(payload[1:])
		if err != nil {
			return nil, fmt.Errorf("deep link: %w", err)
		}
		var cp compactPayload
		if err := json.Unmarshal(raw, &cp); err != nil {
			return nil, fmt.Errorf("deep link: bad payload json: %w", err)
		}
		return &DeepLink{
			PoolID:       cp.Pool,
			ExternalID:   cp.ExternalID,
			UTMSource:    cp.UTMSource,
			UTMMedium:    cp.UTMMedium,
			UTMCampaign:  cp.UTMCampaign,
			CampaignCode: cp.CampaignCode,
			FbclidHash:   cp.FbclidHash,
		}, nil

	case strings.HasPrefix(payload, "pool_"):
		parts := strings.SplitN(payload[len("pool_"):], "_", 2)
		poolID, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("deep link: bad pool id %q", parts[0])
		}
		dl := &DeepLink{PoolID: uint(poolID), Legacy: true}
		if len(parts) == 2 {
			dl.ExternalID = parts[1]
		}
		return dl, nil

	case strings.HasPrefix(payload, "p"):
		poolID, err := strconv.ParseUint(payload[1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("deep link: unrecognized payload %q", payload)
		}
		return &DeepLink{PoolID: uint(poolID), Legacy: true}, nil
	}

	return nil, fmt.Errorf("deep link: unrecognized payload %q", payload)
}

// decodeBase64URL accepts both padded and unpadded variants; redirect
// versions differed on padding.
func decodeBase64URL(s string) ([]byte, error) {
	if raw, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
