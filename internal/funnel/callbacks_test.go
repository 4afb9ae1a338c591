package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data string
		want Callback
	}{
		{"buy_0", Callback{Kind: CbBuy, Index: 0}},
		{"buy_3", Callback{Kind: CbBuy, Index: 3}},
		{"verify_42", Callback{Kind: CbVerify, PaymentID: 42}},
		{"bump_yes_1", Callback{Kind: CbBumpYes, Index: 1}},
		{"bump_no_0", Callback{Kind: CbBumpNo, Index: 0}},
		{"multi_bump_yes_123456_2_990", Callback{Kind: CbMultiBumpYes, ChatID: 123456, Index: 2, Cents: 990}},
		{"multi_bump_no_123456_0_500", Callback{Kind: CbMultiBumpNo, ChatID: 123456, Index: 0, Cents: 500}},
		{"downsell_1_1490_2", Callback{Kind: CbDownsell, DownsellIndex: 1, Cents: 1490, Index: 2}},
		{"dwnsl_0_2_750", Callback{Kind: CbDownsellPct, DownsellIndex: 0, Index: 2, Cents: 750}},
		{"downsell_bump_yes_1_1990", Callback{Kind: CbDownsellBumpYes, DownsellIndex: 1, Cents: 1990}},
		{"downsell_bump_no_0_990", Callback{Kind: CbDownsellBumpNo, DownsellIndex: 0, Cents: 990}},
		{"rmkt_7_1", Callback{Kind: CbRemarketing, CampaignID: 7, ButtonIndex: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCallback(tt.data))
		})
	}
}

func TestParseCallbackRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"",
		"buy_",
		"buy_x",
		"buy_-1",
		"verify_abc",
		"multi_bump_yes_123_2",
		"downsell_1_990",
		"downsell_1_990_2_extra",
		"dwnsl_a_b_c",
		"downsell_bump_yes_1",
		"rmkt_7",
		"open_menu",
	} {
		assert.Equal(t, CbUnknown, ParseCallback(data).Kind, "data %q", data)
	}
}

// A downsell-bump answer must never be swallowed by the plain downsell
// branch even though they share a prefix.
func TestParseCallbackPrefixPrecedence(t *testing.T) {
	cb := ParseCallback("downsell_bump_yes_2_1500")
	assert.Equal(t, CbDownsellBumpYes, cb.Kind)
	assert.Equal(t, 2, cb.DownsellIndex)
	assert.Equal(t, int64(1500), cb.Cents)
}
