package telegram

import (
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

func TestPlanSend(t *testing.T) {
	photo := "https://cdn.example.com/a.jpg"

	tests := []struct {
		name string
		p    SendParams
		want planKind
	}{
		{"empty step", SendParams{}, planNothing},
		{"buttons only", SendParams{Buttons: [][]Button{{{Text: "Comprar", CallbackData: "buy_0"}}}}, planPlaceholder},
		{"text only", SendParams{Text: "oi"}, planTextOnly},
		{"whitespace text is no text", SendParams{Text: "   "}, planNothing},
		{"short text rides the caption", SendParams{Text: strings.Repeat("a", 1024), MediaURL: photo, MediaKind: domain.MediaPhoto}, planMediaWithCaption},
		{"long text splits the send", SendParams{Text: strings.Repeat("a", 1025), MediaURL: photo, MediaKind: domain.MediaPhoto}, planMediaThenText},
		{"accented caption counts runes not bytes", SendParams{Text: strings.Repeat("ã", 1024), MediaURL: photo, MediaKind: domain.MediaPhoto}, planMediaWithCaption},
		{"accented text over the limit still splits", SendParams{Text: strings.Repeat("ã", 1025), MediaURL: photo, MediaKind: domain.MediaPhoto}, planMediaThenText},
		{"invalid media degrades to text", SendParams{Text: "oi", MediaURL: "https://t.me/c/123/4", MediaKind: domain.MediaPhoto}, planTextOnly},
		{"media without kind is ignored", SendParams{Text: "oi", MediaURL: photo, MediaKind: domain.MediaNone}, planTextOnly},
		{"media only", SendParams{MediaURL: photo, MediaKind: domain.MediaPhoto}, planMediaWithCaption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planSend(tt.p))
		})
	}
}

func TestValidMediaURL(t *testing.T) {
	assert.True(t, validMediaURL("https://cdn.example.com/a.jpg", domain.MediaPhoto))
	assert.True(t, validMediaURL("https://cdn.example.com/a.JPEG", domain.MediaPhoto))
	assert.True(t, validMediaURL("https://cdn.example.com/a.png", domain.MediaPhoto))
	assert.False(t, validMediaURL("https://cdn.example.com/a.webp", domain.MediaPhoto))
	assert.False(t, validMediaURL("https://cdn.example.com/a", domain.MediaPhoto))

	// Private channel paths are unreachable for Telegram's fetcher.
	assert.False(t, validMediaURL("https://t.me/c/1234/5", domain.MediaVideo))

	// Non-photo kinds carry no extension requirement.
	assert.True(t, validMediaURL("https://cdn.example.com/v", domain.MediaVideo))
	assert.True(t, validMediaURL("https://cdn.example.com/track", domain.MediaAudio))
}

func TestButtonsFingerprint(t *testing.T) {
	a := [][]Button{{{Text: "Sim", CallbackData: "bump_yes_0"}}, {{Text: "Não", CallbackData: "bump_no_0"}}}
	b := [][]Button{{{Text: "Sim", CallbackData: "bump_yes_0"}}, {{Text: "Não", CallbackData: "bump_no_1"}}}

	assert.Equal(t, buttonsFingerprint(a), buttonsFingerprint(a))
	assert.NotEqual(t, buttonsFingerprint(a), buttonsFingerprint(b))
	assert.Empty(t, buttonsFingerprint(nil))
}

func TestKeyboard(t *testing.T) {
	assert.Nil(t, keyboard(nil))

	kb := keyboard([][]Button{{{Text: "Acessar", URL: "https://example.com?t=tok"}}})
	mk, ok := kb.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, mk.InlineKeyboard, 1)
	assert.Equal(t, "Acessar", mk.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://example.com?t=tok", mk.InlineKeyboard[0][0].URL)
}
