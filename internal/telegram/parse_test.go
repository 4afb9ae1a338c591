package telegram

import (
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

func TestParseUpdateMessage(t *testing.T) {
	raw := &models.Update{
		ID: 1001,
		Message: &models.Message{
			ID:   55,
			Chat: models.Chat{ID: 777},
			From: &models.User{ID: 777, FirstName: "Ana", LastName: "Souza", Username: "ana"},
			Text: "  /start t123  ",
		},
	}

	u := ParseUpdate(9, raw)
	assert.Equal(t, domain.UpdateMessage, u.Kind)
	assert.Equal(t, uint(9), u.BotID)
	assert.EqualValues(t, 1001, u.UpdateID)
	assert.EqualValues(t, 777, u.ChatID)
	assert.EqualValues(t, 55, u.MessageID)
	assert.Equal(t, "/start t123", u.Text)
	assert.Equal(t, "Ana Souza", u.FromName)
	assert.Equal(t, "ana", u.FromUsername)
}

func TestParseUpdateCallback(t *testing.T) {
	raw := &models.Update{
		ID: 1002,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb1",
			Data: "buy_0",
			From: models.User{ID: 888, Username: "bob"},
			Message: models.MaybeInaccessibleMessage{
				Type:    models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{Chat: models.Chat{ID: 888}},
			},
		},
	}

	u := ParseUpdate(9, raw)
	assert.Equal(t, domain.UpdateCallback, u.Kind)
	assert.Equal(t, "cb1", u.CallbackID)
	assert.Equal(t, "buy_0", u.CallbackData)
	assert.EqualValues(t, 888, u.ChatID)
}

// Old callbacks lose their message; the sender's id is the only chat hint.
func TestParseUpdateCallbackInaccessibleMessage(t *testing.T) {
	raw := &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb2",
			Data: "verify_3",
			From: models.User{ID: 999},
		},
	}

	u := ParseUpdate(9, raw)
	assert.EqualValues(t, 999, u.ChatID)
}

func TestParseUpdateChatMember(t *testing.T) {
	raw := &models.Update{
		ChatMember: &models.ChatMemberUpdated{
			Chat: models.Chat{ID: -100123},
			From: models.User{ID: 777, FirstName: "Ana"},
		},
	}

	u := ParseUpdate(9, raw)
	assert.Equal(t, domain.UpdateChatMember, u.Kind)
	assert.EqualValues(t, 777, u.ChatID)
	assert.EqualValues(t, -100123, u.JoinedChatID)
}

func TestParseUpdateOther(t *testing.T) {
	u := ParseUpdate(9, &models.Update{ID: 500})
	assert.Equal(t, domain.UpdateOther, u.Kind)
	assert.EqualValues(t, 500, u.UpdateID, "update id survives so dedup still applies")
}

func TestStartPayload(t *testing.T) {
	assert.Equal(t, "", StartPayload("/start"))
	assert.Equal(t, "", StartPayload("/start   "))
	assert.Equal(t, "tABC", StartPayload("/start tABC"))
	assert.Equal(t, "pool_3_ext", StartPayload("/start pool_3_ext"))
	assert.Equal(t, "", StartPayload("hello"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana Souza", displayName(&models.User{FirstName: "Ana", LastName: "Souza"}))
	assert.Equal(t, "Ana", displayName(&models.User{FirstName: "Ana"}))
	assert.Equal(t, "ana", displayName(&models.User{Username: "ana"}))
	assert.Equal(t, "", displayName(nil))
}

func TestWebhookURL(t *testing.T) {
	assert.Equal(t, "https://fleet.example.com/webhook/telegram/12", WebhookURL("https://fleet.example.com", 12))
	assert.Equal(t, "https://fleet.example.com/webhook/telegram/12", WebhookURL("https://fleet.example.com/", 12))
}
