package telegram

import (
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

// ParseUpdate folds a raw Telegram update into the canonical form the
// funnel consumes. Unrecognized kinds come back as UpdateOther with the
// update id intact so the ingestion lock still dedups them.
func ParseUpdate(botID uint, raw *models.Update) *domain.Update {
	u := &domain.Update{
		UpdateID:   raw.ID,
		BotID:      botID,
		Kind:       domain.UpdateOther,
		ReceivedAt: time.Now(),
	}

	switch {
	case raw.Message != nil:
		m := raw.Message
		u.Kind = domain.UpdateMessage
		u.ChatID = m.Chat.ID
		u.MessageID = int64(m.ID)
		u.Text = strings.TrimSpace(m.Text)
		if m.From != nil {
			u.FromName = displayName(m.From)
			u.FromUsername = m.From.Username
		}
	case raw.CallbackQuery != nil:
		cb := raw.CallbackQuery
		u.Kind = domain.UpdateCallback
		u.CallbackID = cb.ID
		u.CallbackData = strings.TrimSpace(cb.Data)
		u.FromName = displayName(&cb.From)
		u.FromUsername = cb.From.Username
		u.ChatID = callbackChatID(cb)
		if u.ChatID == 0 {
			u.ChatID = cb.From.ID
		}
	case raw.ChatMember != nil:
		cm := raw.ChatMember
		u.Kind = domain.UpdateChatMember
		u.ChatID = cm.From.ID
		u.JoinedChatID = cm.Chat.ID
		u.FromName = displayName(&cm.From)
		u.FromUsername = cm.From.Username
	}

	return u
}

// StartPayload extracts the deep-link payload from a /start message, or ""
// for a bare /start.
func StartPayload(text string) string {
	if !strings.HasPrefix(text, "/start") {
		return ""
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, "/start"))
	return rest
}

func displayName(user *models.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return name
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	switch cb.Message.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if cb.Message.Message != nil {
			return cb.Message.Message.Chat.ID
		}
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if cb.Message.InaccessibleMessage != nil {
			return cb.Message.InaccessibleMessage.Chat.ID
		}
	}
	return 0
}
