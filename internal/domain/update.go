package domain

import "time"

type UpdateKind string

const (
	UpdateMessage    UpdateKind = "message"
	UpdateCallback   UpdateKind = "callback_query"
	UpdateChatMember UpdateKind = "chat_member"
	UpdateOther      UpdateKind = "other"
)

// Update is the canonical form of a Telegram update consumed by the funnel.
type Update struct {
	UpdateID     int64
	Kind         UpdateKind
	BotID        uint
	ChatID       int64
	MessageID    int64
	Text         string
	CallbackID   string
	CallbackData string
	FromName     string
	FromUsername string
	JoinedChatID int64
	ReceivedAt   time.Time
}

// IsCommand reports whether the update is a bot command message.
func (u *Update) IsCommand() bool {
	return u.Kind == UpdateMessage && len(u.Text) > 0 && u.Text[0] == '/'
}
