package domain

import "time"

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "in"
	DirectionOutbound MessageDirection = "out"
)

// BotMessage logs one Telegram message in either direction. TelegramID is
// synthesized when Telegram's message_id is missing.
type BotMessage struct {
	ID         uint
	BotID      uint
	ChatID     int64
	TelegramID int64
	Direction  MessageDirection
	Text       string
	MediaURL   string
	MediaKind  MediaKind
	CreatedAt  time.Time
}
