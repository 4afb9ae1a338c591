package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/metrics"
	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
)

// captionLimit is Telegram's hard cap on media captions.
const captionLimit = 1024

// interSendDelay spaces the media and text sends of one split step.
const interSendDelay = 200 * time.Millisecond

// Button is one inline-keyboard button. Exactly one of URL and
// CallbackData is set.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// SendParams describes one logical funnel step.
type SendParams struct {
	BotID     uint
	ChatID    int64
	Text      string
	MediaURL  string
	MediaKind domain.MediaKind
	Buttons   [][]Button
}

type planKind int

const (
	planNothing planKind = iota
	planTextOnly
	planMediaWithCaption
	planMediaThenText
	planPlaceholder
)

// placeholderPrompt is sent when a step has buttons but no content.
const placeholderPrompt = "Escolha uma opção:"

// planSend decides the send shape per the sequencing rules. Media that
// fails URL validation degrades to text-only.
func planSend(p SendParams) planKind {
	hasText := strings.TrimSpace(p.Text) != ""
	hasMedia := p.MediaURL != "" && p.MediaKind != domain.MediaNone && validMediaURL(p.MediaURL, p.MediaKind)
	hasButtons := len(p.Buttons) > 0

	switch {
	case !hasText && !hasMedia && !hasButtons:
		return planNothing
	case !hasText && !hasMedia:
		return planPlaceholder
	case !hasMedia:
		return planTextOnly
	// Telegram counts characters, not bytes; accented Portuguese copy
	// must not split below the limit.
	case utf8.RuneCountInString(p.Text) <= captionLimit:
		return planMediaWithCaption
	default:
		return planMediaThenText
	}
}

// validMediaURL rejects private-channel paths, which Telegram cannot fetch,
// and photos without a recognized image extension.
func validMediaURL(url string, kind domain.MediaKind) bool {
	if strings.Contains(url, "/c/") {
		return false
	}
	if kind == domain.MediaPhoto {
		lower := strings.ToLower(url)
		if !strings.HasSuffix(lower, ".jpg") && !strings.HasSuffix(lower, ".jpeg") && !strings.HasSuffix(lower, ".png") {
			return false
		}
	}
	return true
}

// buttonsFingerprint feeds the content hash so keyboard changes defeat the
// duplicate-send guard.
func buttonsFingerprint(rows [][]Button) string {
	var b strings.Builder
	for _, row := range rows {
		for _, btn := range row {
			b.WriteString(btn.Text)
			b.WriteString(btn.URL)
			b.WriteString(btn.CallbackData)
			b.WriteByte(';')
		}
		b.WriteByte('|')
	}
	return b.String()
}

func keyboard(rows [][]Button) models.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		out := make([]models.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			out = append(out, models.InlineKeyboardButton{
				Text:         btn.Text,
				URL:          btn.URL,
				CallbackData: btn.CallbackData,
			})
		}
		kb = append(kb, out)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: kb}
}

// Sender enforces the sequenced send contract: one content-hash lock per
// logical step, a dedicated lock on the post-media text, and a BotMessage
// row for every outbound.
type Sender struct {
	coord    domain.Coordinator
	messages domain.BotMessageRepository
	metrics  *metrics.FleetMetrics
	logger   *logrus.Entry
}

func NewSender(coord domain.Coordinator, messages domain.BotMessageRepository, m *metrics.FleetMetrics, logger *logrus.Entry) *Sender {
	return &Sender{coord: coord, messages: messages, metrics: m, logger: logger}
}

// SendSequenced sends one funnel step. When the step's lock is already
// held, the whole operation is abandoned: a racing worker got there first.
// The lock is never released early; its TTL is the dedup window.
func (s *Sender) SendSequenced(ctx context.Context, api *bot.Bot, p SendParams) error {
	plan := planSend(p)
	if plan == planNothing {
		return nil
	}

	hash := fleetredis.ContentHash(p.Text, p.MediaURL, buttonsFingerprint(p.Buttons))
	ok, err := s.coord.Acquire(ctx, fleetredis.SendMediaAndTextKey(p.ChatID, hash), fleetredis.TTLSendMedia)
	if err != nil {
		// Fail open: a coordinator outage must not silence the funnel.
		s.logger.WithError(err).Warn("send lock check failed, proceeding")
	} else if !ok {
		s.metrics.LockContentionTotal.WithLabelValues("send_media_and_text").Inc()
		return nil
	}

	switch plan {
	case planTextOnly:
		return s.sendText(ctx, api, p, p.Text, p.Buttons)
	case planPlaceholder:
		return s.sendText(ctx, api, p, placeholderPrompt, p.Buttons)
	case planMediaWithCaption:
		return s.sendMedia(ctx, api, p, p.Text, p.Buttons)
	case planMediaThenText:
		if err := s.sendMedia(ctx, api, p, "", nil); err != nil {
			return err
		}
		time.Sleep(interSendDelay)
		// The text carries the product pitch and the buy buttons; it gets
		// its own lock so a crash between the two sends cannot drop it on
		// retry, nor double it under a race.
		textHash := fleetredis.ShortHash(p.Text)
		ok, err := s.coord.Acquire(ctx, fleetredis.SendTextOnlyKey(p.ChatID, textHash), fleetredis.TTLSendText)
		if err != nil {
			s.logger.WithError(err).Warn("text lock check failed, proceeding")
		} else if !ok {
			s.metrics.LockContentionTotal.WithLabelValues("send_text_only").Inc()
			return nil
		}
		return s.sendText(ctx, api, p, p.Text, p.Buttons)
	}
	return nil
}

func (s *Sender) sendText(ctx context.Context, api *bot.Bot, p SendParams, text string, buttons [][]Button) error {
	msg, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      p.ChatID,
		Text:        text,
		ReplyMarkup: keyboard(buttons),
	})
	if err != nil {
		s.metrics.TelegramSendErrorsTotal.WithLabelValues(fmt.Sprint(p.BotID), "text").Inc()
		return fmt.Errorf("sendMessage to %d: %w", p.ChatID, err)
	}
	s.logOutbound(ctx, p, text, "", domain.MediaNone, msg)
	return nil
}

func (s *Sender) sendMedia(ctx context.Context, api *bot.Bot, p SendParams, caption string, buttons [][]Button) error {
	var (
		msg *models.Message
		err error
	)
	file := &models.InputFileString{Data: p.MediaURL}

	switch p.MediaKind {
	case domain.MediaPhoto:
		msg, err = api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: p.ChatID, Photo: file, Caption: caption, ReplyMarkup: keyboard(buttons),
		})
	case domain.MediaVideo:
		msg, err = api.SendVideo(ctx, &bot.SendVideoParams{
			ChatID: p.ChatID, Video: file, Caption: caption, ReplyMarkup: keyboard(buttons),
		})
	case domain.MediaAudio:
		msg, err = api.SendAudio(ctx, &bot.SendAudioParams{
			ChatID: p.ChatID, Audio: file, Caption: caption, ReplyMarkup: keyboard(buttons),
		})
	default:
		return fmt.Errorf("unsendable media kind %q", p.MediaKind)
	}
	if err != nil {
		s.metrics.TelegramSendErrorsTotal.WithLabelValues(fmt.Sprint(p.BotID), string(p.MediaKind)).Inc()
		return fmt.Errorf("send %s to %d: %w", p.MediaKind, p.ChatID, err)
	}
	s.logOutbound(ctx, p, caption, p.MediaURL, p.MediaKind, msg)
	return nil
}

// logOutbound records the send. Telegram occasionally omits message_id;
// a negative synthesized id keeps the row insertable without colliding.
func (s *Sender) logOutbound(ctx context.Context, p SendParams, text, mediaURL string, kind domain.MediaKind, msg *models.Message) {
	telegramID := int64(0)
	if msg != nil {
		telegramID = int64(msg.ID)
	}
	if telegramID == 0 {
		telegramID = -time.Now().UnixNano()
	}
	if err := s.messages.Insert(ctx, &domain.BotMessage{
		BotID:      p.BotID,
		ChatID:     p.ChatID,
		TelegramID: telegramID,
		Direction:  domain.DirectionOutbound,
		Text:       text,
		MediaURL:   mediaURL,
		MediaKind:  kind,
		CreatedAt:  time.Now(),
	}); err != nil {
		s.logger.WithError(err).Warn("outbound message log insert failed")
	}
}

// LogInbound persists an incoming message with similarity dedup: an
// identical (bot, chat, text) row inside 5 seconds marks a redelivery.
// Returns true when the message is fresh.
func (s *Sender) LogInbound(ctx context.Context, u *domain.Update) (bool, error) {
	if u.Text != "" {
		dup, err := s.messages.HasSimilarRecent(ctx, u.BotID, u.ChatID, u.Text, 5*time.Second)
		if err != nil {
			s.logger.WithError(err).Warn("inbound dedup check failed")
		} else if dup {
			return false, nil
		}
	}
	telegramID := u.MessageID
	if telegramID == 0 {
		telegramID = -time.Now().UnixNano()
	}
	err := s.messages.Insert(ctx, &domain.BotMessage{
		BotID:      u.BotID,
		ChatID:     u.ChatID,
		TelegramID: telegramID,
		Direction:  domain.DirectionInbound,
		Text:       u.Text,
		CreatedAt:  time.Now(),
	})
	return true, err
}
