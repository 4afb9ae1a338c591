package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/mappers"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultBotUserRepository struct {
	DB *gorm.DB
}

func NewDefaultBotUserRepository(db *gorm.DB) *DefaultBotUserRepository {
	return &DefaultBotUserRepository{DB: db}
}

func (r *DefaultBotUserRepository) GetOrCreate(ctx context.Context, botID uint, chatID int64, displayName string) (*domain.BotUser, error) {
	var m models.BotUserModel
	err := postgres.DB(ctx, r.DB).
		Where("bot_id = ? AND chat_id = ? AND archived = ?", botID, chatID, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = models.BotUserModel{
			BotID:           botID,
			ChatID:          chatID,
			DisplayName:     displayName,
			LastInteraction: time.Now(),
		}
		if err := postgres.DB(ctx, r.DB).Create(&m).Error; err != nil {
			return nil, err
		}
		return mappers.ToDomainBotUser(&m), nil
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainBotUser(&m), nil
}

func (r *DefaultBotUserRepository) Get(ctx context.Context, botID uint, chatID int64) (*domain.BotUser, error) {
	var m models.BotUserModel
	err := postgres.DB(ctx, r.DB).
		Where("bot_id = ? AND chat_id = ? AND archived = ?", botID, chatID, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrBotUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainBotUser(&m), nil
}

func (r *DefaultBotUserRepository) Update(ctx context.Context, user *domain.BotUser) error {
	return postgres.DB(ctx, r.DB).Save(mappers.ToGORMBotUser(user)).Error
}

func (r *DefaultBotUserRepository) ResetWelcome(ctx context.Context, botID uint, chatID int64) error {
	return postgres.DB(ctx, r.DB).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.BotUserModel{}).
			Where("bot_id = ? AND chat_id = ? AND archived = ?", botID, chatID, false).
			UpdateColumns(map[string]any{
				"welcome_sent":     false,
				"last_interaction": time.Now(),
			}).Error
	})
}

func (r *DefaultBotUserRepository) MarkWelcomeSent(ctx context.Context, botID uint, chatID int64, at time.Time) error {
	return postgres.DB(ctx, r.DB).Model(&models.BotUserModel{}).
		Where("bot_id = ? AND chat_id = ? AND archived = ?", botID, chatID, false).
		UpdateColumns(map[string]any{
			"welcome_sent":    true,
			"welcome_sent_at": at,
		}).Error
}

// MarkViewContentSent flips the flag and reports whether this call won the
// flip, so ViewContent fires once per BotUser.
func (r *DefaultBotUserRepository) MarkViewContentSent(ctx context.Context, botID uint, chatID int64) (bool, error) {
	res := postgres.DB(ctx, r.DB).Model(&models.BotUserModel{}).
		Where("bot_id = ? AND chat_id = ? AND archived = ? AND meta_view_content_sent = ?", botID, chatID, false, false).
		Update("meta_view_content_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultBotUserRepository) ArchiveByBot(ctx context.Context, botID uint) error {
	return postgres.DB(ctx, r.DB).Model(&models.BotUserModel{}).
		Where("bot_id = ? AND archived = ?", botID, false).
		Update("archived", true).Error
}

func (r *DefaultBotUserRepository) ListForRemarketing(ctx context.Context, botID uint, audience domain.RemarketingAudience) ([]*domain.BotUser, error) {
	buyers := r.DB.Model(&models.PaymentModel{}).
		Select("1").
		Where("payment_models.bot_id = bot_user_models.bot_id").
		Where("payment_models.customer_chat_id = bot_user_models.chat_id").
		Where("payment_models.status = ?", string(domain.PaymentPaid))

	var q *gorm.DB
	switch audience {
	case domain.AudienceBuyers:
		q = postgres.DB(ctx, r.DB).Model(&models.BotUserModel{}).
			Where("bot_id = ? AND archived = ?", botID, false).
			Where("EXISTS (?)", buyers)
	case domain.AudienceNonBuyers:
		q = postgres.DB(ctx, r.DB).Model(&models.BotUserModel{}).
			Where("bot_id = ? AND archived = ?", botID, false).
			Where("NOT EXISTS (?)", buyers)
	default:
		q = postgres.DB(ctx, r.DB).Model(&models.BotUserModel{}).
			Where("bot_id = ? AND archived = ?", botID, false)
	}

	var ms []models.BotUserModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	users := make([]*domain.BotUser, len(ms))
	for i := range ms {
		users[i] = mappers.ToDomainBotUser(&ms[i])
	}
	return users, nil
}
