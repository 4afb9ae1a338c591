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
	"gorm.io/gorm/clause"
)

type DefaultCommissionRepository struct {
	DB *gorm.DB
}

func NewDefaultCommissionRepository(db *gorm.DB) *DefaultCommissionRepository {
	return &DefaultCommissionRepository{DB: db}
}

func (r *DefaultCommissionRepository) CreateIfAbsent(ctx context.Context, c *domain.Commission) (bool, error) {
	m := &models.CommissionModel{
		PaymentID: c.PaymentID,
		TenantID:  c.TenantID,
		Percent:   c.Percent,
		Amount:    c.Amount,
	}
	res := postgres.DB(ctx, r.DB).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultCommissionRepository) GetByPaymentID(ctx context.Context, paymentID uint) (*domain.Commission, error) {
	var m models.CommissionModel
	if err := postgres.DB(ctx, r.DB).First(&m, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &domain.Commission{
		ID:        m.ID,
		PaymentID: m.PaymentID,
		TenantID:  m.TenantID,
		Percent:   m.Percent,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}, nil
}

type DefaultSubscriptionRepository struct {
	DB *gorm.DB
}

func NewDefaultSubscriptionRepository(db *gorm.DB) *DefaultSubscriptionRepository {
	return &DefaultSubscriptionRepository{DB: db}
}

func (r *DefaultSubscriptionRepository) CreateIfAbsent(ctx context.Context, s *domain.Subscription) (bool, error) {
	m := mappers.ToGORMSubscription(s)
	res := postgres.DB(ctx, r.DB).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		s.ID = m.ID
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultSubscriptionRepository) GetByPaymentID(ctx context.Context, paymentID uint) (*domain.Subscription, error) {
	var m models.SubscriptionModel
	if err := postgres.DB(ctx, r.DB).First(&m, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainSubscription(&m), nil
}

func (r *DefaultSubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	return postgres.DB(ctx, r.DB).Save(mappers.ToGORMSubscription(s)).Error
}

func (r *DefaultSubscriptionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Subscription, error) {
	var ms []models.SubscriptionModel
	err := postgres.DB(ctx, r.DB).
		Where("status IN ? AND expires_at < ?", []string{string(domain.SubscriptionActive), string(domain.SubscriptionError)}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Subscription, len(ms))
	for i := range ms {
		out[i] = mappers.ToDomainSubscription(&ms[i])
	}
	return out, nil
}

func (r *DefaultSubscriptionRepository) ListPendingForChat(ctx context.Context, chatID int64) ([]*domain.Subscription, error) {
	var ms []models.SubscriptionModel
	err := postgres.DB(ctx, r.DB).
		Where("chat_id = ? AND status = ?", chatID, string(domain.SubscriptionPending)).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Subscription, len(ms))
	for i := range ms {
		out[i] = mappers.ToDomainSubscription(&ms[i])
	}
	return out, nil
}

type DefaultPoolRepository struct {
	DB *gorm.DB
}

func NewDefaultPoolRepository(db *gorm.DB) *DefaultPoolRepository {
	return &DefaultPoolRepository{DB: db}
}

func (r *DefaultPoolRepository) GetByID(ctx context.Context, id uint) (*domain.Pool, error) {
	var m models.PoolModel
	if err := postgres.DB(ctx, r.DB).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainPool(&m), nil
}

func (r *DefaultPoolRepository) GetBySlug(ctx context.Context, tenantID uint, slug string) (*domain.Pool, error) {
	var m models.PoolModel
	if err := postgres.DB(ctx, r.DB).First(&m, "tenant_id = ? AND slug = ?", tenantID, slug).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainPool(&m), nil
}

func (r *DefaultPoolRepository) UpdateLastChosen(ctx context.Context, id uint, index int) error {
	return postgres.DB(ctx, r.DB).Model(&models.PoolModel{}).
		Where("id = ?", id).
		Update("last_chosen_index", index).Error
}

func (r *DefaultPoolRepository) UpdateHealth(ctx context.Context, id uint, healthy, total int) error {
	return postgres.DB(ctx, r.DB).Model(&models.PoolModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"healthy_bots": healthy, "total_bots": total}).Error
}

func (r *DefaultPoolRepository) ListBots(ctx context.Context, poolID uint) ([]*domain.PoolBot, error) {
	var ms []models.PoolBotModel
	err := postgres.DB(ctx, r.DB).
		Where("pool_id = ?", poolID).
		Order("priority DESC, id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.PoolBot, len(ms))
	for i := range ms {
		out[i] = mappers.ToDomainPoolBot(&ms[i])
	}
	return out, nil
}

func (r *DefaultPoolRepository) UpdateBotStatus(ctx context.Context, poolBotID uint, status domain.PoolBotStatus, failures int, circuitUntil *time.Time) error {
	return postgres.DB(ctx, r.DB).Model(&models.PoolBotModel{}).
		Where("id = ?", poolBotID).
		UpdateColumns(map[string]any{
			"status":               string(status),
			"consecutive_failures": failures,
			"circuit_open_until":   circuitUntil,
		}).Error
}

type DefaultRemarketingRepository struct {
	DB *gorm.DB
}

func NewDefaultRemarketingRepository(db *gorm.DB) *DefaultRemarketingRepository {
	return &DefaultRemarketingRepository{DB: db}
}

func (r *DefaultRemarketingRepository) GetCampaign(ctx context.Context, id uint) (*domain.RemarketingCampaign, error) {
	var m models.RemarketingCampaignModel
	if err := postgres.DB(ctx, r.DB).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainCampaign(&m)
}

func (r *DefaultRemarketingRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.RemarketingCampaign, error) {
	var ms []models.RemarketingCampaignModel
	err := postgres.DB(ctx, r.DB).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ? AND sent_count = 0", now).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RemarketingCampaign, 0, len(ms))
	for i := range ms {
		c, err := mappers.ToDomainCampaign(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *DefaultRemarketingRepository) IncrementSent(ctx context.Context, id uint, sent, failed int64) error {
	return postgres.DB(ctx, r.DB).Model(&models.RemarketingCampaignModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"sent_count":   gorm.Expr("sent_count + ?", sent),
			"failed_count": gorm.Expr("failed_count + ?", failed),
		}).Error
}

func (r *DefaultRemarketingRepository) IncrementClicked(ctx context.Context, id uint) error {
	return postgres.DB(ctx, r.DB).Model(&models.RemarketingCampaignModel{}).
		Where("id = ?", id).
		Update("clicked_count", gorm.Expr("clicked_count + 1")).Error
}

func (r *DefaultRemarketingRepository) IsBlacklisted(ctx context.Context, botID uint, chatID int64) (bool, error) {
	var count int64
	err := postgres.DB(ctx, r.DB).Model(&models.RemarketingBlacklistModel{}).
		Where("bot_id = ? AND chat_id = ?", botID, chatID).
		Count(&count).Error
	return count > 0, err
}

func (r *DefaultRemarketingRepository) Blacklist(ctx context.Context, botID uint, chatID int64, reason string) error {
	m := &models.RemarketingBlacklistModel{BotID: botID, ChatID: chatID, Reason: reason}
	return postgres.DB(ctx, r.DB).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

type DefaultBotMessageRepository struct {
	DB *gorm.DB
}

func NewDefaultBotMessageRepository(db *gorm.DB) *DefaultBotMessageRepository {
	return &DefaultBotMessageRepository{DB: db}
}

func (r *DefaultBotMessageRepository) Insert(ctx context.Context, msg *domain.BotMessage) error {
	m := &models.BotMessageModel{
		BotID:      msg.BotID,
		ChatID:     msg.ChatID,
		TelegramID: msg.TelegramID,
		Direction:  string(msg.Direction),
		Text:       msg.Text,
		MediaURL:   msg.MediaURL,
		MediaKind:  string(msg.MediaKind),
	}
	if err := postgres.DB(ctx, r.DB).Create(m).Error; err != nil {
		return err
	}
	msg.ID = m.ID
	return nil
}

func (r *DefaultBotMessageRepository) HasSimilarRecent(ctx context.Context, botID uint, chatID int64, text string, window time.Duration) (bool, error) {
	var count int64
	err := postgres.DB(ctx, r.DB).Model(&models.BotMessageModel{}).
		Where("bot_id = ? AND chat_id = ? AND text = ?", botID, chatID, text).
		Where("created_at > ?", time.Now().Add(-window)).
		Count(&count).Error
	return count > 0, err
}

func (r *DefaultBotMessageRepository) LastOutboundAt(ctx context.Context, botID uint, chatID int64) (*time.Time, error) {
	var m models.BotMessageModel
	err := postgres.DB(ctx, r.DB).
		Where("bot_id = ? AND chat_id = ? AND direction = ?", botID, chatID, string(domain.DirectionOutbound)).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m.CreatedAt, nil
}
