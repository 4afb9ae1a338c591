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

type DefaultBotRepository struct {
	DB *gorm.DB
}

func NewDefaultBotRepository(db *gorm.DB) *DefaultBotRepository {
	return &DefaultBotRepository{DB: db}
}

func (r *DefaultBotRepository) GetByID(ctx context.Context, id uint) (*domain.Bot, error) {
	var m models.BotModel
	if err := postgres.DB(ctx, r.DB).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBotNotFound
		}
		return nil, err
	}
	return mappers.ToDomainBot(&m), nil
}

func (r *DefaultBotRepository) GetByToken(ctx context.Context, token string) (*domain.Bot, error) {
	var m models.BotModel
	if err := postgres.DB(ctx, r.DB).First(&m, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBotNotFound
		}
		return nil, err
	}
	return mappers.ToDomainBot(&m), nil
}

func (r *DefaultBotRepository) ListActive(ctx context.Context) ([]*domain.Bot, error) {
	var ms []models.BotModel
	if err := postgres.DB(ctx, r.DB).Where("active = ?", true).Find(&ms).Error; err != nil {
		return nil, err
	}
	bots := make([]*domain.Bot, len(ms))
	for i := range ms {
		bots[i] = mappers.ToDomainBot(&ms[i])
	}
	return bots, nil
}

func (r *DefaultBotRepository) SetRunning(ctx context.Context, id uint, running bool) error {
	return postgres.DB(ctx, r.DB).Model(&models.BotModel{}).
		Where("id = ?", id).
		Update("running", running).Error
}

func (r *DefaultBotRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return postgres.DB(ctx, r.DB).Model(&models.BotModel{}).
		Where("id = ?", id).
		Update("active", active).Error
}

func (r *DefaultBotRepository) IncrementTotals(ctx context.Context, id uint, revenue float64) error {
	db := postgres.DB(ctx, r.DB)
	if err := db.Model(&models.BotModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"total_sales":   gorm.Expr("total_sales + 1"),
			"total_revenue": gorm.Expr("total_revenue + ?", revenue),
			"updated_at":    time.Now(),
		}).Error; err != nil {
		return err
	}

	var tenantID uint
	if err := db.Model(&models.BotModel{}).
		Select("tenant_id").
		Where("id = ?", id).
		Scan(&tenantID).Error; err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_sales":   gorm.Expr("tenant_total_models.total_sales + 1"),
			"total_revenue": gorm.Expr("tenant_total_models.total_revenue + ?", revenue),
			"updated_at":    time.Now(),
		}),
	}).Create(&models.TenantTotalModel{
		TenantID:     tenantID,
		TotalSales:   1,
		TotalRevenue: revenue,
		UpdatedAt:    time.Now(),
	}).Error
}

// RotateToken swaps the bot token and archives the bot's users in one
// transaction, since chats from the old bot identity can no longer be
// addressed.
func (r *DefaultBotRepository) RotateToken(ctx context.Context, id uint, newToken string) error {
	return postgres.DB(ctx, r.DB).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BotModel{}).
			Where("id = ?", id).
			Update("token", newToken).Error; err != nil {
			return err
		}
		return tx.Model(&models.BotUserModel{}).
			Where("bot_id = ? AND archived = ?", id, false).
			Update("archived", true).Error
	})
}
