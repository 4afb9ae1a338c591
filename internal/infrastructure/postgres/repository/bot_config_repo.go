package repository

import (
	"context"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/mappers"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultBotConfigRepository struct {
	DB *gorm.DB
}

func NewDefaultBotConfigRepository(db *gorm.DB) *DefaultBotConfigRepository {
	return &DefaultBotConfigRepository{DB: db}
}

func (r *DefaultBotConfigRepository) GetByBotID(ctx context.Context, botID uint) (*domain.BotConfig, error) {
	var m models.BotConfigModel
	if err := postgres.DB(ctx, r.DB).First(&m, "bot_id = ?", botID).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainBotConfig(&m)
}

func (r *DefaultBotConfigRepository) Save(ctx context.Context, cfg *domain.BotConfig) error {
	m, err := mappers.ToGORMBotConfig(cfg)
	if err != nil {
		return err
	}
	return postgres.DB(ctx, r.DB).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_id"}},
		UpdateAll: true,
	}).Create(m).Error
}
