package repository

import (
	"context"
	"errors"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/mappers"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultGatewayRepository struct {
	DB *gorm.DB
}

func NewDefaultGatewayRepository(db *gorm.DB) *DefaultGatewayRepository {
	return &DefaultGatewayRepository{DB: db}
}

func (r *DefaultGatewayRepository) GetActiveVerified(ctx context.Context, tenantID uint, kind string) (*domain.Gateway, error) {
	var m models.GatewayModel
	err := postgres.DB(ctx, r.DB).
		Where("tenant_id = ? AND kind = ? AND active = ? AND verified = ?", tenantID, kind, true, true).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveGateway
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainGateway(&m), nil
}

func (r *DefaultGatewayRepository) PickActiveVerified(ctx context.Context, tenantID uint) (*domain.Gateway, error) {
	var m models.GatewayModel
	err := postgres.DB(ctx, r.DB).
		Where("tenant_id = ? AND active = ? AND verified = ?", tenantID, true, true).
		Order("updated_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveGateway
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainGateway(&m), nil
}

func (r *DefaultGatewayRepository) GetByID(ctx context.Context, id uint) (*domain.Gateway, error) {
	var m models.GatewayModel
	if err := postgres.DB(ctx, r.DB).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainGateway(&m), nil
}

func (r *DefaultGatewayRepository) GetByProducerID(ctx context.Context, kind, producerID string) (*domain.Gateway, error) {
	var m models.GatewayModel
	err := postgres.DB(ctx, r.DB).
		Where("kind = ? AND producer_id = ?", kind, producerID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveGateway
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainGateway(&m), nil
}

func (r *DefaultGatewayRepository) SetVerified(ctx context.Context, id uint, verified bool) error {
	return postgres.DB(ctx, r.DB).Model(&models.GatewayModel{}).
		Where("id = ?", id).
		Update("verified", verified).Error
}

func (r *DefaultGatewayRepository) IncrementTotal(ctx context.Context, id uint) error {
	return postgres.DB(ctx, r.DB).Model(&models.GatewayModel{}).
		Where("id = ?", id).
		Update("total_transactions", gorm.Expr("total_transactions + 1")).Error
}

func (r *DefaultGatewayRepository) IncrementSuccessful(ctx context.Context, id uint) error {
	return postgres.DB(ctx, r.DB).Model(&models.GatewayModel{}).
		Where("id = ?", id).
		Update("successful_transactions", gorm.Expr("successful_transactions + 1")).Error
}

func (r *DefaultGatewayRepository) ListByKind(ctx context.Context, kind string) ([]*domain.Gateway, error) {
	var ms []models.GatewayModel
	if err := postgres.DB(ctx, r.DB).Where("kind = ?", kind).Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Gateway, len(ms))
	for i := range ms {
		out[i] = mappers.ToDomainGateway(&ms[i])
	}
	return out, nil
}
