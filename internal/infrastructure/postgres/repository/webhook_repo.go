package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/mappers"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

type DefaultWebhookEventRepository struct {
	DB *gorm.DB
}

func NewDefaultWebhookEventRepository(db *gorm.DB) *DefaultWebhookEventRepository {
	return &DefaultWebhookEventRepository{DB: db}
}

func (r *DefaultWebhookEventRepository) Insert(ctx context.Context, e *domain.WebhookEvent) error {
	m := &models.WebhookEventModel{
		GatewayKind: e.GatewayKind,
		DedupKey:    e.DedupKey,
		TxID:        e.TxID,
		TxHash:      e.TxHash,
		Status:      e.Status,
		RawPayload:  e.RawPayload,
		ReceivedAt:  e.ReceivedAt,
	}
	if err := postgres.DB(ctx, r.DB).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateWebhook
		}
		return err
	}
	e.ID = m.ID
	return nil
}

func (r *DefaultWebhookEventRepository) LatestForTx(ctx context.Context, kind, txHash string) (*domain.WebhookEvent, error) {
	var m models.WebhookEventModel
	err := postgres.DB(ctx, r.DB).
		Where("gateway_kind = ? AND tx_hash = ?", kind, txHash).
		Order("received_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainWebhookEvent(&m), nil
}

type DefaultPendingMatchRepository struct {
	DB *gorm.DB
}

func NewDefaultPendingMatchRepository(db *gorm.DB) *DefaultPendingMatchRepository {
	return &DefaultPendingMatchRepository{DB: db}
}

func (r *DefaultPendingMatchRepository) Upsert(ctx context.Context, match *domain.WebhookPendingMatch) error {
	m := &models.WebhookPendingMatchModel{
		GatewayKind: match.GatewayKind,
		DedupKey:    match.DedupKey,
		TxID:        match.TxID,
		TxHash:      match.TxHash,
		Payload:     match.Payload,
		Attempts:    match.Attempts,
		LastAttempt: match.LastAttempt,
		Status:      string(domain.PendingMatchWaiting),
	}
	return postgres.DB(ctx, r.DB).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(m).Error
}

func (r *DefaultPendingMatchRepository) ListWaiting(ctx context.Context, limit int) ([]*domain.WebhookPendingMatch, error) {
	var ms []models.WebhookPendingMatchModel
	err := postgres.DB(ctx, r.DB).
		Where("status = ?", string(domain.PendingMatchWaiting)).
		Order("attempts ASC, created_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.WebhookPendingMatch, len(ms))
	for i := range ms {
		out[i] = mappers.ToDomainPendingMatch(&ms[i])
	}
	return out, nil
}

func (r *DefaultPendingMatchRepository) IncrementAttempts(ctx context.Context, id uint, at time.Time) error {
	return postgres.DB(ctx, r.DB).Model(&models.WebhookPendingMatchModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_attempt": at,
		}).Error
}

func (r *DefaultPendingMatchRepository) Delete(ctx context.Context, id uint) error {
	return postgres.DB(ctx, r.DB).Delete(&models.WebhookPendingMatchModel{}, "id = ?", id).Error
}
