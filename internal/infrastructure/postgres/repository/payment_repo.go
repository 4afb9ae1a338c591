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

type DefaultPaymentRepository struct {
	DB *gorm.DB
}

func NewDefaultPaymentRepository(db *gorm.DB) *DefaultPaymentRepository {
	return &DefaultPaymentRepository{DB: db}
}

func (r *DefaultPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	m, err := mappers.ToGORMPayment(p)
	if err != nil {
		return err
	}
	if err := postgres.DB(ctx, r.DB).Create(m).Error; err != nil {
		return err
	}
	p.ID = m.ID
	p.CreatedAt = m.CreatedAt
	return nil
}

func (r *DefaultPaymentRepository) GetByID(ctx context.Context, id uint) (*domain.Payment, error) {
	var m models.PaymentModel
	if err := postgres.DB(ctx, r.DB).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return mappers.ToDomainPayment(&m)
}

func (r *DefaultPaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error) {
	var m models.PaymentModel
	if err := postgres.DB(ctx, r.DB).First(&m, "external_id = ?", externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return mappers.ToDomainPayment(&m)
}

// GetByGatewayTx matches a webhook to its Payment row. Providers are not
// consistent about which identifier their webhooks carry, so both the
// transaction id and hash are tried.
func (r *DefaultPaymentRepository) GetByGatewayTx(ctx context.Context, kind, txID, txHash string) (*domain.Payment, error) {
	var m models.PaymentModel
	q := postgres.DB(ctx, r.DB).Where("gateway_kind = ?", kind)
	switch {
	case txHash != "" && txID != "":
		q = q.Where("gateway_tx_hash = ? OR gateway_tx_id = ?", txHash, txID)
	case txHash != "":
		q = q.Where("gateway_tx_hash = ?", txHash)
	case txID != "":
		q = q.Where("gateway_tx_id = ?", txID)
	default:
		return nil, domain.ErrPaymentNotFound
	}
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return mappers.ToDomainPayment(&m)
}

func (r *DefaultPaymentRepository) FindReusable(ctx context.Context, botID uint, chatID int64, product string, amount float64, maxAge time.Duration) (*domain.Payment, error) {
	var m models.PaymentModel
	err := postgres.DB(ctx, r.DB).
		Where("bot_id = ? AND customer_chat_id = ? AND product_name = ?", botID, chatID, product).
		Where("status = ? AND amount = ?", string(domain.PaymentPending), amount).
		Where("created_at > ?", time.Now().Add(-maxAge)).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainPayment(&m)
}

func (r *DefaultPaymentRepository) FindRecentPendingOther(ctx context.Context, botID uint, chatID int64, product string, window time.Duration) (*domain.Payment, error) {
	var m models.PaymentModel
	err := postgres.DB(ctx, r.DB).
		Where("bot_id = ? AND customer_chat_id = ? AND product_name <> ?", botID, chatID, product).
		Where("status = ?", string(domain.PaymentPending)).
		Where("created_at > ?", time.Now().Add(-window)).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainPayment(&m)
}

// MarkPaid is the ordering primitive for the paid transition: the WHERE
// status='pending' predicate lets exactly one worker win.
func (r *DefaultPaymentRepository) MarkPaid(ctx context.Context, id uint, paidAt time.Time) (bool, error) {
	res := postgres.DB(ctx, r.DB).Model(&models.PaymentModel{}).
		Where("id = ? AND status = ?", id, string(domain.PaymentPending)).
		UpdateColumns(map[string]any{
			"status":     string(domain.PaymentPaid),
			"paid_at":    paidAt,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultPaymentRepository) MarkFailed(ctx context.Context, id uint) error {
	return postgres.DB(ctx, r.DB).Model(&models.PaymentModel{}).
		Where("id = ? AND status = ?", id, string(domain.PaymentPending)).
		Update("status", string(domain.PaymentFailed)).Error
}

func (r *DefaultPaymentRepository) MarkPurchaseSent(ctx context.Context, id uint) (bool, error) {
	res := postgres.DB(ctx, r.DB).Model(&models.PaymentModel{}).
		Where("id = ? AND meta_purchase_sent = ?", id, false).
		Update("meta_purchase_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	m, err := mappers.ToGORMPayment(p)
	if err != nil {
		return err
	}
	return postgres.DB(ctx, r.DB).Save(m).Error
}

func (r *DefaultPaymentRepository) ListStalePending(ctx context.Context, kind string, minAge, maxAge, debounce time.Duration, limit int) ([]*domain.Payment, error) {
	now := time.Now()
	var ms []models.PaymentModel
	err := postgres.DB(ctx, r.DB).
		Where("gateway_kind = ? AND status = ?", kind, string(domain.PaymentPending)).
		Where("created_at < ?", now.Add(-minAge)).
		Where("created_at > ?", now.Add(-maxAge)).
		Where("updated_at < ?", now.Add(-debounce)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	payments := make([]*domain.Payment, 0, len(ms))
	for i := range ms {
		p, err := mappers.ToDomainPayment(&ms[i])
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}
