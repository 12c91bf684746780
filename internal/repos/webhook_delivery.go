package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

type WebhookDeliveryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, deliveries []*types.WebhookDelivery) ([]*types.WebhookDelivery, error)
	GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.WebhookDelivery, error)
}

type webhookDeliveryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWebhookDeliveryRepo(db *gorm.DB, baseLog *logger.Logger) WebhookDeliveryRepo {
	repoLog := baseLog.With("repo", "WebhookDeliveryRepo")
	return &webhookDeliveryRepo{db: db, log: repoLog}
}

func (r *webhookDeliveryRepo) Create(ctx context.Context, tx *gorm.DB, deliveries []*types.WebhookDelivery) ([]*types.WebhookDelivery, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(deliveries) == 0 {
		return []*types.WebhookDelivery{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *webhookDeliveryRepo) GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.WebhookDelivery, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var results []*types.WebhookDelivery
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
