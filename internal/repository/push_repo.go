package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msyamrijal/jadwal-website/internal/model"
)

// PushRepository push subscriptions and the delivery log
type PushRepository interface {
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, userID, endpoint string) (int64, error)
	DeleteSubscriptionsByID(ctx context.Context, ids []string) error
	ListSubscriptionsByUsers(ctx context.Context, userIDs []string) ([]model.PushSubscription, error)
	CountSubscriptions(ctx context.Context, userID string) (int64, error)
	CreateDeliveries(ctx context.Context, deliveries []model.PushDelivery) error
}

type pushRepo struct {
	db *gorm.DB
}

// NewPushRepo creates a PushRepository
func NewPushRepo(db *gorm.DB) PushRepository {
	return &pushRepo{db: db}
}

// UpsertSubscription stores sub keyed by endpoint; a browser that
// re-subscribes moves the endpoint to the current user.
func (r *pushRepo) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

func (r *pushRepo) DeleteSubscription(ctx context.Context, userID, endpoint string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&model.PushSubscription{})
	return result.RowsAffected, result.Error
}

func (r *pushRepo) DeleteSubscriptionsByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.PushSubscription{}).Error
}

func (r *pushRepo) ListSubscriptionsByUsers(ctx context.Context, userIDs []string) ([]model.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var subs []model.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (r *pushRepo) CountSubscriptions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.PushSubscription{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *pushRepo) CreateDeliveries(ctx context.Context, deliveries []model.PushDelivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(deliveries, 200).Error
}
