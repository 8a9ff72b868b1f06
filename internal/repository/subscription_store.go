package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sousei-dev/push-service/internal/models"
)

// SubscriptionStore persists push subscriptions keyed by endpoint.
type SubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) (*SubscriptionStore, error) {
	if err := db.AutoMigrate(&models.PushSubscription{}); err != nil {
		return nil, fmt.Errorf("migrate push_subscriptions: %w", err)
	}
	return &SubscriptionStore{db: db}, nil
}

// Upsert saves the subscription, replacing the record for an endpoint the
// user re-subscribed with. Repeat saves of the same subscription are
// idempotent.
func (s *SubscriptionStore) Upsert(ctx context.Context, sub models.PushSubscription) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "p256dh", "auth", "expiration_time", "user_agent", "updated_at",
			}),
		}).Create(&sub).Error
}

// DeleteByEndpoint removes a subscription and reports whether it existed.
func (s *SubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&models.PushSubscription{}, "endpoint = ?", endpoint)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByUser returns every subscription registered for a user.
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// CountByUser returns the number of subscriptions a user holds.
func (s *SubscriptionStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PushSubscription{}).
		Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
