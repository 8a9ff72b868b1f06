package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryStatus records the outcome of one push request so the backend
// can inspect what happened to a notification it fired.
type DeliveryStatus struct {
	RequestID string `gorm:"primaryKey"`
	Status    string
	UpdatedAt time.Time
	Channel   string
	Detail    string
}

const (
	StatusProcessing = "processing"
	StatusDelivered  = "delivered"
	StatusSuppressed = "suppressed" // forwarded in-app, no system notification
	StatusFailed     = "failed"
)

type StatusStore struct {
	db *gorm.DB
}

func NewStatusStore(db *gorm.DB) (*StatusStore, error) {
	if err := db.AutoMigrate(&DeliveryStatus{}); err != nil {
		return nil, fmt.Errorf("migrate delivery_statuses: %w", err)
	}
	return &StatusStore{db: db}, nil
}

func (s *StatusStore) UpdateStatus(ctx context.Context, requestID, status, detail string) error {
	ds := DeliveryStatus{
		RequestID: requestID,
		Status:    status,
		UpdatedAt: time.Now(),
		Channel:   "webpush",
		Detail:    detail,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at", "channel", "detail"}),
		}).Create(&ds).Error
}
