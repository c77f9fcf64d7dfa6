// Package domain defines the core persistence models for the application.
package domain

import "time"

// ProcessedUpdate records a Telegram update id that has already been
// handled, so redelivered updates can be skipped. Rows expire after a TTL
// and are purged opportunistically.
type ProcessedUpdate struct {
	UpdateID  int       `gorm:"column:update_id;primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	SeenAt    time.Time `gorm:"column:seen_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
