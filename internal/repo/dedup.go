// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides helpers for the ProcessedUpdate model
// used to skip redelivered Telegram updates.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/domain"
)

// ErrDuplicateUpdate indicates the update id was already recorded.
var ErrDuplicateUpdate = errors.New("update already processed")

// SeenUpdate reports whether updateID has a non-expired dedup record.
func SeenUpdate(ctx context.Context, db *gorm.DB, updateID int, now time.Time) (bool, error) {
	var rec domain.ProcessedUpdate
	err := db.WithContext(ctx).
		Where("update_id = ? AND expires_at > ?", updateID, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkUpdate records updateID as processed for ttl. A primary-key collision
// maps to ErrDuplicateUpdate so callers can distinguish "raced with another
// delivery" from real failures. Expired rows for the same id are replaced.
func MarkUpdate(ctx context.Context, db *gorm.DB, updateID int, userID int64, ttl time.Duration) error {
	now := time.Now().UTC()

	// Drop an expired row occupying the id, if any.
	db.WithContext(ctx).
		Where("update_id = ? AND expires_at <= ?", updateID, now).
		Delete(&domain.ProcessedUpdate{})

	rec := &domain.ProcessedUpdate{
		UpdateID:  updateID,
		UserID:    userID,
		SeenAt:    now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUpdate
		}
		return err
	}
	return nil
}

// PurgeExpiredUpdates deletes dedup rows past their expiry. Best effort;
// returns the number of rows removed.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
