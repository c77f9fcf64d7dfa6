// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the ops HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/domain"
)

// TopicStats returns aggregate metadata for a user's topics: the total
// number of rows and the newest CreatedAt among them. When the user has no
// topics, count is 0 and newest is nil.
func TopicStats(ctx context.Context, db *gorm.DB, userID int64) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Topic{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// MessageStats returns aggregate metadata for a topic's messages: the total
// number of rows and the newest Timestamp among them. When the topic has no
// messages, count is 0 and newest is nil.
func MessageStats(ctx context.Context, db *gorm.DB, topicID string) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("topic_id = ?", topicID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		Timestamp time.Time
	}
	if err = q.Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}
