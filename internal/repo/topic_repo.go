// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Topic
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a topic is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateTopic inserts a new Topic row owned by userID with the given title.
// The topic ID is a randomly generated UUID (string), and CreatedAt is set
// to UTC, which also makes the new topic the user's active one.
func CreateTopic(ctx context.Context, db *gorm.DB, userID int64, username, title string) (*domain.Topic, error) {
	t := &domain.Topic{
		TopicID:   uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// LatestTopic returns the user's most recently created topic - the active
// one. There is no stored session pointer: recency over created_at is the
// whole resolution rule. Returns ErrNotFound when the user has no topics.
func LatestTopic(ctx context.Context, db *gorm.DB, userID int64) (*domain.Topic, error) {
	var t domain.Topic
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTopics returns all topics belonging to userID, newest first.
// It returns an empty slice if the user has no topics.
func ListTopics(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Topic, error) {
	var out []domain.Topic
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountTopics returns the total number of topics owned by userID.
func CountTopics(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListTopicsPage returns a paginated slice of topics for userID, newest
// first. Use CountTopics to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListTopicsPage(ctx context.Context, db *gorm.DB, userID int64, offset, limit int) ([]domain.Topic, error) {
	var out []domain.Topic
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetTopic fetches a single topic by its ID. If the record does not exist,
// it returns ErrNotFound.
func GetTopic(ctx context.Context, db *gorm.DB, topicID string) (*domain.Topic, error) {
	var t domain.Topic
	err := db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
