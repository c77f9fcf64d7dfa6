// Package services – TopicService
//
// This file implements the TopicService, which manages the lifecycle of
// conversation topics. It resolves the active topic for an incoming message
// (creating one from the message text when the user has none) and handles
// explicit topic creation from bot commands. Titles derived from message
// text are clipped by rune length so multibyte text is never split.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/averbier/go-topic-bot/internal/domain"
	"github.com/averbier/go-topic-bot/internal/repo"
)

// TopicService provides topic-level operations such as resolving the
// active topic, explicit creation, and listing.
type TopicService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewTopicService constructs a TopicService.
func NewTopicService(db *gorm.DB) *TopicService {
	return &TopicService{DB: db}
}

// ResolveOrCreate returns the id and title of the user's most recent topic,
// creating one from messageText when the user has none. The created topic's
// title is the message text clipped to the title limit.
func (s *TopicService) ResolveOrCreate(ctx context.Context, userID int64, username, messageText string) (topicID, title string, err error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "ResolveOrCreate",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	topic, err := repo.LatestTopic(ctx, s.DB, userID)
	if err == nil {
		return topic.TopicID, topic.Title, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", "", err
	}
	topic, err = repo.CreateTopic(ctx, s.DB, userID, username, domain.DeriveTitle(messageText))
	if err != nil {
		return "", "", err
	}
	return topic.TopicID, topic.Title, nil
}

// CreateExplicit creates a topic with a user-chosen title, stored verbatim
// after whitespace trimming. Only derived titles are clipped; a chosen title
// is the user's own words. Subsequent messages attach to the new topic
// because it becomes the user's most recent one.
func (s *TopicService) CreateExplicit(ctx context.Context, userID int64, username, title string) (string, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "CreateExplicit",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	topic, err := repo.CreateTopic(ctx, s.DB, userID, username, title)
	if err != nil {
		return "", err
	}
	return topic.TopicID, nil
}

// List returns all of the user's topics, newest first.
func (s *TopicService) List(ctx context.Context, userID int64) ([]domain.Topic, error) {
	return repo.ListTopics(ctx, s.DB, userID)
}

// ListPage returns one page of the user's topics plus the total count.
// Page numbers start at 1; invalid inputs are clamped.
func (s *TopicService) ListPage(ctx context.Context, userID int64, page, pageSize int) ([]domain.Topic, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total, err := repo.CountTopics(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListTopicsPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get fetches a topic by id, mapping missing rows to ErrTopicNotFound.
func (s *TopicService) Get(ctx context.Context, topicID string) (*domain.Topic, error) {
	topic, err := repo.GetTopic(ctx, s.DB, topicID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTopicNotFound
	}
	if err != nil {
		return nil, err
	}
	return topic, nil
}
