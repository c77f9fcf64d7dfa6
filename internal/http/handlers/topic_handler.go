// Topic and history HTTP handlers.
//
// This file exposes the read-only ops endpoints:
//   - GET /users/{id}/topics          (list, paginated, ETag support)
//   - GET /topics/{id}/messages       (full transcript for one topic)
//   - GET /users/{id}/history?since=  (cross-topic ledger history)
//
// Handlers are transport-thin: they validate input, call application
// services or repository functions, and translate results into HTTP
// responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/domain"
	"github.com/averbier/go-topic-bot/internal/repo"
	"github.com/averbier/go-topic-bot/internal/services"
	"github.com/averbier/go-topic-bot/internal/utils"
)

// TopicService defines topic read operations consumed by HTTP handlers.
// Implementations must honor the provided context.
type TopicService interface {
	// ListPage returns a page of the user's topics and the total count.
	ListPage(ctx context.Context, userID int64, page, pageSize int) ([]domain.Topic, int64, error)
	// Get fetches a topic by id.
	Get(ctx context.Context, topicID string) (*domain.Topic, error)
}

// Handlers groups the ops API endpoints. The DB handle backs the
// repository-level reads (transcripts, history, ETag stats).
type Handlers struct {
	DB       *gorm.DB
	topicSvc TopicService
}

// New constructs a Handlers instance bound to the given dependencies.
func New(db *gorm.DB, topicSvc TopicService) *Handlers {
	return &Handlers{DB: db, topicSvc: topicSvc}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTopicsResponse wraps a page of topics and pagination information.
type ListTopicsResponse struct {
	Topics     []domain.Topic `json:"topics"`
	Pagination Pagination     `json:"pagination"`
}

// TopicMessagesResponse wraps one topic and its full transcript.
type TopicMessagesResponse struct {
	Topic    *domain.Topic    `json:"topic"`
	Messages []domain.Message `json:"messages"`
}

// HistoryResponse wraps a user's cross-topic history window.
type HistoryResponse struct {
	Since   string                 `json:"since"`
	Records []domain.HistoryRecord `json:"records"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListUserTopics returns a page of the user's topics. Supports weak ETag via
// If-None-Match and may return 304.
func (h *Handlers) ListUserTopics(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okID := utils.ParseInt64(c.Param("id"))
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := repo.TopicStats(ctx, h.DB, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"topics:%d:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.topicSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListTopicsResponse{
		Topics: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ListTopicMessages returns a topic's full transcript in chronological
// order. Supports weak ETag via If-None-Match and may return 304.
func (h *Handlers) ListTopicMessages(c *gin.Context) {
	ctx := c.Request.Context()
	topicID := c.Param("id")

	topic, err := h.topicSvc.Get(ctx, topicID)
	if errors.Is(err, services.ErrTopicNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "topic not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if count, maxTS, err := repo.MessageStats(ctx, h.DB, topicID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, topicID, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	msgs, err := repo.ListTopicMessages(ctx, h.DB, topicID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TopicMessagesResponse{Topic: topic, Messages: msgs})
}

// UserHistory returns the user's cross-topic exchange history since the
// given date (YYYY-MM-DD, interpreted as UTC midnight).
func (h *Handlers) UserHistory(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okID := utils.ParseInt64(c.Param("id"))
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}

	sinceArg := c.Query("since")
	if sinceArg == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing since parameter (YYYY-MM-DD)")
		return
	}
	since, err := time.ParseInLocation("2006-01-02", sinceArg, time.UTC)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid since parameter (YYYY-MM-DD)")
		return
	}

	records, err := repo.HistorySince(ctx, h.DB, uid, since)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeHistoryFailed, err.Error())
		return
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	ok(c, http.StatusOK, HistoryResponse{Since: sinceArg, Records: records})
}
