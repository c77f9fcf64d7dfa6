package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/averbier/go-topic-bot/internal/domain"
	"github.com/averbier/go-topic-bot/internal/services"
)

func newHandlerEnv(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Topic{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	h := New(db, services.NewTopicService(db))
	r := gin.New()
	r.GET("/api/v1/users/:id/topics", h.ListUserTopics)
	r.GET("/api/v1/users/:id/history", h.UserHistory)
	r.GET("/api/v1/topics/:id/messages", h.ListTopicMessages)
	return r, db
}

func do(t *testing.T, r *gin.Engine, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedTopicRow(t *testing.T, db *gorm.DB, userID int64, title string, createdAt time.Time) string {
	t.Helper()
	topic := domain.Topic{
		TopicID:   uuid.NewString(),
		UserID:    userID,
		Username:  "alice",
		Title:     title,
		CreatedAt: createdAt,
	}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	return topic.TopicID
}

func seedMessageRow(t *testing.T, db *gorm.DB, userID int64, topicID string, userText, botText string, at time.Time) {
	t.Helper()
	msg := domain.Message{
		TopicID:     &topicID,
		UserID:      userID,
		MessageUser: userText,
		MessageBot:  botText,
		Timestamp:   at,
	}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

// ----- /users/:id/topics -----

func TestListUserTopics_Paginated(t *testing.T) {
	r, db := newHandlerEnv(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedTopicRow(t, db, 1, fmt.Sprintf("t%d", i), now.Add(time.Duration(i)*time.Minute))
	}

	w := do(t, r, http.MethodGet, "/api/v1/users/1/topics?page=1&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp ListTopicsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Topics) != 2 || resp.Pagination.Total != 3 || !resp.Pagination.HasNext {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Topics[0].Title != "t2" {
		t.Fatalf("first topic = %q, want newest", resp.Topics[0].Title)
	}
}

func TestListUserTopics_ETag(t *testing.T) {
	r, db := newHandlerEnv(t)
	seedTopicRow(t, db, 1, "t", time.Now().UTC())

	w := do(t, r, http.MethodGet, "/api/v1/users/1/topics", nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("status=%d etag=%q", w.Code, etag)
	}

	w = do(t, r, http.MethodGet, "/api/v1/users/1/topics", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
}

func TestListUserTopics_BadUserID(t *testing.T) {
	r, _ := newHandlerEnv(t)

	w := do(t, r, http.MethodGet, "/api/v1/users/abc/topics", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != ErrCodeBadRequest {
		t.Fatalf("body = %s", w.Body.String())
	}
}

// ----- /topics/:id/messages -----

func TestListTopicMessages(t *testing.T) {
	r, db := newHandlerEnv(t)
	now := time.Now().UTC()
	tid := seedTopicRow(t, db, 1, "t", now.Add(-time.Hour))
	seedMessageRow(t, db, 1, tid, "q1", "a1", now.Add(-30*time.Minute))
	seedMessageRow(t, db, 1, tid, "q2", "a2", now.Add(-20*time.Minute))

	w := do(t, r, http.MethodGet, "/api/v1/topics/"+tid+"/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp TopicMessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Topic == nil || resp.Topic.TopicID != tid {
		t.Fatalf("topic = %+v", resp.Topic)
	}
	if len(resp.Messages) != 2 || resp.Messages[0].MessageUser != "q1" {
		t.Fatalf("messages = %+v", resp.Messages)
	}
}

func TestListTopicMessages_NotFound(t *testing.T) {
	r, _ := newHandlerEnv(t)

	w := do(t, r, http.MethodGet, "/api/v1/topics/"+uuid.NewString()+"/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// ----- /users/:id/history -----

func TestUserHistory(t *testing.T) {
	r, db := newHandlerEnv(t)
	now := time.Now().UTC()
	tid := seedTopicRow(t, db, 1, "Cooking", now.Add(-time.Hour))
	seedMessageRow(t, db, 1, tid, "q", "a", now.Add(-30*time.Minute))

	day := now.Add(-24 * time.Hour).Format("2006-01-02")
	w := do(t, r, http.MethodGet, "/api/v1/users/1/history?since="+day, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Since != day || len(resp.Records) != 1 || resp.Records[0].TopicTitle != "Cooking" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestUserHistory_EmptyWindowIsEmptyArray(t *testing.T) {
	r, _ := newHandlerEnv(t)

	w := do(t, r, http.MethodGet, "/api/v1/users/1/history?since=2024-01-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !json.Valid([]byte(body)) || body == "" {
		t.Fatalf("body = %q", body)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Records == nil || len(resp.Records) != 0 {
		t.Fatalf("records = %#v, want empty array", resp.Records)
	}
}

func TestUserHistory_BadSince(t *testing.T) {
	for _, target := range []string{
		"/api/v1/users/1/history",
		"/api/v1/users/1/history?since=01-06-2024",
	} {
		r, _ := newHandlerEnv(t)
		w := do(t, r, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, w.Code)
		}
	}
}
