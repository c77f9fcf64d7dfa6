package repo

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/domain"
)

func TestInsertMessage_CreatesTopicFromFirstMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := InsertMessage(ctx, db, 42, "Hello", "Hi there!", "alice", ""); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	topics, err := ListTopics(ctx, db, 42)
	if err != nil || len(topics) != 1 {
		t.Fatalf("topics = %v, err = %v, want exactly one", topics, err)
	}
	if topics[0].Title != "Hello" {
		t.Errorf("derived title = %q, want the message text", topics[0].Title)
	}
	if topics[0].Username != "alice" {
		t.Errorf("username = %q, want alice", topics[0].Username)
	}

	msgs, err := ListTopicMessages(ctx, db, topics[0].TopicID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages = %v, err = %v", msgs, err)
	}
	if msgs[0].MessageUser != "Hello" || msgs[0].MessageBot != "Hi there!" {
		t.Errorf("unexpected texts: %+v", msgs[0])
	}
}

func TestInsertMessage_LongFirstMessageTruncatesTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	long := strings.Repeat("x", 80)
	if err := InsertMessage(ctx, db, 1, long, "ok", "", ""); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	topics, _ := ListTopics(ctx, db, 1)
	if len(topics) != 1 {
		t.Fatalf("want one topic, got %d", len(topics))
	}
	want := strings.Repeat("x", 50) + "..."
	if topics[0].Title != want {
		t.Errorf("title = %q, want %q", topics[0].Title, want)
	}
	if topics[0].Username != "Unknown" {
		t.Errorf("placeholder username = %q, want Unknown", topics[0].Username)
	}
}

func TestInsertMessage_ReusesActiveTopic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := InsertMessage(ctx, db, 5, "first", "r1", "bob", ""); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := InsertMessage(ctx, db, 5, "second", "r2", "bob", ""); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	topics, _ := ListTopics(ctx, db, 5)
	if len(topics) != 1 {
		t.Fatalf("repeat messages must not create topics, got %d", len(topics))
	}
	msgs, _ := ListTopicMessages(ctx, db, topics[0].TopicID)
	if len(msgs) != 2 {
		t.Fatalf("want both messages under the topic, got %d", len(msgs))
	}
}

func TestInsertMessage_ExplicitTopicID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	topic, err := CreateTopic(ctx, db, 9, "carol", "Recipes")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	if err := InsertMessage(ctx, db, 9, "pasta?", "carbonara", "carol", topic.TopicID); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	msgs, err := ListTopicMessages(ctx, db, topic.TopicID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("msgs = %v, err = %v", msgs, err)
	}
	if msgs[0].Username == nil || *msgs[0].Username != "carol" {
		t.Errorf("username not stored: %+v", msgs[0])
	}
}

func TestInsertMessage_FallsBackToReducedRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	topic, err := CreateTopic(ctx, db, 7, "erin", "Outages")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	restore := sleepFn
	sleepFn = func(time.Duration) {}
	defer func() { sleepFn = restore }()

	// Message inserts carrying a topic fail as if the connection dropped,
	// so the retry budget is spent and the reduced row goes through.
	err = db.Callback().Create().Before("gorm:create").Register("drop_full_rows", func(tx *gorm.DB) {
		if m, ok := tx.Statement.Dest.(*domain.Message); ok && m.TopicID != nil {
			tx.AddError(driver.ErrBadConn)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	defer db.Callback().Create().Remove("drop_full_rows")

	if err := InsertMessage(ctx, db, 7, "still there?", "yes", "erin", topic.TopicID); err != nil {
		t.Fatalf("InsertMessage should succeed through the reduced row: %v", err)
	}

	var rows []domain.Message
	if err := db.Where("user_id = ?", 7).Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want exactly the reduced one", len(rows))
	}
	got := rows[0]
	if got.TopicID != nil || got.Username != nil {
		t.Errorf("reduced row must store NULL topic/username: %+v", got)
	}
	if got.MessageUser != "still there?" || got.MessageBot != "yes" {
		t.Errorf("texts lost in fallback: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Errorf("timestamp not recorded")
	}
}

func TestHistorySince_OrderedWithTopicTitles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	topic, _ := CreateTopic(ctx, db, 3, "dave", "Gardening")
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, texts := range [][2]string{{"q1", "a1"}, {"q2", "a2"}, {"q3", "a3"}} {
		msg := domain.Message{
			TopicID:     &topic.TopicID,
			UserID:      3,
			MessageUser: texts[0],
			MessageBot:  texts[1],
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&msg).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	recs, err := HistorySince(ctx, db, 3, base)
	if err != nil {
		t.Fatalf("HistorySince: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if i > 0 && r.Timestamp.Before(recs[i-1].Timestamp) {
			t.Errorf("rows out of order at %d", i)
		}
		if r.TopicTitle != "Gardening" || r.TopicID != topic.TopicID {
			t.Errorf("row %d lost topic association: %+v", i, r)
		}
	}
	if recs[0].UserText != "q1" || recs[2].BotText != "a3" {
		t.Errorf("unexpected texts: %+v", recs)
	}
}

func TestHistorySince_SentinelsForTopiclessRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	msg := domain.Message{
		UserID:      4,
		MessageUser: "orphan",
		MessageBot:  "reply",
		Timestamp:   time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
	}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	recs, err := HistorySince(ctx, db, 4, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("HistorySince: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if recs[0].TopicTitle != domain.NoTopicTitle {
		t.Errorf("title = %q, want sentinel", recs[0].TopicTitle)
	}
	if recs[0].TopicID != domain.NoTopicID {
		t.Errorf("topic id = %q, want sentinel", recs[0].TopicID)
	}
}

func TestHistorySince_LegacySchemaFallsBackToPlainQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Legacy shape only: messages without topic columns, no topics table,
	// so the joined query cannot run.
	if err := db.Exec(`CREATE TABLE messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		message_user TEXT,
		message_bot TEXT,
		timestamp DATETIME
	)`).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO messages (user_id, message_user, message_bot, timestamp) VALUES (?, ?, ?, ?)`,
		6, "legacy q", "legacy a", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	).Error; err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	recs, err := HistorySince(ctx, db, 6, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("HistorySince over legacy schema: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if recs[0].UserText != "legacy q" || recs[0].TopicTitle != domain.NoTopicTitle || recs[0].TopicID != domain.NoTopicID {
		t.Errorf("legacy row not normalized: %+v", recs[0])
	}
}

func TestCountMessages_ErrorWhenTableMissing(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := CountMessages(context.Background(), db, "t"); err == nil {
		t.Fatalf("expected error when table missing")
	}
}
