package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/averbier/go-topic-bot/internal/domain"
)

// newTestDB opens a throwaway SQLite database, optionally migrating models.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Release the file handle before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestEnsureSchema_CreatesAllTables(t *testing.T) {
	db := newTestDB(t)
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	m := db.Migrator()
	for _, model := range []any{&domain.Topic{}, &domain.Message{}, &domain.ProcessedUpdate{}} {
		if !m.HasTable(model) {
			t.Errorf("missing table for %T", model)
		}
	}
	if !m.HasColumn(&domain.Message{}, "topic_id") || !m.HasColumn(&domain.Message{}, "username") {
		t.Errorf("messages table created without topic columns")
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("first EnsureSchema: %v", err)
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestEnsureSchema_HealsLegacyMessagesTable(t *testing.T) {
	db := newTestDB(t)

	// Legacy shape: no topic_id, no username.
	if err := db.Exec(`CREATE TABLE messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		message_user TEXT,
		message_bot TEXT,
		timestamp DATETIME
	)`).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema over legacy table: %v", err)
	}

	m := db.Migrator()
	if !m.HasColumn(&domain.Message{}, "topic_id") {
		t.Errorf("topic_id column was not added")
	}
	if !m.HasColumn(&domain.Message{}, "username") {
		t.Errorf("username column was not added")
	}

	// Healed table accepts a full-shape insert.
	tid := "t-1"
	uname := "alice"
	msg := &domain.Message{TopicID: &tid, UserID: 1, Username: &uname, MessageUser: "hi", MessageBot: "hello", Timestamp: time.Now().UTC()}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert after healing: %v", err)
	}
}
