// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: the retry-then-fallback insert and the two-shape history read.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/domain"
	"github.com/averbier/go-topic-bot/internal/sysutil"
)

// placeholderUsername is recorded when the transport supplied no username.
const placeholderUsername = "Unknown"

// InsertMessage persists one user/bot exchange. Empty username and topicID
// mean "absent".
//
// Behavior:
//   - The schema is ensured first (cheap idempotent check). A failure there
//     is swallowed: the insert itself will surface anything real.
//   - When topicID is absent, the user's active topic is resolved, creating
//     one from the message text if needed. Resolution failure is not fatal -
//     the row is written without a topic association rather than losing the
//     exchange.
//   - The full-row insert is retried up to the budget on transient errors;
//     on exhaustion a reduced row (user id, texts, timestamp only) is
//     written instead, trading topic/username fidelity for durability.
//     A failure of the reduced insert is fatal for the operation.
func InsertMessage(ctx context.Context, db *gorm.DB, userID int64, userText, botText, username, topicID string) error {
	_ = EnsureSchema(ctx, db)

	if topicID == "" {
		if t, err := resolveActiveTopic(ctx, db, userID, username, userText); err == nil {
			topicID = t.TopicID
		}
	}

	now := time.Now().UTC()
	full := &domain.Message{
		TopicID:     strPtr(topicID),
		UserID:      userID,
		Username:    strPtr(sysutil.FirstNonEmpty(username, placeholderUsername)),
		MessageUser: userText,
		MessageBot:  botText,
		Timestamp:   now,
	}
	reduced := &domain.Message{
		UserID:      userID,
		MessageUser: userText,
		MessageBot:  botText,
		Timestamp:   now,
	}

	return execWithFallback(maxAttempts, retryBackoff,
		func() error { return db.WithContext(ctx).Create(full).Error },
		func() error { return db.WithContext(ctx).Create(reduced).Error },
	)
}

// resolveActiveTopic returns the user's newest topic, creating one titled
// after the message when none exists yet.
func resolveActiveTopic(ctx context.Context, db *gorm.DB, userID int64, username, messageText string) (*domain.Topic, error) {
	t, err := LatestTopic(ctx, db, userID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return CreateTopic(ctx, db, userID,
		sysutil.FirstNonEmpty(username, placeholderUsername),
		domain.DeriveTitle(messageText))
}

// historyRow is the scan target shared by both history queries.
type historyRow struct {
	MessageUser string
	MessageBot  string
	Timestamp   time.Time
	TopicTitle  string
	TopicID     string
}

// HistorySince returns the user's exchanges at or after since, oldest first,
// normalized into domain.HistoryRecord. Rows without a topic association
// carry the sentinel title and topic id.
//
// The joined query is tried first; when it fails for non-transient reasons
// (typically a legacy schema without topic columns) a join-free query over
// messages alone is used and sentinel topic fields are synthesized. The
// whole operation is retried on transient connectivity errors up to the
// budget before the last error surfaces.
func HistorySince(ctx context.Context, db *gorm.DB, userID int64, since time.Time) ([]domain.HistoryRecord, error) {
	var out []domain.HistoryRecord
	err := withRetry(maxAttempts, retryBackoff, func() error {
		rows, err := historyJoined(ctx, db, userID, since)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			rows, err = historyPlain(ctx, db, userID, since)
			if err != nil {
				return err
			}
		}
		out = make([]domain.HistoryRecord, 0, len(rows))
		for _, r := range rows {
			out = append(out, domain.HistoryRecord{
				UserText:   r.MessageUser,
				BotText:    r.MessageBot,
				Timestamp:  r.Timestamp,
				TopicTitle: r.TopicTitle,
				TopicID:    r.TopicID,
			}.Normalize())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// historyJoined reads messages left-joined to topics. IFNULL keeps rows with
// dangling or NULL topic ids instead of dropping them.
func historyJoined(ctx context.Context, db *gorm.DB, userID int64, since time.Time) ([]historyRow, error) {
	var rows []historyRow
	err := db.WithContext(ctx).Raw(`
		SELECT m.message_user, m.message_bot, m.timestamp,
		       IFNULL(t.title, '') AS topic_title,
		       IFNULL(m.topic_id, '') AS topic_id
		FROM messages m
		LEFT JOIN topics t ON m.topic_id = t.topic_id
		WHERE m.user_id = ? AND m.timestamp >= ?
		ORDER BY m.timestamp ASC`, userID, since).
		Scan(&rows).Error
	return rows, err
}

// historyPlain reads messages without the join, for table shapes that
// predate topics. Topic fields are left empty for Normalize to fill.
func historyPlain(ctx context.Context, db *gorm.DB, userID int64, since time.Time) ([]historyRow, error) {
	var rows []historyRow
	err := db.WithContext(ctx).Raw(`
		SELECT message_user, message_bot, timestamp
		FROM messages
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, userID, since).
		Scan(&rows).Error
	return rows, err
}

// ListTopicMessages returns all messages of a topic in chronological order.
func ListTopicMessages(ctx context.Context, db *gorm.DB, topicID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, topicID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE topic_id = ?", topicID).
		Scan(&total).Error
	return total, err
}

// strPtr returns nil for the empty string, so optional columns store NULL
// rather than "".
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
