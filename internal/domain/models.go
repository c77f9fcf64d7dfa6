// Package domain defines the persistence models for topics and messages,
// plus the canonical in-memory records exchanged between the ledger, the
// history compiler, and the model clients. The GORM-mapped types mirror the
// live database shape; nullable columns on Message deliberately tolerate
// legacy rows created before topics existed and rows written by the
// reduced-column fallback insert.
package domain

import "time"

// Topic represents a conversation subject owned by a user. Topics are
// created implicitly from a user's first message or explicitly on demand,
// and are never updated or deleted by this system. The topic with the
// greatest CreatedAt for a user is that user's active topic.
//
// Fields:
//   - TopicID: stable UUID primary key (char(36)).
//   - UserID: Telegram identifier of the owner; indexed for retrieval.
//   - Username: owner display name at creation time (not re-synced).
//   - Title: short label; auto-derived from the first message when implicit.
//   - CreatedAt: UTC creation time, also the recency key for resolution.
type Topic struct {
	TopicID   string    `json:"topic_id"   gorm:"column:topic_id;type:char(36);primaryKey"`
	UserID    int64     `json:"user_id"    gorm:"column:user_id;not null;index:idx_user_topics"`
	Username  string    `json:"username"   gorm:"column:username;type:varchar(255)"`
	Title     string    `json:"title"      gorm:"column:title;type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// TableName returns the database table name for Topic.
func (Topic) TableName() string { return "topics" }

// Message represents one user/bot exchange. Rows are written exactly once
// after the local model reply is obtained and are never mutated.
//
// TopicID and Username are pointers: legacy tables predate both columns and
// the degraded insert path writes neither, so NULL must round-trip cleanly.
type Message struct {
	ID          uint       `json:"id"           gorm:"column:id;primaryKey;autoIncrement"`
	TopicID     *string    `json:"topic_id"     gorm:"column:topic_id;type:char(36)"`
	UserID      int64      `json:"user_id"      gorm:"column:user_id;not null;index:idx_user_msgs"`
	Username    *string    `json:"username"     gorm:"column:username;type:varchar(255)"`
	MessageUser string     `json:"message_user" gorm:"column:message_user;type:text"`
	MessageBot  string     `json:"message_bot"  gorm:"column:message_bot;type:text"`
	Timestamp   time.Time  `json:"timestamp"    gorm:"column:timestamp"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Sentinel values substituted when a history row carries no usable topic
// association (legacy rows, fallback inserts, or a join-free fallback read).
const (
	// NoTopicTitle labels history rows without a topic.
	NoTopicTitle = "Conversation without topic"
	// NoTopicID groups history rows without a topic under one key.
	NoTopicID = "default"
)

// HistoryRecord is the canonical, normalized history row handed to the
// history compiler. The ledger normalizes both row shapes (joined rows with
// topic metadata and legacy/fallback rows without) into this one type at the
// retrieval boundary, so downstream code never branches on row shape.
// TopicTitle and TopicID are always non-empty: sentinel values substitute
// for missing associations.
type HistoryRecord struct {
	UserText   string
	BotText    string
	Timestamp  time.Time
	TopicTitle string
	TopicID    string
}

// Normalize fills empty topic fields with the sentinels.
func (r HistoryRecord) Normalize() HistoryRecord {
	if r.TopicTitle == "" {
		r.TopicTitle = NoTopicTitle
	}
	if r.TopicID == "" {
		r.TopicID = NoTopicID
	}
	return r
}

// TitleMaxRunes caps auto-derived topic titles.
const TitleMaxRunes = 50

// DeriveTitle builds a topic title from the first message of a topic: the
// message itself, cut at TitleMaxRunes runes with "..." appended when longer.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleMaxRunes {
		return text
	}
	return string(runes[:TitleMaxRunes]) + "..."
}

// Roles used in compiled prompt packets.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged entry of a compiled prompt packet.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
