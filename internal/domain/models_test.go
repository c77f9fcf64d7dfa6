package domain

import (
	"testing"
	"time"
)

func TestTableNames(t *testing.T) {
	if got := (Topic{}).TableName(); got != "topics" {
		t.Errorf("Topic table = %q", got)
	}
	if got := (Message{}).TableName(); got != "messages" {
		t.Errorf("Message table = %q", got)
	}
	if got := (ProcessedUpdate{}).TableName(); got != "processed_updates" {
		t.Errorf("ProcessedUpdate table = %q", got)
	}
}

func TestHistoryRecord_Normalize(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	r := HistoryRecord{UserText: "hi", BotText: "hello", Timestamp: ts}.Normalize()
	if r.TopicTitle != NoTopicTitle {
		t.Errorf("TopicTitle = %q, want sentinel", r.TopicTitle)
	}
	if r.TopicID != NoTopicID {
		t.Errorf("TopicID = %q, want sentinel", r.TopicID)
	}

	full := HistoryRecord{UserText: "hi", BotText: "hello", Timestamp: ts, TopicTitle: "Trips", TopicID: "t-1"}
	if got := full.Normalize(); got != full {
		t.Errorf("Normalize changed a complete record: %+v", got)
	}
}
