// Package services – HistoryService
//
// This file implements the HistoryService, which compiles a user's recorded
// exchanges into role-tagged turns suitable for a chat-completion API. The
// compiler groups exchanges by topic in the order topics first appear, keeps
// messages chronological within each topic, and prefixes the whole thing
// with a system directive so the analyzing model knows what it is reading.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/averbier/go-topic-bot/internal/domain"
	"github.com/averbier/go-topic-bot/internal/repo"
)

// HistoryService compiles ledger history into prompt turns.
type HistoryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{DB: db}
}

type topicGroup struct {
	title   string
	records []domain.HistoryRecord
}

// Compile reads every exchange recorded for userID since the given time and
// returns it as prompt turns. Returns ErrNoHistory when the window is empty.
func (s *HistoryService) Compile(ctx context.Context, userID int64, since time.Time) ([]domain.Turn, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "Compile",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	records, err := repo.HistorySince(ctx, s.DB, userID, since)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoHistory
	}

	// Group by topic id, preserving the order topics first appear. Records
	// arrive chronologically so within-group order is already correct.
	var order []string
	groups := map[string]*topicGroup{}
	for _, rec := range records {
		g, ok := groups[rec.TopicID]
		if !ok {
			g = &topicGroup{title: rec.TopicTitle}
			groups[rec.TopicID] = g
			order = append(order, rec.TopicID)
		}
		g.records = append(g.records, rec)
	}

	multi := len(order) > 1
	turns := []domain.Turn{{Role: domain.RoleSystem, Content: directive(order, groups)}}
	for _, id := range order {
		g := groups[id]
		if multi {
			turns = append(turns, domain.Turn{
				Role:    domain.RoleUser,
				Content: fmt.Sprintf("=== TOPIC: %s ===", g.title),
			})
		}
		for _, rec := range g.records {
			turns = append(turns,
				domain.Turn{Role: domain.RoleUser, Content: rec.UserText},
				domain.Turn{Role: domain.RoleAssistant, Content: rec.BotText},
			)
		}
	}
	return turns, nil
}

func directive(order []string, groups map[string]*topicGroup) string {
	var b strings.Builder
	if len(order) > 1 {
		b.WriteString("Analyze this conversation organized by topics ")
	} else {
		b.WriteString("Analyze this conversation ")
	}
	b.WriteString("and respond directly, either confirming everything is correct or suggesting changes and additions. ")
	if len(order) > 1 {
		titles := make([]string, 0, len(order))
		for _, id := range order {
			titles = append(titles, fmt.Sprintf("%q", groups[id].title))
		}
		fmt.Fprintf(&b, "This analysis covers %d different topics: %s. ", len(order), strings.Join(titles, ", "))
	}
	b.WriteString("Be precise and concise in your analysis.")
	return b.String()
}
