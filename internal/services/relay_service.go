// Package services – RelayService
//
// This file implements RelayService, the application-level component that
// owns a single message exchange: resolve the sender's active topic, remember
// the exchange in the ephemeral cache, obtain a reply from the local model,
// and record the pair in the durable ledger. Only the model call is fatal for
// an exchange; topic, cache, and ledger failures are logged and the reply
// still reaches the user.
//
// Observability: Answer is OpenTelemetry-instrumented; spans include the
// user identifier.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/averbier/go-topic-bot/internal/repo"
)

// Generator produces a completion for a prompt. *llm.Ollama satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Buffer is the ephemeral per-user transcript store. *cache.Cache satisfies
// it.
type Buffer interface {
	Append(ctx context.Context, userID int64, entry string) error
}

// TopicResolver yields the topic an exchange should attach to.
type TopicResolver interface {
	ResolveOrCreate(ctx context.Context, userID int64, username, messageText string) (topicID, title string, err error)
}

// RelayService relays user messages to the local model and records the
// exchange.
type RelayService struct {
	DB     *gorm.DB
	Topics TopicResolver
	Buffer Buffer
	Model  Generator
}

// Answer relays text to the model and returns its reply. The reply is
// returned even when topic resolution, caching, or ledger persistence fail;
// only a model failure aborts the exchange.
func (s *RelayService) Answer(ctx context.Context, userID int64, username, text string) (string, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyPrompt
	}

	topicID := ""
	if s.Topics != nil {
		id, title, err := s.Topics.ResolveOrCreate(ctx, userID, username, text)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("topic resolution failed, continuing without topic")
		} else {
			topicID = id
			log.Debug().Str("topic_id", id).Str("title", title).Msg("active topic")
		}
	}

	if s.Buffer != nil {
		if err := s.Buffer.Append(ctx, userID, "user: "+text); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("cache append failed")
		}
	}

	reply, err := s.Model.Generate(ctx, text)
	if err != nil {
		return "", err
	}

	if s.Buffer != nil {
		if err := s.Buffer.Append(ctx, userID, "bot: "+reply); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("cache append failed")
		}
	}

	// Persist before returning so a user's next message always sees this
	// exchange in the ledger.
	if err := repo.InsertMessage(ctx, s.DB, userID, text, reply, username, topicID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("ledger insert failed")
	}

	return reply, nil
}
