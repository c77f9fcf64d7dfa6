// Package bot – Telegram transport
//
// This file implements the update loop and command handlers. Handler logic
// depends on narrow service interfaces so it can be exercised with fakes;
// the tgbotapi wiring stays thin. Each update is handled on its own
// goroutine, gated by a per-user token bucket and a best-effort dedup check
// so redelivered updates do not trigger duplicate inference calls.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/averbier/go-topic-bot/internal/domain"
	"github.com/averbier/go-topic-bot/internal/services"
	"github.com/averbier/go-topic-bot/internal/sysutil"
)

// errorReplyMaxRunes caps the error text echoed back to the user.
const errorReplyMaxRunes = 200

const greeting = "Hi! Send me a message and I will answer with Mistral's help 🤖\n" +
	"Use /useGPT YYYY-MM-DD to ask for ChatGPT's take on our conversation."

// Relayer answers a plain text message. *services.RelayService satisfies it.
type Relayer interface {
	Answer(ctx context.Context, userID int64, username, text string) (string, error)
}

// TopicManager exposes the topic operations the commands need.
// *services.TopicService satisfies it.
type TopicManager interface {
	CreateExplicit(ctx context.Context, userID int64, username, title string) (string, error)
	List(ctx context.Context, userID int64) ([]domain.Topic, error)
}

// HistoryCompiler compiles ledger history into prompt turns.
// *services.HistoryService satisfies it.
type HistoryCompiler interface {
	Compile(ctx context.Context, userID int64, since time.Time) ([]domain.Turn, error)
}

// Analyzer runs the remote reasoning model over compiled turns.
// *llm.Reasoner satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, turns []domain.Turn) (string, error)
}

// telegramAPI is the slice of tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram front end.
type Bot struct {
	API      telegramAPI
	Relay    Relayer
	Topics   TopicManager
	History  HistoryCompiler
	Reasoner Analyzer
	Dedup    Deduper

	PollTimeout int

	limiter *userLimiter
}

// New constructs a Bot with a per-user token bucket of rps/burst.
func New(api telegramAPI, relay Relayer, topics TopicManager, history HistoryCompiler, reasoner Analyzer, dedup Deduper, rps float64, burst int) *Bot {
	return &Bot{
		API:      api,
		Relay:    relay,
		Topics:   topics,
		History:  history,
		Reasoner: reasoner,
		Dedup:    dedup,
		limiter:  newUserLimiter(rps, burst),
	}
}

// Run polls Telegram for updates until ctx is canceled. Each update is
// handled on its own goroutine so one slow inference call does not stall
// the rest of the queue.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.PollTimeout
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}

	updates := b.API.GetUpdatesChan(cfg)

	go func() {
		<-ctx.Done()
		b.API.StopReceivingUpdates()
	}()

	for update := range updates {
		go b.HandleUpdate(ctx, update)
	}
}

// HandleUpdate dispatches one Telegram update. Exported for tests.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID

	if skip := b.shouldSkip(ctx, update.UpdateID, userID); skip {
		return
	}

	if !b.limiter.Allow(userID) {
		log.Warn().Int64("user_id", userID).Msg("rate limited")
		b.reply(msg.Chat.ID, "⏳ Too many messages, give me a moment to catch up.")
		return
	}

	username := displayName(msg.From)

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg, userID, username)
	case msg.Text != "":
		b.handleText(ctx, msg, userID, username)
	}
}

// shouldSkip runs the best-effort dedup check. Dedup storage failures never
// block handling; at-least-once delivery beats dropped messages.
func (b *Bot) shouldSkip(ctx context.Context, updateID int, userID int64) bool {
	if b.Dedup == nil {
		return false
	}
	seen, err := b.Dedup.Seen(ctx, updateID)
	if err != nil {
		log.Warn().Err(err).Int("update_id", updateID).Msg("dedup lookup failed")
		return false
	}
	if seen {
		log.Debug().Int("update_id", updateID).Msg("duplicate update skipped")
		return true
	}
	if err := b.Dedup.Mark(ctx, updateID, userID); err != nil {
		if IsDuplicate(err) {
			return true
		}
		log.Warn().Err(err).Int("update_id", updateID).Msg("dedup mark failed")
	}
	return false
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID int64, username string) {
	// Clients are inconsistent about command case, so match case-insensitively.
	switch strings.ToLower(msg.Command()) {
	case "start":
		b.reply(msg.Chat.ID, greeting)
	case "usegpt":
		b.handleUseGPT(ctx, msg, userID)
	case "topics":
		b.handleTopics(ctx, msg, userID)
	case "newtopic":
		b.handleNewTopic(ctx, msg, userID, username)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /start, /topics, /newtopic or /useGPT.")
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message, userID int64, username string) {
	reply, err := b.Relay.Answer(ctx, userID, username, msg.Text)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("relay failed")
		b.reply(msg.Chat.ID, "❌ Mistral error: "+sysutil.TruncateRunes(err.Error(), errorReplyMaxRunes))
		return
	}
	b.reply(msg.Chat.ID, reply)
}

func (b *Bot) handleUseGPT(ctx context.Context, msg *tgbotapi.Message, userID int64) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		b.reply(msg.Chat.ID, "❗ Usage: /useGPT YYYY-MM-DD")
		return
	}
	since, err := time.ParseInLocation("2006-01-02", arg, time.UTC)
	if err != nil {
		b.reply(msg.Chat.ID, "❗ Usage: /useGPT YYYY-MM-DD")
		return
	}

	turns, err := b.History.Compile(ctx, userID, since)
	if errors.Is(err, services.ErrNoHistory) {
		b.reply(msg.Chat.ID, "No messages found since this date.")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("history compile failed")
		b.reply(msg.Chat.ID, "❌ GPT error: "+sysutil.TruncateRunes(err.Error(), errorReplyMaxRunes))
		return
	}

	analysis, err := b.Reasoner.Analyze(ctx, turns)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("history analysis failed")
		b.reply(msg.Chat.ID, "❌ GPT error: "+sysutil.TruncateRunes(err.Error(), errorReplyMaxRunes))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("💬 ChatGPT's response (since %s):\n\n%s", arg, analysis))
}

func (b *Bot) handleTopics(ctx context.Context, msg *tgbotapi.Message, userID int64) {
	topics, err := b.Topics.List(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("topic listing failed")
		b.reply(msg.Chat.ID, "❌ Error: "+sysutil.TruncateRunes(err.Error(), errorReplyMaxRunes))
		return
	}
	if len(topics) == 0 {
		b.reply(msg.Chat.ID, "You don't have any discussion topics yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📚 Your discussion topics:\n\n")
	for _, topic := range topics {
		fmt.Fprintf(&sb, "• %s (created %s)\n", topic.Title, topic.CreatedAt.Format("02/01/2006 15:04"))
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleNewTopic(ctx context.Context, msg *tgbotapi.Message, userID int64, username string) {
	title := strings.TrimSpace(msg.CommandArguments())
	if title == "" {
		b.reply(msg.Chat.ID, "❗ Usage: /newtopic Topic title")
		return
	}

	if _, err := b.Topics.CreateExplicit(ctx, userID, username, title); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("topic creation failed")
		b.reply(msg.Chat.ID, "❌ Error: "+sysutil.TruncateRunes(err.Error(), errorReplyMaxRunes))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ New topic created: %q\nYour messages will now be attached to this topic.", title))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.API.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func displayName(u *tgbotapi.User) string {
	return sysutil.FirstNonEmpty(u.UserName, u.FirstName)
}
