// Command bot runs the Telegram relay: Telegram long polling on one side,
// local Ollama inference plus MySQL/Redis bookkeeping on the other, with a
// small read-only ops HTTP surface for dashboards.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/averbier/go-topic-bot/internal/bot"
	"github.com/averbier/go-topic-bot/internal/cache"
	"github.com/averbier/go-topic-bot/internal/config"
	httpapi "github.com/averbier/go-topic-bot/internal/http"
	"github.com/averbier/go-topic-bot/internal/llm"
	"github.com/averbier/go-topic-bot/internal/observability"
	"github.com/averbier/go-topic-bot/internal/repo"
	"github.com/averbier/go-topic-bot/internal/services"
	"github.com/averbier/go-topic-bot/internal/sysutil"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	// Load .env if present; real deployments set env directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	log.Info().Str("version", version).Msg("starting go-topic-bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Durable ledger. Open retries transient connection failures itself.
	db, err := repo.Open(cfg.Ledger, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Msg("ledger connection failed")
	}
	if err := repo.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ledger schema setup failed")
	}

	// Ephemeral cache. A dead Redis degrades recall, it does not stop the bot.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr, DB: cfg.Cache.DB})
	buffer := cache.New(rdb)
	if err := buffer.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("redis unreachable, continuing without cache")
	}

	// Local model. A missing model triggers a background pull.
	ollama := llm.NewOllama(cfg.Ollama)
	if err := ollama.EnsureModel(ctx); err != nil {
		log.Warn().Err(err).Str("model", cfg.Ollama.Model).Msg("model check failed")
	}

	topicSvc := services.NewTopicService(db)
	historySvc := services.NewHistoryService(db)
	relaySvc := &services.RelayService{
		DB:     db,
		Topics: topicSvc,
		Buffer: buffer,
		Model:  ollama,
	}
	reasoner := llm.NewReasoner(cfg.OpenAI)

	// Ops HTTP surface.
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("ops http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops http server failed")
		}
	}()

	// Telegram transport.
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram connection failed")
	}
	api.Debug = cfg.Telegram.Debug
	log.Info().Str("bot", api.Self.UserName).Msg("telegram connected")

	b := bot.New(
		api,
		relaySvc,
		topicSvc,
		historySvc,
		reasoner,
		&bot.LedgerDedup{DB: db, TTL: cfg.DedupTTL},
		cfg.RateRPS,
		cfg.RateBurst,
	)
	b.PollTimeout = cfg.Telegram.PollTimeout

	go b.Run(ctx)
	log.Info().Msg("bot running")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops http shutdown")
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
