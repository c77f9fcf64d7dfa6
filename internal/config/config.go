// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// Telegram transport, the MySQL ledger, the Redis cache, both model
// endpoints, the ops HTTP server, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// LedgerConfig defines connection settings for the MySQL message ledger.
type LedgerConfig struct {
	Host     string // MYSQL_HOST, host[:port]
	User     string // MYSQL_USER
	Password string // MYSQL_PASSWORD
	Database string // MYSQL_DB

	ConnTimeout  time.Duration // per-attempt connect timeout
	ConnRetries  int           // connection attempts before giving up
	RetryBackoff time.Duration // pause between attempts
}

// CacheConfig defines connection settings for the Redis transcript cache.
type CacheConfig struct {
	Addr string // REDIS_ADDR, host:port
	DB   int    // REDIS_DB
}

// OllamaConfig defines the local inference endpoint and model.
type OllamaConfig struct {
	BaseURL string        // OLLAMA_URL (e.g. "http://ollama:11434")
	Model   string        // OLLAMA_MODEL
	Timeout time.Duration // per-request timeout
}

// OpenAIConfig defines the remote reasoning API settings.
type OpenAIConfig struct {
	APIKey string // OPENAI_API_KEY
	Model  string // OPENAI_MODEL
}

// TelegramConfig defines the chat transport settings.
type TelegramConfig struct {
	Token       string // TELEGRAM_BOT_TOKEN
	PollTimeout int    // long-poll timeout in seconds
	Debug       bool   // TELEGRAM_DEBUG
}

// CORSConfig defines Cross-Origin Resource Sharing settings for the ops API.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-topic-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Ops HTTP server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Stores
	Ledger LedgerConfig
	Cache  CacheConfig

	// Models
	Ollama OllamaConfig
	OpenAI OpenAIConfig

	// Transport
	Telegram TelegramConfig

	// Per-user message rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Update dedup
	DedupTTL time.Duration // how long a processed update id is remembered

	// Web protection (ops API)
	CORS CORSConfig

	// Observability
	OTEL OTELConfig
}

// DSN renders the go-sql-driver DSN for the ledger, including the
// per-attempt connect timeout and UTC-parsed DATETIME columns.
func (l LedgerConfig) DSN() string {
	return l.User + ":" + l.Password + "@tcp(" + l.Host + ")/" + l.Database +
		"?parseTime=true&loc=UTC&timeout=" + l.ConnTimeout.String()
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Ops HTTP server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Stores
		Ledger: LedgerConfig{
			Host:         getenv("MYSQL_HOST", "localhost:3306"),
			User:         getenv("MYSQL_USER", "root"),
			Password:     getenv("MYSQL_PASSWORD", ""),
			Database:     getenv("MYSQL_DB", "topicbot"),
			ConnTimeout:  getdur("MYSQL_CONN_TIMEOUT", 20*time.Second),
			ConnRetries:  getint("MYSQL_CONN_RETRIES", 3),
			RetryBackoff: getdur("MYSQL_RETRY_BACKOFF", time.Second),
		},
		Cache: CacheConfig{
			Addr: getenv("REDIS_ADDR", "localhost:6379"),
			DB:   getint("REDIS_DB", 0),
		},

		// Models
		Ollama: OllamaConfig{
			BaseURL: getenv("OLLAMA_URL", "http://ollama:11434"),
			Model:   getenv("OLLAMA_MODEL", "mistral"),
			Timeout: getdur("OLLAMA_TIMEOUT", 120*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey: getenv("OPENAI_API_KEY", ""),
			Model:  getenv("OPENAI_MODEL", "gpt-3.5-turbo-0125"),
		},

		// Transport
		Telegram: TelegramConfig{
			Token:       getenv("TELEGRAM_BOT_TOKEN", ""),
			PollTimeout: getint("TELEGRAM_POLL_TIMEOUT", 30),
			Debug:       getbool("TELEGRAM_DEBUG", false),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 1.0),
		RateBurst: getint("RATE_BURST", 5),

		// Update dedup
		DedupTTL: getdur("DEDUP_TTL", 24*time.Hour),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-topic-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Ollama.BaseURL = strings.TrimRight(cfg.Ollama.BaseURL, "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.Ledger.Host) == "" {
		return cfg, errors.New("MYSQL_HOST must not be empty")
	}
	if strings.TrimSpace(cfg.Ledger.Database) == "" {
		return cfg, errors.New("MYSQL_DB must not be empty")
	}
	if cfg.Ledger.ConnTimeout <= 0 {
		return cfg, errors.New("MYSQL_CONN_TIMEOUT must be > 0")
	}
	if cfg.Ledger.ConnRetries < 1 {
		return cfg, errors.New("MYSQL_CONN_RETRIES must be >= 1")
	}
	if strings.TrimSpace(cfg.Cache.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.Ollama.BaseURL) == "" {
		return cfg, errors.New("OLLAMA_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Ollama.Model) == "" {
		return cfg, errors.New("OLLAMA_MODEL must not be empty")
	}
	if cfg.Telegram.PollTimeout < 0 {
		return cfg, errors.New("TELEGRAM_POLL_TIMEOUT must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
