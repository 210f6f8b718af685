package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/memory"
	"github.com/susu3304/expensebot/internal/reimburse"
)

type Config struct {
	// Discord Bot (optional)
	DiscordToken string

	// Database (optional; documents stay in memory without it)
	DatabaseURL string

	// Web Server
	WebBind            string
	CORSAllowedOrigins []string

	// Session tokens
	JWTSecret string
	TokenTTL  time.Duration

	// Language model
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	ReplyMaxTokens   int
	SummaryMaxTokens int

	LogLevel slog.Level
	Location *time.Location

	// Conversation memory
	Memory            memory.Window
	MaxSummaries      int
	MaxDigests        int
	IdempotencyWindow int

	// Sessions
	GuestTTL         time.Duration
	AccountTTL       time.Duration
	CleanupInterval  time.Duration
	MaxFlushAttempts int
	BatchConcurrency int

	// Timeouts
	SummaryTimeout time.Duration
	ReplyTimeout   time.Duration
	StoreTimeout   time.Duration

	Policy reimburse.Policy
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		WebBind:            getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		CORSAllowedOrigins: splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*")),
		JWTSecret:          getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		TokenTTL:           p.duration("TOKEN_TTL", 24*time.Hour),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:        getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ReplyMaxTokens:     p.int("REPLY_MAX_TOKENS", 1000),
		SummaryMaxTokens:   p.int("SUMMARY_MAX_TOKENS", 200),
		Memory: memory.Window{
			MaxWindow: p.int("MEMORY_MAX_WINDOW", 10),
			Threshold: p.int("MEMORY_SUMMARIZE_THRESHOLD", 8),
		},
		MaxSummaries:      p.int("MEMORY_MAX_SUMMARIES", 3),
		MaxDigests:        p.int("MEMORY_MAX_DIGESTS", 20),
		IdempotencyWindow: p.int("IDEMPOTENCY_WINDOW", 512),
		GuestTTL:          p.duration("GUEST_SESSION_TTL", 2*time.Hour),
		AccountTTL:        p.duration("ACCOUNT_SESSION_TTL", 24*time.Hour),
		CleanupInterval:   p.duration("CLEANUP_INTERVAL", time.Minute),
		MaxFlushAttempts:  p.int("MAX_FLUSH_ATTEMPTS", 3),
		BatchConcurrency:  p.int("BATCH_CONCURRENCY", 4),
		SummaryTimeout:    p.duration("SUMMARY_TIMEOUT", 15*time.Second),
		ReplyTimeout:      p.duration("REPLY_TIMEOUT", 30*time.Second),
		StoreTimeout:      p.duration("STORE_TIMEOUT", 5*time.Second),
		Policy: reimburse.Policy{
			DailyCaps: map[expense.Category]int64{
				expense.Meals: p.int64("POLICY_MEAL_DAILY_CAP", 1_000_000),
			},
			ReceiptThreshold:          p.int64("POLICY_RECEIPT_THRESHOLD", 500_000),
			ApprovalThreshold:         p.int64("POLICY_APPROVAL_THRESHOLD", 5_000_000),
			OfficeMonthlyLimit:        p.int64("POLICY_OFFICE_MONTHLY_LIMIT", 2_000_000),
			AccommodationNightlyLimit: p.int64("POLICY_ACCOMMODATION_NIGHTLY_LIMIT", 4_000_000),
			SubmissionDeadlineDays:    p.int("POLICY_SUBMISSION_DEADLINE_DAYS", 30),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	loc, err := time.LoadLocation(getEnvDefault("TIMEZONE", "Asia/Ho_Chi_Minh"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	cfg.Location = loc

	if err := cfg.Memory.Validate(); err != nil {
		return nil, fmt.Errorf("MEMORY_SUMMARIZE_THRESHOLD is invalid: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	return int(p.int64(key, int64(def)))
}

func (p *parser) int64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if err != nil {
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s must be a duration: %w", key, err)
		}
		return def
	}
	return d
}
