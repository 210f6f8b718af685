package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/susu3304/expensebot/internal/api"
	"github.com/susu3304/expensebot/internal/assistant"
	"github.com/susu3304/expensebot/internal/bot"
	"github.com/susu3304/expensebot/internal/config"
	"github.com/susu3304/expensebot/internal/db"
	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/ledger"
	"github.com/susu3304/expensebot/internal/llm"
	"github.com/susu3304/expensebot/internal/memory"
	"github.com/susu3304/expensebot/internal/reimburse"
	"github.com/susu3304/expensebot/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// Document store: Postgres when configured, process memory otherwise
	var docs session.DocumentStore
	if cfg.DatabaseURL != "" {
		database, err := db.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.RunMigrations(context.Background()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		docs = database
	} else {
		slog.Warn("DATABASE_URL not set; logged-in ledgers will not survive a restart")
		docs = db.NewMemoryStore()
	}

	// Language model; replies fall back to local acknowledgements without one
	var replier, summarizerClient llm.Completer
	if cfg.OpenAIAPIKey != "" {
		replier = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.ReplyMaxTokens,
			Temperature: 0.7,
		})
		summarizerClient = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.SummaryMaxTokens,
			Temperature: 0.3,
		})
	} else {
		slog.Warn("OPENAI_API_KEY not set; using local replies and fallback summaries")
	}

	extractor := expense.NewExtractor(cfg.Location)
	engine := reimburse.NewEngine(cfg.Policy)
	summarizer := memory.NewSummarizer(summarizerClient, extractor, memory.WithTimeout(cfg.SummaryTimeout))

	store, err := session.NewStore(docs, session.Options{
		GuestTTL:         cfg.GuestTTL,
		AccountTTL:       cfg.AccountTTL,
		StoreTimeout:     cfg.StoreTimeout,
		MaxFlushAttempts: cfg.MaxFlushAttempts,
		Ledger: ledger.Options{
			Window:            cfg.Memory,
			Extractor:         extractor,
			MaxDigests:        cfg.MaxDigests,
			IdempotencyWindow: cfg.IdempotencyWindow,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}

	janitor := session.NewJanitor(store, cfg.CleanupInterval)
	janitor.Start()

	svc := assistant.NewService(store, replier, summarizer, engine, assistant.Config{
		MaxSummaries:     cfg.MaxSummaries,
		ReplyTimeout:     cfg.ReplyTimeout,
		BatchConcurrency: cfg.BatchConcurrency,
	})

	// Initialize API server
	apiServer := api.New(cfg, store, svc)
	go func() {
		if err := apiServer.Start(); err != nil {
			slog.Error("API server error", "error", err)
		}
	}()

	// Discord bot is optional
	var discordBot *bot.Bot
	if cfg.DiscordToken != "" {
		discordBot, err = bot.New(cfg.DiscordToken, store, svc)
		if err != nil {
			log.Fatalf("Failed to create discord bot: %v", err)
		}
		if err := discordBot.Start(); err != nil {
			log.Fatalf("Failed to start discord bot: %v", err)
		}
	}

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down...")

	if discordBot != nil {
		if err := discordBot.Stop(); err != nil {
			slog.Error("failed to close discord session", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	janitor.Stop()
	if err := store.FlushAll(ctx); err != nil {
		slog.Error("failed to flush ledgers", "error", err)
	}
}
