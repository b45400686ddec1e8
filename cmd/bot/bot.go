package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/aquaguard/internal/api"
	"github.com/abelzeko/aquaguard/internal/config"
	"github.com/abelzeko/aquaguard/internal/integration"
	"github.com/abelzeko/aquaguard/internal/integration/openai"
	"github.com/abelzeko/aquaguard/internal/logger"
	"github.com/abelzeko/aquaguard/internal/repository"
	"github.com/abelzeko/aquaguard/internal/usecases"
	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", ".", "directory holding .env and config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "aquaguard-bot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting AquaGuard bot", zap.String("backend", cfg.Backend.URL))

	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	// The agent is optional
	var openAIService openai.OpenAIService
	if cfg.OpenAI.APIKey != "" {
		openAIService, err = openai.NewOpenAIService(cfg.OpenAI.APIKey, log.Named("openai"))
		if err != nil {
			log.Fatal("Failed to initialize OpenAI service", zap.Error(err))
		}
	} else {
		log.Info("OPENAI_API_KEY not set, free-text queries are disabled")
	}

	store, err := repository.NewSQLiteStore(cfg.Store.Path, log.Named("store"))
	if err != nil {
		log.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer store.Close()

	backend := integration.NewBackend(integration.ClientOptions{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		RetryCount: cfg.Backend.RetryCount,
	}, log.Named("backend"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if health, err := backend.System.HealthCheck(ctx); err != nil || !health.OK() {
		log.Warn("Backend is not healthy yet, views will show defaults until it recovers",
			zap.String("backend", backend.Client.BaseURL()), zap.String("status", health.Status))
	}

	useCase := usecases.NewDashboardUseCase(backend, store, openAIService, log.Named("dashboard"))

	telegramBot, err := api.NewTelegramBot(cfg.Telegram.Token, useCase, log.Named("telegram"))
	if err != nil {
		log.Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}

	telegramBot.Start(ctx)
	log.Info("AquaGuard bot stopped")
}
