package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schedule_secretary_bot/internal/app"
	"schedule_secretary_bot/internal/infra/config"
	idb "schedule_secretary_bot/internal/infra/database"
	"schedule_secretary_bot/internal/infra/logger"
	"schedule_secretary_bot/internal/infra/openai"
	"schedule_secretary_bot/internal/infra/scheduler"
	"schedule_secretary_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Schedule Secretary Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Timezone: %s",
		cfg.LogLevel, cfg.Environment, cfg.Timezone)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		mainLogger.Fatalf("FATAL: Invalid timezone %q: %v", cfg.Timezone, err)
	}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	scheduleRepo := idb.NewPostgresScheduleRepository(db)
	mainLogger.Info("Schedule repository initialized.")
	reminderRepo := idb.NewPostgresReminderRepository(db)
	mainLogger.Info("Reminder repository initialized.")

	// Initialize the language-model collaborator. An empty API key yields a
	// client whose Available() is false, so extraction runs rule-based only.
	aiClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if aiClient.Available() {
		mainLogger.Infof("Language-model assist enabled. Model: %s", cfg.OpenAIModel)
	} else {
		mainLogger.Info("Language-model assist disabled, rule-based extraction only.")
	}

	extractor := app.NewScheduleExtractor(aiClient, loc, logger.Log.WithField("component", "extractor"))

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(map[string]interface{}{
					"message":   c.Text(),
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Unhandled telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	sender := telegram.NewTelebotAdapter(bot)

	// Initialize Reminder Engine
	engine := scheduler.NewReminderEngine(
		scheduleRepo,
		reminderRepo,
		sender,
		logger.Log.WithField("component", "scheduler"),
		loc,
	)
	engine.Start()
	mainLogger.Info("Reminder engine started.")

	scheduleService := app.NewScheduleService(scheduleRepo, reminderRepo, extractor, engine)
	mainLogger.Info("Schedule service initialized.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover persisted reminders before handling any user traffic.
	if err := engine.RestoreAll(ctx); err != nil {
		mainLogger.WithError(err).Error("Reminder recovery failed, continuing without restored timers")
	}

	// Register Handlers
	telegram.RegisterBotHandlers(ctx, bot, scheduleService, engine, loc, logger.Log.WithField("component", "telegram"))
	mainLogger.Info("Bot command handlers registered.")

	mainLogger.Info("Application setup complete. Bot and reminder engine are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	cancel()
	bot.Stop()
	engine.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
