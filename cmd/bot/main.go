package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"review_notification_bot/internal/app"
	"review_notification_bot/internal/domain/journal"
	"review_notification_bot/internal/infra/config"
	idb "review_notification_bot/internal/infra/database"
	"review_notification_bot/internal/infra/devman"
	"review_notification_bot/internal/infra/logger"
	"review_notification_bot/internal/infra/scheduler"
	"review_notification_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	if err := run(); err != nil {
		logger.Log.WithError(err).Error("А у бота ошибка!")
		os.Exit(1)
	}
}

// run returns nil on a signal-driven shutdown and the fatal error otherwise.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"chat_id":     cfg.NotificationsChatID,
		"api_url":     cfg.DevmanAPIURL,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			logCtx := logger.Component("telebot").WithError(err)
			if c != nil && c.Chat() != nil {
				logCtx = logCtx.WithField("chat_id", c.Chat().ID)
			}
			logCtx.Warn("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return fmt.Errorf("could not create Telegram bot: %w", err)
	}
	telegramClient := telegram.NewTelebotAdapter(bot)

	hookLevel, err := logrus.ParseLevel(cfg.TelegramLogLevel)
	if err != nil {
		mainLogger.WithError(err).Warn("Invalid TELEGRAM_LOG_LEVEL, defaulting to 'error'")
		hookLevel = logrus.ErrorLevel
	}
	logger.Log.AddHook(logger.NewTelegramHook(telegramClient, cfg.NotificationsChatID, hookLevel))

	// Optional delivery journal
	var journalRepo journal.Repository
	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("could not connect to database: %w", err)
		}
		defer db.Close()
		if err := idb.EnsureSchema(ctx, db); err != nil {
			return err
		}
		journalRepo = idb.NewPostgresJournalRepository(db)
		mainLogger.Info("Delivery journal enabled")
	}

	poller := devman.NewPoller(
		cfg.DevmanAPIURL,
		cfg.DevmanAPIToken,
		cfg.ReconnectTimeout,
		&http.Client{Timeout: cfg.PollReadTimeout},
		logger.Component("poller"),
	)
	statusService := app.NewStatusService(poller, journalRepo)
	dispatcher := app.NewDispatcher(
		poller,
		telegramClient,
		cfg.NotificationsChatID,
		journalRepo,
		statusService,
		logger.Component("dispatcher"),
	)

	maintenance := scheduler.NewMaintenanceScheduler(
		statusService,
		journalRepo,
		logger.Component("scheduler"),
		cfg.JournalRetention,
		cfg.CronSpecJournalPrune,
		cfg.CronSpecHeartbeat,
	)
	if err := maintenance.Start(); err != nil {
		return err
	}
	defer maintenance.Stop()

	if cfg.EnableBotCommands {
		replies := telegram.NewCommandReplies(cfg.NotificationsChatID, statusService)
		telegram.RegisterBotCommands(ctx, bot, replies, logger.Component("telegram"))
		go bot.Start()
		defer bot.Stop()
		mainLogger.Info("Bot command handlers registered")
	}

	mainLogger.Info("Bot started!")
	if err := telegramClient.SendMessage(cfg.NotificationsChatID, "Bot started!", nil); err != nil {
		mainLogger.WithError(err).Warn("Could not announce startup in the notifications chat")
	}

	err = dispatcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		mainLogger.Info("Shutting down application...")
		return nil
	}
	return err
}
