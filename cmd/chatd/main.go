// Package main contains the entrypoint for the chatd Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/Usernoise/chatd/internal/bot"
	"github.com/Usernoise/chatd/internal/bot/handlers"
	"github.com/Usernoise/chatd/internal/bot/tasks"
	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/database"
	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/jobs"
	"github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/persist"
	"github.com/Usernoise/chatd/internal/store"
	"github.com/Usernoise/chatd/internal/summary"
	"github.com/Usernoise/chatd/internal/suno"
	"github.com/Usernoise/chatd/internal/telegram"
	"github.com/Usernoise/chatd/internal/threads"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger,
// store, AI clients, bot, scheduler), handles graceful shutdown, and returns
// an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	loc, err := cfg.Storage.Location()
	if err != nil {
		log.Error("Failed to load time zone", "timezone", cfg.Storage.Timezone, "error", err)
		return 1
	}

	st := store.New(loc)
	backend, maintainer, err := openBackend(cfg.Storage, loc, log)
	if err != nil {
		log.Error("Failed to open persistence backend", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path, "error", err)
		return 1
	}
	saver := persist.NewSaver(st, backend, cfg.Storage.BatchSize, log)
	if err := saver.Load(ctx); err != nil {
		log.Error("Failed to load message store", "error", err)
		_ = backend.Close()
		return 1
	}
	log.Info("Message store loaded", "chats", len(st.ChatIDs()))

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		_ = backend.Close()
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, loc)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		_ = backend.Close()
		return 1
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithWorkers(cfg.Telegram.Workers),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		_ = backend.Close()
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		_ = backend.Close()
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	summarySvc := summary.NewService(st, gemClient, log)
	threadCache := threads.New(cfg.Prompts.Chat, cfg.Threads.MaxLen, cfg.Threads.Keep)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Store:        st,
		Saver:        saver,
		Summary:      summarySvc,
		Threads:      threadCache,
		GeminiClient: gemClient,
		Counter:      handlers.NewReplyCounter(cfg.Bot.AutoReplyInterval),
		Orders:       handlers.NewOrderWaits(),
	}

	if cfg.Voice.Enabled {
		hDeps.Voice = telegram.NewFiles(tg, cfg.Voice.Timeout, cfg.Voice.MaxBytes)
		log.Info("Voice transcription enabled", "max_bytes", cfg.Voice.MaxBytes)
	}

	var runner *jobs.Runner
	if cfg.Suno.Enabled() {
		sunoClient := suno.NewClient(suno.Config{
			APIKey:       cfg.Suno.APIKey,
			BaseURL:      cfg.Suno.BaseURL,
			Model:        cfg.Suno.Model,
			NegativeTags: cfg.Suno.NegativeTags,
			CallbackURL:  cfg.Suno.CallbackURL,
			Timeout:      cfg.Suno.Timeout,
			MaxLyricsLen: cfg.Suno.MaxLyricsLen,
			MaxTitleLen:  cfg.Suno.MaxTitleLen,
			MaxFailures:  cfg.Suno.MaxFailures,
			Cooldown:     cfg.Suno.Cooldown,
		}, log)
		delivery := telegram.NewDelivery(tg, cfg.Messages, cfg.Suno.Timeout, cfg.Suno.DownloadLimit, loc, log)
		tracker := jobs.NewTracker(sunoClient, delivery,
			jobs.Delays{
				Initial:   cfg.Jobs.InitialDelay,
				Transient: cfg.Jobs.TransientDelay,
				Pending:   cfg.Jobs.PendingDelay,
				Error:     cfg.Jobs.ErrorDelay,
			},
			jobs.Limits{MaxPolls: cfg.Jobs.MaxPolls, MaxWait: cfg.Jobs.MaxWait},
			log)
		runner = jobs.NewRunner(tracker, sched.OneTime(), cfg.Jobs.Workers, log)
		hDeps.Songs = sunoClient
		hDeps.Jobs = runner
		log.Info("Song generation enabled", "model", cfg.Suno.Model)
	} else {
		log.Info("Song generation disabled: no Suno API key configured")
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		_ = backend.Close()
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:       log,
		Config:       cfg,
		Store:        st,
		Saver:        saver,
		Summary:      summarySvc,
		Threads:      threadCache,
		GeminiClient: gemClient,
		Sender:       tg,
	}
	if maintainer != nil {
		tDeps.Maintainer = maintainer
	}
	sched.SetTasks(tasks.RegisterAllTasks(tDeps))

	app := bot.NewBot(log, cfg, saver, backend, runner, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished.")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// openBackend opens the configured persistence backend. The SQLite backend
// also provides the maintenance routine run by the store_prune task.
func openBackend(cfg config.StorageConfig, loc *time.Location, log *slog.Logger) (persist.Backend, *database.SnapshotStore, error) {
	switch cfg.Driver {
	case "file":
		return persist.NewFileBackend(cfg.Path, loc, log), nil, nil
	case "sqlite":
		db, err := database.OpenOrRecover(cfg.Path, time.Now(), log)
		if err != nil {
			return nil, nil, err
		}
		ss := database.NewSnapshotStore(db, loc, log)
		return ss, ss, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
