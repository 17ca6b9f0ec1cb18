// Package bot implements the core bot functionality, lifecycle management,
// and component orchestration for chatd.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/jobs"
	"github.com/Usernoise/chatd/internal/metrics"
	"github.com/Usernoise/chatd/internal/persist"
)

const shutdownFlushTimeout = 30 * time.Second

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	saver     *persist.Saver
	backend   persist.Backend
	runner    *jobs.Runner
	tgBot     *tgbot.Bot
	scheduler *Scheduler
}

// NewBot creates a new instance of the bot with all required dependencies.
// runner may be nil when song generation is not configured.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	saver *persist.Saver,
	backend persist.Backend,
	runner *jobs.Runner,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		saver:     saver,
		backend:   backend,
		runner:    runner,
		tgBot:     tgBot,
		scheduler: scheduler,
	}
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// On the way out pending job polls are dropped and unsaved messages are flushed.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if b.runner != nil {
			b.runner.Stop()
		}
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	if addr := b.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			return metrics.Serve(gCtx, addr, b.logger)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	b.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

// shutdown flushes the store and closes the persistence backend.
func (b *Bot) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	if err := b.saver.Flush(ctx); err != nil {
		b.logger.Error("Failed to flush message store on shutdown", "error", err)
	} else {
		b.logger.Info("Message store flushed")
	}
	if err := b.backend.Close(); err != nil {
		b.logger.Error("Failed to close persistence backend", "error", err)
	}
}
