package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Usernoise/chatd/internal/reply"
	"github.com/Usernoise/chatd/internal/store"
	"github.com/Usernoise/chatd/internal/summary"
)

const dailyReportHeader = "🏆 <b>Top participants of the day:</b>"

// newDailyReportTask sends the top of the day and the director's gift to
// every chat that has messages since midnight, then trims all threads.
func newDailyReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "daily_report")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting daily report task...")
		startTime := time.Now()

		today := store.Today(deps.Summary.Now(), deps.Store.Location())
		sent := 0
		var errs []error
		for _, chatID := range deps.Store.ChatIDs() {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			ok, err := sendDailyReport(ctx, deps, chatID, today)
			if err != nil {
				log.ErrorContext(ctx, "Daily report failed", "chat_id", chatID, "error", err)
				errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
				continue
			}
			if ok {
				sent++
			}
		}

		trimmed := deps.Threads.SweepAll()
		log.InfoContext(ctx, "Daily report task completed", "chats", sent, "threads_trimmed", trimmed, "duration", time.Since(startTime))
		return errors.Join(errs...)
	}
}

// sendDailyReport reports whether chatID had anything to report.
func sendDailyReport(ctx context.Context, deps TaskDeps, chatID int64, today store.Window) (bool, error) {
	log := deps.Logger.With("task", "daily_report", "chat_id", chatID)

	res, err := deps.Summary.Summarize(ctx, summary.Request{
		Kind:        "daily",
		ChatID:      chatID,
		Window:      today,
		Instruction: deps.Config.Prompts.Top,
	})
	if errors.Is(err, summary.ErrNoMessages) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := reply.Send(ctx, deps.Sender, log, chatID, reply.Titled(dailyReportHeader, res.Text)); err != nil {
		return false, err
	}

	// The gift is a bonus; failing to compose it does not fail the report.
	text, _ := deps.Summary.Render(chatID, today)
	gift, err := deps.GeminiClient.ComposeGift(ctx, deps.Config.Prompts.Gift, text)
	if err != nil {
		log.WarnContext(ctx, "Failed to compose daily gift", "error", err)
		return true, nil
	}
	if err := reply.Send(ctx, deps.Sender, log, chatID, reply.Gift(gift)); err != nil {
		return true, err
	}
	return true, nil
}
