package scheduler

import (
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-co-op/gocron/v2"

	"moorelink-bot/internal/storage"
)

const sweepBatch = 100

// Start runs the minutely sweep that removes expired bot messages from
// chats. Returns the scheduler so the caller can shut it down.
func Start(bot *tgbotapi.BotAPI, db *storage.DB, log *slog.Logger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			sweepExpired(bot, db, log)
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}

func sweepExpired(bot *tgbotapi.BotAPI, db *storage.DB, log *slog.Logger) {
	due, err := db.DueMessageDeletes(time.Now(), sweepBatch)
	if err != nil {
		log.Error("expiry sweep: list", "error", err)
		return
	}
	for _, m := range due {
		if _, err := bot.Request(tgbotapi.NewDeleteMessage(m.ChatID, m.MessageID)); err != nil {
			// message may be gone already; drop the row either way
			log.Warn("expiry sweep: delete", "chat", m.ChatID, "message", m.MessageID, "error", err)
		}
		if err := db.PurgeMessageDelete(m.ID); err != nil {
			log.Error("expiry sweep: purge", "id", m.ID, "error", err)
		}
	}
	if len(due) > 0 {
		log.Info("expiry sweep", "removed", len(due))
	}
}
