package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"moorelink-bot/internal/ai"
	"moorelink-bot/internal/config"
	"moorelink-bot/internal/cooldown"
	"moorelink-bot/internal/fetcher"
	"moorelink-bot/internal/handlers"
	"moorelink-bot/internal/ledger"
	"moorelink-bot/internal/logging"
	"moorelink-bot/internal/metrics"
	"moorelink-bot/internal/models"
	"moorelink-bot/internal/scheduler"
	"moorelink-bot/internal/session"
	"moorelink-bot/internal/storage"
)

func main() {
	_ = godotenv.Load() // TELEGRAM_BOT_TOKEN etc.

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	slog.SetDefault(log)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Error("telegram connect", "error", err)
		os.Exit(1)
	}
	log.Info("authorized", "bot", bot.Self.UserName)

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Error("open storage", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.New()

	dispatcher := fetcher.NewDispatcher(cfg.PostLimit, log)
	dispatcher.Register(models.PlatformX,
		fetcher.NewX(cfg.RapidAPIKey, cfg.RapidAPIHostX, cfg.RapidAPIBaseX))
	dispatcher.Register(models.PlatformInstagram,
		fetcher.NewIG(cfg.RapidAPIKey, cfg.RapidAPIHostIG, cfg.RapidAPIBaseIG))
	dispatcher.Register(models.PlatformFacebook,
		fetcher.NewFB(cfg.RapidAPIKey, cfg.RapidAPIHostFB, cfg.RapidAPIBaseFB, cfg.PostLimit))
	dispatcher.Register(models.PlatformYouTube,
		fetcher.NewYT(cfg.YouTubeKey, cfg.PostLimit))

	h := handlers.New(
		bot, db, cfg,
		cooldown.New(db, cfg.AdminIDs, log),
		ledger.New(db, log),
		session.NewStore(cfg.BulkSendDelay),
		dispatcher,
		ai.New(cfg.GroqKey, cfg.GroqBaseURL, log),
		ai.NewTaskRegistry(),
		&config.ForceMode{},
		m, log,
	)

	sched, err := scheduler.Start(bot, db, log)
	if err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.MetricsAddr != "" {
		go func() {
			log.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, m.Handler()); err != nil {
				log.Error("metrics server", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("listening for updates")
	h.Listen(ctx)
	log.Info("shutting down")
}
