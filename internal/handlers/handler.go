package handlers

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"moorelink-bot/internal/ai"
	"moorelink-bot/internal/config"
	"moorelink-bot/internal/cooldown"
	"moorelink-bot/internal/fetcher"
	"moorelink-bot/internal/ledger"
	"moorelink-bot/internal/metrics"
	"moorelink-bot/internal/models"
	"moorelink-bot/internal/session"
	"moorelink-bot/internal/storage"
)

// pending text-input modes, one per chat
const (
	awaitingNothing = iota
	awaitingAccount
	awaitingSave
	awaitingRenameLabel
	awaitingBroadcast
	awaitingManualAI
	awaitingAIChat
)

type chatState struct {
	mode      int
	platform  string // for awaitingAccount / awaitingSave
	renameID  int64  // for awaitingRenameLabel
	aiContext string // for awaitingAIChat follow-up questions
}

// lastFetch remembers what /latest should repeat.
type lastFetch struct {
	platform string
	account  string
}

type Handler struct {
	Bot      *tgbotapi.BotAPI
	DB       *storage.DB
	Cfg      config.Config
	Cooldown *cooldown.Tracker
	Ledger   *ledger.Ledger
	Sessions *session.Store
	Fetch    *fetcher.Dispatcher
	AI       *ai.Analyzer
	Tasks    *ai.TaskRegistry
	Force    *config.ForceMode
	Metrics  *metrics.Metrics
	Log      *slog.Logger

	mu        sync.Mutex
	chats     map[int64]*chatState
	lastBatch map[int64][]models.Post // delivered posts per user, for AI analysis
	lastReq   map[int64]lastFetch
}

func New(bot *tgbotapi.BotAPI, db *storage.DB, cfg config.Config,
	cd *cooldown.Tracker, led *ledger.Ledger, sess *session.Store,
	fd *fetcher.Dispatcher, an *ai.Analyzer, tasks *ai.TaskRegistry,
	force *config.ForceMode, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		Bot: bot, DB: db, Cfg: cfg,
		Cooldown: cd, Ledger: led, Sessions: sess,
		Fetch: fd, AI: an, Tasks: tasks, Force: force, Metrics: m, Log: log,
		chats:     make(map[int64]*chatState),
		lastBatch: make(map[int64][]models.Post),
		lastReq:   make(map[int64]lastFetch),
	}
}

// Listen consumes the long-poll update stream until ctx is cancelled.
func (h *Handler) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.Bot.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			// one goroutine per update so a slow fetch for one user never
			// stalls the rest; shared state is behind h.mu and the stores'
			// own locks
			go func(upd tgbotapi.Update) {
				switch {
				case upd.Message != nil:
					h.handleMessage(ctx, upd.Message)
				case upd.CallbackQuery != nil:
					h.handleCallback(ctx, upd.CallbackQuery)
				}
			}(upd)
		}
	}
}

func (h *Handler) isBanned(userID int64) bool {
	u, err := h.DB.GetUser(userID)
	return err == nil && u != nil && u.IsBanned
}

func (h *Handler) isAdmin(userID int64) bool {
	if h.Cfg.IsAdmin(userID) {
		return true
	}
	u, err := h.DB.GetUser(userID)
	return err == nil && u != nil && u.IsAdmin
}

func (h *Handler) setState(chatID int64, st chatState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chats[chatID] = &st
}

func (h *Handler) takeState(chatID int64) chatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.chats[chatID]; ok {
		delete(h.chats, chatID)
		return *st
	}
	return chatState{}
}

func (h *Handler) clearState(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.chats, chatID)
}

func (h *Handler) rememberBatch(userID int64, delivered []models.Post) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBatch[userID] = delivered
}

func (h *Handler) appendBatch(userID int64, p models.Post) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBatch[userID] = append(h.lastBatch[userID], p)
}

func (h *Handler) recentBatch(userID int64) []models.Post {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastBatch[userID]
}

func (h *Handler) rememberRequest(userID int64, platform, account string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastReq[userID] = lastFetch{platform: platform, account: account}
}

func (h *Handler) lastRequest(userID int64) (lastFetch, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lf, ok := h.lastReq[userID]
	return lf, ok
}

// ---------- small send helpers ---------------------------------------------

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("send message", "chat", chatID, "error", err)
	}
}

func (h *Handler) replyMarkup(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = kb
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("send message", "chat", chatID, "error", err)
	}
}

func (h *Handler) answerCallback(id, text string) {
	cb := tgbotapi.NewCallback(id, text)
	if _, err := h.Bot.Request(cb); err != nil {
		h.Log.Warn("answer callback", "error", err)
	}
}

func (h *Handler) alertCallback(id, text string) {
	cb := tgbotapi.NewCallbackWithAlert(id, text)
	if _, err := h.Bot.Request(cb); err != nil {
		h.Log.Warn("answer callback", "error", err)
	}
}
