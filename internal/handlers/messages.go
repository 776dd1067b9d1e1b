package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID
	if h.isBanned(userID) {
		h.reply(userID, "You are banned from using this bot.")
		return
	}

	if msg.IsCommand() {
		h.clearState(userID)
		h.handleCommand(ctx, msg)
		return
	}
	if msg.Text == "" {
		return
	}

	st := h.takeState(userID)

	switch st.mode {
	case awaitingAccount:
		h.runFetch(ctx, userID, st.platform, msg.Text)

	case awaitingSave:
		fields := strings.Fields(msg.Text)
		if len(fields) < 2 {
			h.setState(userID, st) // keep waiting
			h.reply(userID, "Format: <code>platform account [label]</code>, e.g. <code>ig natgeo nature pics</code>")
			return
		}
		h.saveAccount(userID, fields)

	case awaitingRenameLabel:
		label := strings.TrimSpace(msg.Text)
		if label == "" {
			h.setState(userID, st)
			h.reply(userID, "Send a non-empty label.")
			return
		}
		h.handleSavedRename(userID, strconv.FormatInt(st.renameID, 10)+" "+label)

	case awaitingBroadcast:
		if !h.isAdmin(userID) {
			return
		}
		h.runBroadcast(ctx, userID, msg.Text)

	case awaitingManualAI:
		if !h.isAdmin(userID) {
			return
		}
		h.runManualAnalysis(ctx, userID, msg.Text)

	case awaitingAIChat:
		h.runFollowUp(ctx, userID, st.aiContext, msg.Text)

	default:
		h.replyMarkup(userID, "Pick a platform first:", mainMenu())
	}
}

// runBroadcast sends the text to every known user in the background; /cancel
// stops it mid-run. Blocked chats are logged and skipped.
func (h *Handler) runBroadcast(ctx context.Context, adminID int64, text string) {
	users, err := h.DB.ListUsers(10000)
	if err != nil {
		h.Log.Error("broadcast: list users", "error", err)
		h.reply(adminID, "Broadcast failed.")
		return
	}

	ok := h.Tasks.Start(ctx, adminID, func(taskCtx context.Context) {
		sent, failed := 0, 0
		for _, u := range users {
			if taskCtx.Err() != nil {
				h.reply(adminID, fmt.Sprintf("🛑 Broadcast stopped after %d of %d user(s).", sent, len(users)))
				return
			}
			msg := tgbotapi.NewMessage(u.TelegramID, text)
			msg.ParseMode = tgbotapi.ModeHTML
			if _, err := h.Bot.Send(msg); err != nil {
				failed++
				h.Log.Warn("broadcast: send", "user", u.TelegramID, "error", err)
				continue
			}
			sent++
		}
		h.reply(adminID, fmt.Sprintf("📤 Broadcast delivered to %d user(s), %d failed.", sent, failed))
	})
	if !ok {
		h.reply(adminID, "Another background task is running for you. /cancel stops it.")
	}
}
