package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"moorelink-bot/internal/models"
	"moorelink-bot/internal/session"
)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		h.answerCallback(cb.ID, "")
		return
	}
	userID := cb.Message.Chat.ID
	data := cb.Data

	if h.isBanned(userID) {
		h.alertCallback(cb.ID, "You are banned from using this bot.")
		return
	}

	switch {
	case strings.HasPrefix(data, "confirm_post_"):
		h.onConfirmPost(ctx, cb, userID, strings.TrimPrefix(data, "confirm_post_"))
	case strings.HasPrefix(data, "skip_post_"):
		h.onSkipPost(cb, userID, strings.TrimPrefix(data, "skip_post_"))
	case strings.HasPrefix(data, "send_all_"):
		h.onSendAll(ctx, cb, userID, strings.TrimPrefix(data, "send_all_"))
	case strings.HasPrefix(data, "cancel_posts_"):
		h.onCancelPosts(cb, userID, strings.TrimPrefix(data, "cancel_posts_"))
	case strings.HasPrefix(data, "ai_analyze_"):
		h.answerCallback(cb.ID, "")
		platform, account, ok := splitPlatformAccount(strings.TrimPrefix(data, "ai_analyze_"))
		if ok {
			h.startAnalysis(ctx, userID, platform, account)
		}

	case strings.HasPrefix(data, "menu_"), data == "dashboard", data == "help", data == "saved_menu":
		h.answerCallback(cb.ID, "")
		h.onMenuNavigation(userID, data)

	case data == "saved_add_start":
		h.answerCallback(cb.ID, "")
		h.setState(userID, chatState{mode: awaitingSave})
		h.reply(userID, "Send the account to save as: <code>platform account [label]</code>\nPlatforms: x, ig, fb, yt")
	case data == "saved_list":
		h.answerCallback(cb.ID, "")
		h.sendSavedList(userID, 0)
	case strings.HasPrefix(data, "saved_page_"):
		h.answerCallback(cb.ID, "")
		if page, err := strconv.Atoi(strings.TrimPrefix(data, "saved_page_")); err == nil && page >= 0 {
			h.sendSavedList(userID, page)
		}
	case strings.HasPrefix(data, "saved_sendcb_"):
		h.answerCallback(cb.ID, "")
		if id, err := strconv.ParseInt(strings.TrimPrefix(data, "saved_sendcb_"), 10, 64); err == nil {
			h.fetchSaved(ctx, userID, id)
		}
	case strings.HasPrefix(data, "saved_removecb_"):
		h.answerCallback(cb.ID, "")
		if id, err := strconv.ParseInt(strings.TrimPrefix(data, "saved_removecb_"), 10, 64); err == nil {
			h.handleSavedRemove(userID, strconv.FormatInt(id, 10))
		}
	case strings.HasPrefix(data, "saved_rename_start_"):
		h.answerCallback(cb.ID, "")
		if id, err := strconv.ParseInt(strings.TrimPrefix(data, "saved_rename_start_"), 10, 64); err == nil {
			h.setState(userID, chatState{mode: awaitingRenameLabel, renameID: id})
			h.reply(userID, "Send the new label for this saved account.")
		}

	case strings.HasPrefix(data, "admin_"),
		strings.HasPrefix(data, "confirm_ban_"),
		strings.HasPrefix(data, "confirm_unban_"),
		strings.HasPrefix(data, "confirm_reset_cooldown_"):
		if !h.isAdmin(userID) {
			h.alertCallback(cb.ID, "Admins only.")
			return
		}
		h.answerCallback(cb.ID, "")
		h.onAdminCallback(userID, data)

	default:
		h.answerCallback(cb.ID, "")
	}
}

func (h *Handler) onMenuNavigation(userID int64, data string) {
	switch data {
	case "menu_main":
		h.clearState(userID)
		h.replyMarkup(userID, "What do you want to fetch?", mainMenu())
	case "menu_x":
		h.setState(userID, chatState{mode: awaitingAccount, platform: models.PlatformX})
		h.reply(userID, "Send the numeric X user id of the account (e.g. 44196397).")
	case "menu_ig":
		h.setState(userID, chatState{mode: awaitingAccount, platform: models.PlatformInstagram})
		h.reply(userID, "Send the Instagram handle (e.g. @natgeo).")
	case "menu_fb":
		h.setState(userID, chatState{mode: awaitingAccount, platform: models.PlatformFacebook})
		h.reply(userID, "Send the Facebook page name or a link to a single post.")
	case "menu_yt":
		h.setState(userID, chatState{mode: awaitingAccount, platform: models.PlatformYouTube})
		h.reply(userID, "Send the YouTube channel handle (e.g. @mkbhd).")
	case "saved_menu":
		h.replyMarkup(userID, "Saved usernames", savedMenu())
	case "dashboard":
		h.sendDashboard(userID)
	case "help":
		h.reply(userID, helpText)
	}
}

func (h *Handler) onAdminCallback(userID int64, data string) {
	switch {
	case strings.HasPrefix(data, "admin_list_users_"):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, "admin_list_users_"))
		h.sendUserList(userID, page)
	case data == "admin_leaderboard":
		h.sendLeaderboard(userID)
	case data == "admin_export_csv":
		h.handleExportCSV(userID)
	case data == "admin_broadcast_start":
		h.setState(userID, chatState{mode: awaitingBroadcast})
		h.reply(userID, "Send the message to broadcast to every user, or /cancel.")
	case data == "admin_ai_start":
		h.setState(userID, chatState{mode: awaitingManualAI})
		h.reply(userID, "Send the text to analyze, or /cancel.")
	case data == "admin_back":
		h.clearState(userID)
		h.replyMarkup(userID, "Admin panel", adminMenu())
	case strings.HasPrefix(data, "confirm_ban_"):
		if id, ok := parseTargetID(strings.TrimPrefix(data, "confirm_ban_")); ok {
			h.applyBan(userID, id, true)
		}
	case strings.HasPrefix(data, "confirm_unban_"):
		if id, ok := parseTargetID(strings.TrimPrefix(data, "confirm_unban_")); ok {
			h.applyBan(userID, id, false)
		}
	case strings.HasPrefix(data, "confirm_reset_cooldown_"):
		if id, ok := parseTargetID(strings.TrimPrefix(data, "confirm_reset_cooldown_")); ok {
			h.applyResetCooldown(userID, id)
		}
	}
}

const userListPageSize = 20

func (h *Handler) sendUserList(adminID int64, page int) {
	users, err := h.DB.ListUsers(10000)
	if err != nil {
		h.Log.Error("list users", "error", err)
		h.reply(adminID, "Could not load users.")
		return
	}

	start := page * userListPageSize
	if start >= len(users) {
		start = 0
		page = 0
	}
	end := start + userListPageSize
	if end > len(users) {
		end = len(users)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Users %d-%d of %d\n\n", start+1, end, len(users))
	for _, u := range users[start:end] {
		flags := ""
		if u.IsAdmin {
			flags += " 👑"
		}
		if u.IsBanned {
			flags += " 🚫"
		}
		fmt.Fprintf(&sb, "%d %s%s - %d invites, %d fetches\n",
			u.TelegramID, u.FirstName, flags, u.InviteCount, u.RequestCount)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", fmt.Sprintf("admin_list_users_%d", page-1)))
	}
	if end < len(users) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", fmt.Sprintf("admin_list_users_%d", page+1)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "admin_back")})
	h.replyMarkup(adminID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// ---------- pending-post buttons --------------------------------------------

// parsePostAction splits "platform_account_idx" callback payloads.
func parsePostAction(payload string) (session.Key, int, bool) {
	parts := strings.Split(payload, "_")
	if len(parts) < 3 {
		return session.Key{}, 0, false
	}
	idx, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || idx < 0 {
		return session.Key{}, 0, false
	}
	platform := parts[0]
	account := strings.Join(parts[1:len(parts)-1], "_")
	if !models.KnownPlatform(platform) || account == "" {
		return session.Key{}, 0, false
	}
	return session.Key{Platform: platform, Account: account}, idx, true
}

// splitPlatformAccount splits "platform_account" payloads; accounts may
// themselves contain underscores.
func splitPlatformAccount(payload string) (string, string, bool) {
	parts := strings.SplitN(payload, "_", 2)
	if len(parts) != 2 || !models.KnownPlatform(parts[0]) || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (h *Handler) onConfirmPost(ctx context.Context, cb *tgbotapi.CallbackQuery, userID int64, payload string) {
	key, idx, ok := parsePostAction(payload)
	if !ok {
		h.answerCallback(cb.ID, "")
		return
	}
	key.UserID = userID

	out, err := h.Sessions.Confirm(ctx, key, idx, h)
	switch {
	case errors.Is(err, session.ErrNoSession):
		h.alertCallback(cb.ID, "This batch is no longer active.")
	case errors.Is(err, session.ErrStale):
		h.alertCallback(cb.ID, "Post expired or out of order.")
		h.presentPost(key, out)
	case err != nil:
		h.answerCallback(cb.ID, "")
		h.Log.Error("confirm post", "user", userID, "error", err)
	default:
		h.answerCallback(cb.ID, "Sent")
		if n := len(out.Failed); n > 0 && out.Failed[n-1].Index == idx {
			h.reply(userID, "⚠️ That post could not be delivered; moving on.")
		}
		h.presentPost(key, out)
	}
}

func (h *Handler) onSkipPost(cb *tgbotapi.CallbackQuery, userID int64, payload string) {
	key, idx, ok := parsePostAction(payload)
	if !ok {
		h.answerCallback(cb.ID, "")
		return
	}
	key.UserID = userID

	out, err := h.Sessions.Skip(key, idx)
	switch {
	case errors.Is(err, session.ErrNoSession):
		h.alertCallback(cb.ID, "This batch is no longer active.")
	case errors.Is(err, session.ErrStale):
		h.alertCallback(cb.ID, "Post expired or out of order.")
		h.presentPost(key, out)
	default:
		h.answerCallback(cb.ID, "Skipped")
		h.presentPost(key, out)
	}
}

func (h *Handler) onSendAll(ctx context.Context, cb *tgbotapi.CallbackQuery, userID int64, payload string) {
	platform, account, ok := splitPlatformAccount(payload)
	if !ok {
		h.answerCallback(cb.ID, "")
		return
	}
	key := session.Key{UserID: userID, Platform: platform, Account: account}

	h.answerCallback(cb.ID, "Sending all remaining...")
	go h.runSendAll(ctx, key)
}

func (h *Handler) onCancelPosts(cb *tgbotapi.CallbackQuery, userID int64, payload string) {
	platform, account, ok := splitPlatformAccount(payload)
	if !ok {
		h.answerCallback(cb.ID, "")
		return
	}
	key := session.Key{UserID: userID, Platform: platform, Account: account}

	out, err := h.Sessions.Cancel(key)
	if errors.Is(err, session.ErrNoSession) {
		h.alertCallback(cb.ID, "This batch is no longer active.")
		return
	}
	h.answerCallback(cb.ID, "Cancelled")
	h.finishBatch(key, out)
}
