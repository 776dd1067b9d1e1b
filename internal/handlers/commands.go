package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"moorelink-bot/internal/badge"
	"moorelink-bot/internal/models"
	"moorelink-bot/internal/utils"
)

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		h.handleStart(msg)
	case "menu":
		h.replyMarkup(userID, "What do you want to fetch?", mainMenu())
	case "help":
		h.reply(userID, helpText)
	case "benefits":
		h.reply(userID, benefitsText())
	case "privacy":
		h.reply(userID, privacyText)
	case "dashboard":
		h.sendDashboard(userID)
	case "leaderboard":
		h.sendLeaderboard(userID)
	case "latest":
		h.handleLatest(ctx, userID, msg.CommandArguments())
	case "cancel":
		h.handleCancel(userID)
	case "save":
		h.handleSaveCommand(userID, msg.CommandArguments())
	case "saved_list":
		h.sendSavedList(userID, 0)
	case "saved_send":
		h.handleSavedSend(ctx, userID, msg.CommandArguments())
	case "saved_remove":
		h.handleSavedRemove(userID, msg.CommandArguments())
	case "saved_rename":
		h.handleSavedRename(userID, msg.CommandArguments())

	// admin surface
	case "admin":
		h.requireAdmin(userID, func() {
			h.replyMarkup(userID, "Admin panel", adminMenu())
		})
	case "ban":
		h.requireAdmin(userID, func() { h.handleBan(userID, msg.CommandArguments(), true) })
	case "unban":
		h.requireAdmin(userID, func() { h.handleBan(userID, msg.CommandArguments(), false) })
	case "reset_cooldown":
		h.requireAdmin(userID, func() { h.handleResetCooldown(userID, msg.CommandArguments()) })
	case "reset_all_cooldowns":
		h.requireAdmin(userID, func() { h.handleResetAllCooldowns(userID, msg.CommandArguments()) })
	case "user_stats":
		h.requireAdmin(userID, func() { h.handleUserStats(userID, msg.CommandArguments()) })
	case "export_csv":
		h.requireAdmin(userID, func() { h.handleExportCSV(userID) })
	case "forcemode":
		h.requireAdmin(userID, func() { h.handleForceMode(userID, msg.CommandArguments()) })

	default:
		h.reply(userID, "Unknown command. Try /menu or /help.")
	}
}

func (h *Handler) requireAdmin(userID int64, fn func()) {
	if !h.isAdmin(userID) {
		h.reply(userID, "This command is for admins only.")
		return
	}
	fn()
}

// handleStart registers the user and credits the inviter on first contact.
// Self-invites and repeat starts do not count.
func (h *Handler) handleStart(msg *tgbotapi.Message) {
	userID := msg.Chat.ID
	firstName := msg.Chat.FirstName

	created, err := h.DB.UpsertUser(userID, firstName)
	if err != nil {
		h.Log.Error("start: upsert user", "user", userID, "error", err)
	}

	if created {
		if inviterID, ok := utils.ParseStartPayload(msg.CommandArguments()); ok && inviterID != userID {
			if err := h.DB.IncrementInvites(inviterID, 1); err != nil {
				h.Log.Error("start: credit invite", "inviter", inviterID, "error", err)
			} else {
				h.Log.Info("invite credited", "inviter", inviterID, "invitee", userID)
				h.reply(inviterID, fmt.Sprintf("🎉 %s joined through your link! Check /dashboard for your badge progress.", firstName))
			}
		}
	}

	welcome := fmt.Sprintf("Hi %s! I fetch the latest posts from X, Instagram, Facebook and YouTube accounts and deliver them right here.\n\nPick a platform to begin:", firstName)
	h.replyMarkup(userID, welcome, mainMenu())
}

// handleLatest fetches "platform account" when given, otherwise repeats the
// user's last fetch.
func (h *Handler) handleLatest(ctx context.Context, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) >= 2 {
		platform := strings.ToLower(fields[0])
		if !models.KnownPlatform(platform) {
			h.reply(userID, "Unknown platform. Use one of: x, ig, fb, yt.")
			return
		}
		h.runFetch(ctx, userID, platform, fields[1])
		return
	}
	lf, ok := h.lastRequest(userID)
	if !ok {
		h.reply(userID, "Usage: /latest <platform> <account>, or pick a platform in /menu first.")
		return
	}
	h.runFetch(ctx, userID, lf.platform, lf.account)
}

func (h *Handler) sendDashboard(userID int64) {
	u, err := h.DB.GetUser(userID)
	if err != nil {
		h.Log.Error("dashboard: load user", "user", userID, "error", err)
	}
	b := badge.Resolve(u, h.Cfg.AdminIDs)

	var invites, requests int
	if u != nil {
		invites = u.InviteCount
		requests = u.RequestCount
	}

	minute, hour, day, err := h.Cooldown.Remaining(userID)
	if err != nil {
		h.Log.Error("dashboard: remaining", "user", userID, "error", err)
	}
	saved, _ := h.DB.CountSavedAccounts(userID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b>\n\n", b.Emoji, b.Name)
	fmt.Fprintf(&sb, "Invites: %d\n", invites)
	if next, ok := badge.Next(b); ok && !b.AdminOnly {
		fmt.Fprintf(&sb, "Next tier: %s %s at %d invites\n", next.Emoji, next.Name, next.InvitesNeeded)
	}
	fmt.Fprintf(&sb, "Lifetime fetches: %d\n", requests)
	fmt.Fprintf(&sb, "Saved accounts: %d / %s", saved, b.SaveSlots)
	if b.SaveSlots.Limited() && saved > b.SaveSlots.Value() {
		sb.WriteString(" (over limit, remove some or invite friends)")
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Remaining now: %s this minute, %s this hour, %s today\n\n",
		limitString(minute), limitString(hour), limitString(day))
	if h.Force.Enabled() {
		sb.WriteString("⚠️ Force mode is ON: seen-post filtering is bypassed.\n\n")
	}
	fmt.Fprintf(&sb, "Your invite link:\n%s", utils.InviteLink(h.Bot.Self.UserName, userID))

	h.replyMarkup(userID, sb.String(), backMarkup("menu_main"))
}

func (h *Handler) sendLeaderboard(userID int64) {
	top, err := h.DB.TopInviters(10)
	if err != nil {
		h.Log.Error("leaderboard", "error", err)
		h.reply(userID, "Leaderboard is unavailable right now.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Top inviters</b>\n\n")
	for i, u := range top {
		b := badge.Resolve(&u, h.Cfg.AdminIDs)
		name := u.FirstName
		if name == "" {
			name = "Anonymous"
		}
		fmt.Fprintf(&sb, "%d. %s %s - %d invites\n", i+1, b.Emoji, name, u.InviteCount)
	}
	if len(top) == 0 {
		sb.WriteString("No inviters yet. Be the first!")
	}
	h.reply(userID, sb.String())
}

// handleCancel drops pending batches and any running AI task.
func (h *Handler) handleCancel(userID int64) {
	h.clearState(userID)
	dropped := h.Sessions.CancelAll(userID)
	aiStopped := h.Tasks.Cancel(userID)

	switch {
	case dropped == 0 && !aiStopped:
		h.reply(userID, "Nothing to cancel.")
	case dropped > 0 && aiStopped:
		h.reply(userID, fmt.Sprintf("Cancelled %d pending batch(es) and the running AI task.", dropped))
	case dropped > 0:
		h.reply(userID, fmt.Sprintf("Cancelled %d pending batch(es).", dropped))
	default:
		h.reply(userID, "AI task cancelled.")
	}
}

// handleSaveCommand saves "platform account [label]"; with no arguments it
// starts the guided flow.
func (h *Handler) handleSaveCommand(userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.setState(userID, chatState{mode: awaitingSave})
		h.reply(userID, "Send the account to save as: <code>platform account [label]</code>\nPlatforms: x, ig, fb, yt")
		return
	}
	h.saveAccount(userID, fields)
}

func (h *Handler) saveAccount(userID int64, fields []string) {
	platform := strings.ToLower(fields[0])
	if !models.KnownPlatform(platform) {
		h.reply(userID, "Unknown platform. Use one of: x, ig, fb, yt.")
		return
	}
	account := utils.NormalizeAccount(platform, fields[1])
	if account == "" {
		h.reply(userID, "Send a valid account handle.")
		return
	}
	label := ""
	if len(fields) > 2 {
		label = strings.Join(fields[2:], " ")
	}

	u, _ := h.DB.GetUser(userID)
	b := badge.Resolve(u, h.Cfg.AdminIDs)
	if b.SaveSlots.Limited() {
		n, err := h.DB.CountSavedAccounts(userID)
		if err == nil && n >= b.SaveSlots.Value() {
			h.reply(userID, fmt.Sprintf("%s %s tier allows %d saved accounts. Remove one with /saved_list or invite friends to unlock more (/benefits).",
				b.Emoji, b.Name, b.SaveSlots.Value()))
			return
		}
	}

	sa, err := h.DB.SaveAccount(userID, platform, account, label)
	if err != nil {
		h.Log.Error("save account", "user", userID, "error", err)
		h.reply(userID, "Could not save the account. Try again.")
		return
	}
	shown := sa.Label
	if shown == "" {
		shown = sa.Account
	}
	h.reply(userID, fmt.Sprintf("💾 Saved <b>%s</b> (%s). Send it anytime from /saved_list.", shown, platformName(platform)))
}

func (h *Handler) sendSavedList(userID int64, page int) {
	items, err := h.DB.ListSavedAccounts(userID)
	if err != nil {
		h.Log.Error("saved list", "user", userID, "error", err)
		h.reply(userID, "Could not load your saved accounts.")
		return
	}
	if len(items) == 0 {
		h.replyMarkup(userID, "You have no saved accounts yet.", savedMenu())
		return
	}
	h.replyMarkup(userID, "📋 Your saved accounts:", savedListMarkup(items, page, savedPageSize))
}

const savedPageSize = 8

func (h *Handler) handleSavedSend(ctx context.Context, userID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.reply(userID, "Usage: /saved_send <id> (ids are shown in /saved_list)")
		return
	}
	h.fetchSaved(ctx, userID, id)
}

func (h *Handler) fetchSaved(ctx context.Context, userID, savedID int64) {
	sa, err := h.DB.GetSavedAccount(userID, savedID)
	if err != nil {
		h.Log.Error("saved send", "user", userID, "error", err)
	}
	if sa == nil {
		h.reply(userID, "That saved account does not exist.")
		return
	}
	h.runFetch(ctx, userID, sa.Platform, sa.Account)
}

func (h *Handler) handleSavedRemove(userID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.reply(userID, "Usage: /saved_remove <id>")
		return
	}
	ok, err := h.DB.RemoveSavedAccount(userID, id)
	if err != nil {
		h.Log.Error("saved remove", "user", userID, "error", err)
	}
	if !ok {
		h.reply(userID, "That saved account does not exist.")
		return
	}
	h.reply(userID, "🗑 Removed.")
}

func (h *Handler) handleSavedRename(userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.reply(userID, "Usage: /saved_rename <id> <new label>")
		return
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		h.reply(userID, "Usage: /saved_rename <id> <new label>")
		return
	}
	ok, err := h.DB.RenameSavedAccount(userID, id, strings.Join(fields[1:], " "))
	if err != nil {
		h.Log.Error("saved rename", "user", userID, "error", err)
	}
	if !ok {
		h.reply(userID, "That saved account does not exist.")
		return
	}
	h.reply(userID, "✏️ Renamed.")
}

// ---------- admin commands --------------------------------------------------

func parseTargetID(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	return id, err == nil && id > 0
}

// handleBan asks for confirmation; the actual flip happens in the
// confirm_ban_/confirm_unban_ callbacks.
func (h *Handler) handleBan(adminID int64, args string, ban bool) {
	target, ok := parseTargetID(args)
	if !ok {
		h.reply(adminID, "Usage: /ban <telegram_id> or /unban <telegram_id>")
		return
	}
	verb, action := "Ban", "confirm_ban_"
	if !ban {
		verb, action = "Unban", "confirm_unban_"
	}
	h.replyMarkup(adminID, fmt.Sprintf("%s user %d?", verb, target),
		confirmMarkup(fmt.Sprintf("%s%d", action, target)))
}

func (h *Handler) applyBan(adminID, target int64, ban bool) {
	if err := h.DB.SetBanned(target, ban); err != nil {
		h.Log.Error("set banned", "target", target, "error", err)
		h.reply(adminID, "Storage error, nothing changed.")
		return
	}
	if ban {
		h.reply(adminID, fmt.Sprintf("🚫 User %d banned.", target))
	} else {
		h.reply(adminID, fmt.Sprintf("✅ User %d unbanned.", target))
	}
}

func (h *Handler) handleResetCooldown(adminID int64, args string) {
	target, ok := parseTargetID(args)
	if !ok {
		h.reply(adminID, "Usage: /reset_cooldown <telegram_id>")
		return
	}
	h.replyMarkup(adminID, fmt.Sprintf("Clear the cooldown counters of user %d?", target),
		confirmMarkup(fmt.Sprintf("confirm_reset_cooldown_%d", target)))
}

func (h *Handler) applyResetCooldown(adminID, target int64) {
	if err := h.Cooldown.Reset(target); err != nil {
		h.Log.Error("reset cooldown", "target", target, "error", err)
		h.reply(adminID, "Storage error, nothing changed.")
		return
	}
	h.reply(adminID, fmt.Sprintf("⏱ Cooldown cleared for %d.", target))
}

// handleResetAllCooldowns requires an explicit "confirm" argument.
func (h *Handler) handleResetAllCooldowns(adminID int64, args string) {
	if strings.TrimSpace(strings.ToLower(args)) != "confirm" {
		h.reply(adminID, "This clears every user's counters. Run /reset_all_cooldowns confirm to proceed.")
		return
	}
	n, err := h.Cooldown.ResetAll()
	if err != nil {
		h.Log.Error("reset all cooldowns", "error", err)
		h.reply(adminID, "Storage error, nothing changed.")
		return
	}
	h.reply(adminID, fmt.Sprintf("⏱ Cleared cooldowns for %d user(s).", n))
}

func (h *Handler) handleUserStats(adminID int64, args string) {
	target, ok := parseTargetID(args)
	if !ok {
		h.reply(adminID, "Usage: /user_stats <telegram_id>")
		return
	}
	u, err := h.DB.GetUser(target)
	if err != nil {
		h.Log.Error("user stats", "target", target, "error", err)
	}
	if u == nil {
		h.reply(adminID, "No such user.")
		return
	}
	b := badge.Resolve(u, h.Cfg.AdminIDs)
	h.reply(adminID, fmt.Sprintf(
		"<b>%s</b> (%d)\nBadge: %s %s\nInvites: %d\nFetches: %d\nBanned: %t\nAdmin: %t",
		u.FirstName, u.TelegramID, b.Emoji, b.Name, u.InviteCount, u.RequestCount, u.IsBanned, u.IsAdmin))
}

func (h *Handler) handleExportCSV(adminID int64) {
	users, err := h.DB.ListUsers(10000)
	if err != nil {
		h.Log.Error("export csv", "error", err)
		h.reply(adminID, "Export failed.")
		return
	}
	csvData, err := utils.UsersToCSV(users)
	if err != nil {
		h.Log.Error("export csv", "error", err)
		h.reply(adminID, "Export failed.")
		return
	}
	doc := tgbotapi.NewDocument(adminID, tgbotapi.FileBytes{Name: "users.csv", Bytes: []byte(csvData)})
	doc.Caption = fmt.Sprintf("%d user(s)", len(users))
	if _, err := h.Bot.Send(doc); err != nil {
		h.Log.Error("export csv: send", "error", err)
	}
}

func (h *Handler) handleForceMode(adminID int64, args string) {
	switch strings.TrimSpace(strings.ToLower(args)) {
	case "on":
		h.Force.Set(true)
		h.reply(adminID, "⚠️ Force mode ON: seen-post filtering is bypassed for everyone.")
	case "off":
		h.Force.Set(false)
		h.reply(adminID, "Force mode OFF.")
	case "toggle":
		if h.Force.Toggle() {
			h.reply(adminID, "⚠️ Force mode ON: seen-post filtering is bypassed for everyone.")
		} else {
			h.reply(adminID, "Force mode OFF.")
		}
	case "status", "":
		if h.Force.Enabled() {
			h.reply(adminID, "Force mode is ON.")
		} else {
			h.reply(adminID, "Force mode is OFF.")
		}
	default:
		h.reply(adminID, "Usage: /forcemode on|off|toggle|status")
	}
}
