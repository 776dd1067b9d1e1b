package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"moorelink-bot/internal/models"
	"moorelink-bot/internal/session"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("X (Twitter)𝕏", "menu_x")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Instagram🅾", "menu_ig")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Facebookⓕ", "menu_fb")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("YouTube📹", "menu_yt")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Saved usernames", "saved_menu")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👤 Dashboard", "dashboard")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Help / Guide", "help")),
	)
}

func savedMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("➕ Add saved username", "saved_add_start")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📋 My saved usernames", "saved_list")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "menu_main")),
	)
}

func adminMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👥 List users", "admin_list_users_0")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Leaderboard", "admin_leaderboard")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📤 Broadcast", "admin_broadcast_start")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📥 Export CSV", "admin_export_csv")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🧠 Manual AI Analyze", "admin_ai_start")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "menu_main")),
	)
}

func confirmMarkup(yesData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Confirm", yesData)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Cancel", "admin_back")),
	)
}

func backMarkup(target string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Back", target)),
	)
}

// postKeyboard builds the per-post prompt. Send-all stays on offer until a
// send happens; skips do not lock it out.
func postKeyboard(key session.Key, out session.Outcome) tgbotapi.InlineKeyboardMarkup {
	suffix := fmt.Sprintf("%s_%s", key.Platform, key.Account)
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ Send this post (%d/%d)", out.Cursor+1, out.Total),
				fmt.Sprintf("confirm_post_%s_%d", suffix, out.Cursor)),
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Skip this post",
				fmt.Sprintf("skip_post_%s_%d", suffix, out.Cursor)),
		},
	}
	if remaining := out.Total - out.Cursor; !out.BulkLocked && remaining > 1 {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ Send all remaining (%d)", remaining),
				"send_all_"+suffix),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel remaining", "cancel_posts_"+suffix),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func aiAnalyzeMarkup(platform, account string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧠 AI analyze this batch",
				fmt.Sprintf("ai_analyze_%s_%s", platform, account)),
		),
	)
}

func savedListMarkup(items []models.SavedAccount, page, pageSize int) tgbotapi.InlineKeyboardMarkup {
	start := page * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, sa := range items[start:end] {
		label := sa.Label
		if label == "" {
			label = sa.Account
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("▶️ %s (%s)", label, sa.Platform),
				fmt.Sprintf("saved_sendcb_%d", sa.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✏️", fmt.Sprintf("saved_rename_start_%d", sa.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("saved_removecb_%d", sa.ID)),
		})
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", fmt.Sprintf("saved_page_%d", page-1)))
	}
	if end < len(items) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", fmt.Sprintf("saved_page_%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "saved_menu"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func platformName(code string) string {
	switch code {
	case models.PlatformX:
		return "X (Twitter)"
	case models.PlatformInstagram:
		return "Instagram"
	case models.PlatformFacebook:
		return "Facebook"
	case models.PlatformYouTube:
		return "YouTube"
	}
	return code
}
