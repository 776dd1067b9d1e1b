package handlers

import (
	"fmt"
	"strings"

	"moorelink-bot/internal/badge"
)

const helpText = `<b>How to use this bot</b>

1. Open /menu and pick a platform.
2. Send the account handle (or numeric user id for X).
3. Review each post: send it, skip it, or send all remaining at once.
4. After a batch you can run an AI analysis of what was delivered.

<b>Commands</b>
/menu - main menu
/latest - repeat your last fetch
/save - save an account for quick access
/saved_list - your saved accounts
/dashboard - your badge, limits and stats
/leaderboard - top inviters
/benefits - badge tiers and what they unlock
/privacy - what data the bot keeps
/cancel - drop pending posts and running tasks

Invite friends with your personal link (see /dashboard) to climb the badge ladder and unlock higher limits.`

const privacyText = `<b>Privacy</b>

The bot stores: your telegram id, first name, invite and request counters, the accounts you saved, and ids of posts already shown to you (so you are not shown them twice).

It does not store message contents, phone numbers, or anything from your profile beyond the first name.

Use /cancel at any time to drop pending deliveries. Contact an admin to have your data removed entirely.`

func benefitsText() string {
	var sb strings.Builder
	sb.WriteString("<b>Badge tiers</b>\n\n")
	for _, b := range badge.Levels {
		if b.AdminOnly {
			continue
		}
		fmt.Fprintf(&sb, "%s <b>%s</b> - %d invites\n", b.Emoji, b.Name, b.InvitesNeeded)
		fmt.Fprintf(&sb, "   %s/min, %s/hour, %s/day, %s saved slots\n\n",
			b.PerMinute, b.PerHour, b.PerDay, b.SaveSlots)
	}
	sb.WriteString("Share your invite link from /dashboard. Each new user who starts the bot through it counts as one invite.")
	return sb.String()
}

func limitString(remaining int) string {
	if remaining < 0 {
		return "∞"
	}
	return fmt.Sprintf("%d", remaining)
}
