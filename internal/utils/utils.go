package utils

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"moorelink-bot/internal/models"
)

// NormalizeAccount strips @-prefixes and profile URLs down to the bare
// handle. Facebook inputs that point at a single post keep the full URL so
// the fetcher can shortcut them.
func NormalizeAccount(platform, input string) string {
	a := strings.TrimSpace(input)
	if a == "" {
		return ""
	}

	if platform == models.PlatformFacebook {
		for _, m := range []string{"share/", "mibextid=", "/posts/", "/photo.php", "/reel/"} {
			if strings.Contains(a, m) {
				return a
			}
		}
	}

	if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
		parts := strings.FieldsFunc(a, func(r rune) bool { return r == '/' })
		// scheme, host, first path segment
		if len(parts) >= 3 {
			a = strings.SplitN(parts[2], "?", 2)[0]
		}
	}
	a = strings.TrimPrefix(a, "@")
	return a
}

// InviteLink builds the deep link that credits the user for referrals.
func InviteLink(botUsername string, telegramID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, telegramID)
}

// ParseStartPayload extracts the inviter id from a /start deep-link payload.
func ParseStartPayload(payload string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// UsersToCSV renders the user table for the admin export.
func UsersToCSV(users []models.User) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"telegram_id", "first_name", "is_admin", "is_banned",
		"invite_count", "request_count", "last_request_at", "joined_at"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, u := range users {
		rec := []string{
			strconv.FormatInt(u.TelegramID, 10),
			u.FirstName,
			strconv.FormatBool(u.IsAdmin),
			strconv.FormatBool(u.IsBanned),
			strconv.Itoa(u.InviteCount),
			strconv.Itoa(u.RequestCount),
			formatUnix(u.LastRequestAt),
			formatUnix(u.JoinedAt),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
