package models

import "time"

// Platform identifiers as stored and used in callback data.
const (
	PlatformX         = "x"
	PlatformInstagram = "ig"
	PlatformFacebook  = "fb"
	PlatformYouTube   = "yt"
)

// KnownPlatform reports whether p is one of the supported platform codes.
func KnownPlatform(p string) bool {
	switch p {
	case PlatformX, PlatformInstagram, PlatformFacebook, PlatformYouTube:
		return true
	}
	return false
}

// User represents a telegram user known to the bot.
type User struct {
	ID            int64  `db:"id"`
	TelegramID    int64  `db:"telegram_id"`
	FirstName     string `db:"first_name"`
	IsAdmin       bool   `db:"is_admin"`
	IsBanned      bool   `db:"is_banned"`
	InviteCount   int    `db:"invite_count"`
	RequestCount  int    `db:"request_count"`
	LastRequestAt int64  `db:"last_request_at"` // unix seconds, 0 = never
	JoinedAt      int64  `db:"joined_at"`
}

// Post is the normalized shape every fetcher produces.
type Post struct {
	ID       string // platform-native id (tweet id, IG shortcode, ...)
	URL      string
	Caption  string
	MediaURL string // may be empty
	IsVideo  bool
}

// SavedAccount is a user's quick-access handle for a tracked account.
type SavedAccount struct {
	ID        int64  `db:"id"`
	OwnerID   int64  `db:"owner_telegram_id"`
	Platform  string `db:"platform"`
	Account   string `db:"account_name"`
	Label     string `db:"label"`
	CreatedAt int64  `db:"created_at"`
}

// RateLimitState holds the three independent fixed-window counters for one
// user. A zero reset time means the window has not been started yet.
type RateLimitState struct {
	TelegramID  int64
	MinuteCount int
	HourCount   int
	DayCount    int
	MinuteReset time.Time
	HourReset   time.Time
	DayReset    time.Time
}
