package cooldown

import (
	"fmt"
	"log/slog"
	"time"

	"moorelink-bot/internal/badge"
	"moorelink-bot/internal/models"
	"moorelink-bot/internal/storage"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
	dayWindow    = 24 * time.Hour

	// extended lockout applied when the day counter runs far past its quota
	abusePenalty = 48 * time.Hour
)

// Tracker decides whether a user may run a fetch right now and charges the
// attempt against their counters when they may.
type Tracker struct {
	db       *storage.DB
	adminIDs []int64
	log      *slog.Logger
	now      func() time.Time
}

func New(db *storage.DB, adminIDs []int64, log *slog.Logger) *Tracker {
	return &Tracker{db: db, adminIDs: adminIDs, log: log, now: time.Now}
}

// Block describes why a request was rejected.
type Block struct {
	Reason  string // "banned", "minute", "hour", "day", "excessive"
	Badge   badge.Badge
	Limit   int
	RetryIn time.Duration
}

// Message renders the block the way it is shown to the user.
func (b *Block) Message() string {
	switch b.Reason {
	case "banned":
		return "You are banned from using this bot."
	case "excessive":
		return "Excessive usage detected. Cooldown extended."
	case "minute":
		return fmt.Sprintf("%s %s limit: %d requests per minute. Try again in %d seconds.",
			b.Badge.Emoji, b.Badge.Name, b.Limit, int(b.RetryIn.Seconds())+1)
	case "hour":
		return fmt.Sprintf("%s %s limit: %d requests per hour. Try again in %d minutes.",
			b.Badge.Emoji, b.Badge.Name, b.Limit, int(b.RetryIn.Minutes())+1)
	case "day":
		return fmt.Sprintf("%s %s limit: %d requests per day. Try again in %d hours.",
			b.Badge.Emoji, b.Badge.Name, b.Limit, int(b.RetryIn.Hours())+1)
	}
	return "Request rejected."
}

// CheckAndIncrement is the single entry point for charging a fetch. It
// returns nil when the request is allowed; in that case the counters have
// already been advanced and persisted. Order of checks: ban, unlimited tier,
// minute, hour, day.
func (t *Tracker) CheckAndIncrement(telegramID int64) *Block {
	user, err := t.db.GetUser(telegramID)
	if err != nil {
		// storage trouble should not lock users out; fall through with the
		// unknown-user tier
		t.log.Error("cooldown: load user", "user", telegramID, "error", err)
		user = nil
	}
	if user != nil && user.IsBanned {
		return &Block{Reason: "banned"}
	}

	b := badge.Resolve(user, t.adminIDs)
	if b.Unrestricted() {
		t.charge(telegramID)
		return nil
	}

	st, err := t.db.GetRateState(telegramID)
	if err != nil {
		// fail open on a fresh state; the increment below still runs and the
		// persist is best-effort
		t.log.Error("cooldown: load state", "user", telegramID, "error", err)
		st = models.RateLimitState{TelegramID: telegramID}
	}

	now := t.now()
	rollover(&st, now)

	if b.PerMinute.Limited() && st.MinuteCount >= b.PerMinute.Value() {
		return &Block{Reason: "minute", Badge: b, Limit: b.PerMinute.Value(), RetryIn: st.MinuteReset.Sub(now)}
	}
	if b.PerHour.Limited() && st.HourCount >= b.PerHour.Value() {
		return &Block{Reason: "hour", Badge: b, Limit: b.PerHour.Value(), RetryIn: st.HourReset.Sub(now)}
	}
	if b.PerDay.Limited() && st.DayCount >= b.PerDay.Value() {
		// runaway clients that keep hammering after the day limit get the
		// counter clamped and the window pushed out two days
		if st.DayCount > 2*b.PerDay.Value() {
			st.DayCount = b.PerDay.Value()
			st.DayReset = now.Add(abusePenalty)
			if err := t.db.PutRateState(st); err != nil {
				t.log.Error("cooldown: persist penalty", "user", telegramID, "error", err)
			}
			return &Block{Reason: "excessive", Badge: b, Limit: b.PerDay.Value(), RetryIn: abusePenalty}
		}
		return &Block{Reason: "day", Badge: b, Limit: b.PerDay.Value(), RetryIn: st.DayReset.Sub(now)}
	}

	st.MinuteCount++
	st.HourCount++
	st.DayCount++
	if err := t.db.PutRateState(st); err != nil {
		t.log.Error("cooldown: persist state", "user", telegramID, "error", err)
	}
	t.charge(telegramID)
	return nil
}

// rollover starts unstarted windows and resets expired ones in place.
func rollover(st *models.RateLimitState, now time.Time) {
	if st.MinuteReset.IsZero() || !now.Before(st.MinuteReset) {
		st.MinuteCount = 0
		st.MinuteReset = now.Add(minuteWindow)
	}
	if st.HourReset.IsZero() || !now.Before(st.HourReset) {
		st.HourCount = 0
		st.HourReset = now.Add(hourWindow)
	}
	if st.DayReset.IsZero() || !now.Before(st.DayReset) {
		st.DayCount = 0
		st.DayReset = now.Add(dayWindow)
	}
}

// charge bumps the lifetime request counter; failures are logged only.
func (t *Tracker) charge(telegramID int64) {
	if err := t.db.IncrementRequestCount(telegramID); err != nil {
		t.log.Error("cooldown: request count", "user", telegramID, "error", err)
	}
}

// Remaining reports how many requests the user has left in each window
// without charging anything. Unlimited tiers report (-1, -1, -1).
func (t *Tracker) Remaining(telegramID int64) (minute, hour, day int, err error) {
	user, err := t.db.GetUser(telegramID)
	if err != nil {
		return 0, 0, 0, err
	}
	b := badge.Resolve(user, t.adminIDs)
	if b.Unrestricted() {
		return -1, -1, -1, nil
	}

	st, err := t.db.GetRateState(telegramID)
	if err != nil {
		return 0, 0, 0, err
	}
	rollover(&st, t.now())

	minute = remaining(b.PerMinute, st.MinuteCount)
	hour = remaining(b.PerHour, st.HourCount)
	day = remaining(b.PerDay, st.DayCount)
	return minute, hour, day, nil
}

func remaining(q badge.Quota, used int) int {
	if !q.Limited() {
		return -1
	}
	if left := q.Value() - used; left > 0 {
		return left
	}
	return 0
}

// Reset clears one user's counters.
func (t *Tracker) Reset(telegramID int64) error {
	return t.db.ResetRateState(telegramID)
}

// ResetAll clears everyone's counters and returns how many states were
// dropped.
func (t *Tracker) ResetAll() (int64, error) {
	return t.db.ResetAllRateStates()
}
