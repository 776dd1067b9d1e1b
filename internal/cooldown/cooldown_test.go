package cooldown

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"moorelink-bot/internal/storage"
)

func testTracker(t *testing.T) (*Tracker, *storage.DB, *time.Time) {
	t.Helper()
	db, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := New(db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.now = func() time.Time { return clock }
	return tr, db, &clock
}

// Basic tier: 2/minute.
func TestMinuteLimitAndRollover(t *testing.T) {
	tr, db, clock := testTracker(t)
	db.UpsertUser(1, "u")

	if b := tr.CheckAndIncrement(1); b != nil {
		t.Fatalf("first request blocked: %+v", b)
	}
	if b := tr.CheckAndIncrement(1); b != nil {
		t.Fatalf("second request blocked: %+v", b)
	}

	b := tr.CheckAndIncrement(1)
	if b == nil || b.Reason != "minute" {
		t.Fatalf("third request: got %+v, want minute block", b)
	}
	if b.RetryIn <= 0 || b.RetryIn > time.Minute {
		t.Errorf("RetryIn = %v", b.RetryIn)
	}

	// window expires, counter resets
	*clock = clock.Add(61 * time.Second)
	if b := tr.CheckAndIncrement(1); b != nil {
		t.Fatalf("post-rollover request blocked: %+v", b)
	}
}

// The minute window recovers first, so the hour block surfaces next.
func TestBlockPrecedence(t *testing.T) {
	tr, db, clock := testTracker(t)
	db.UpsertUser(1, "u")

	// Basic: 2/min, 10/hour. Burn through the hour quota two per minute.
	for i := 0; i < 5; i++ {
		for j := 0; j < 2; j++ {
			if b := tr.CheckAndIncrement(1); b != nil {
				t.Fatalf("request %d.%d blocked: %+v", i, j, b)
			}
		}
		*clock = clock.Add(61 * time.Second)
	}

	b := tr.CheckAndIncrement(1)
	if b == nil || b.Reason != "hour" {
		t.Fatalf("got %+v, want hour block", b)
	}
}

// When every window is simultaneously over quota, the minute block wins.
func TestBlockPrecedenceMinuteFirst(t *testing.T) {
	tr, db, clock := testTracker(t)
	db.UpsertUser(1, "u")

	// Basic: 2/min, 10/hour, 30/day, all exactly at the limit in live windows.
	st, _ := db.GetRateState(1)
	st.TelegramID = 1
	st.MinuteCount = 2
	st.MinuteReset = clock.Add(30 * time.Second)
	st.HourCount = 10
	st.HourReset = clock.Add(30 * time.Minute)
	st.DayCount = 30
	st.DayReset = clock.Add(12 * time.Hour)
	db.PutRateState(st)

	b := tr.CheckAndIncrement(1)
	if b == nil || b.Reason != "minute" {
		t.Fatalf("got %+v, want minute block first", b)
	}
}

func TestStorageErrorFailsOpen(t *testing.T) {
	tr, db, _ := testTracker(t)
	db.UpsertUser(1, "u")
	db.Close()

	// every read now errors; the request must still go through
	if b := tr.CheckAndIncrement(1); b != nil {
		t.Fatalf("blocked on storage failure: %+v", b)
	}
}

func TestBannedUserAlwaysBlocked(t *testing.T) {
	tr, db, _ := testTracker(t)
	db.UpsertUser(1, "u")
	db.SetBanned(1, true)

	b := tr.CheckAndIncrement(1)
	if b == nil || b.Reason != "banned" {
		t.Fatalf("got %+v, want banned block", b)
	}
	// counters must not have been touched
	st, _ := db.GetRateState(1)
	if st.MinuteCount != 0 {
		t.Errorf("banned request charged counters: %+v", st)
	}
}

func TestAdminExempt(t *testing.T) {
	tr, db, _ := testTracker(t)
	db.UpsertUser(9, "root")
	db.SetAdmin(9, true)

	for i := 0; i < 100; i++ {
		if b := tr.CheckAndIncrement(9); b != nil {
			t.Fatalf("admin blocked after %d requests: %+v", i, b)
		}
	}
	u, _ := db.GetUser(9)
	if u.RequestCount != 100 {
		t.Errorf("lifetime count = %d, want 100", u.RequestCount)
	}
}

func TestUnknownUserGetsBasicTier(t *testing.T) {
	tr, _, _ := testTracker(t)

	// no user row at all; still limited as Basic
	if b := tr.CheckAndIncrement(55); b != nil {
		t.Fatalf("first request blocked: %+v", b)
	}
	if b := tr.CheckAndIncrement(55); b != nil {
		t.Fatalf("second request blocked: %+v", b)
	}
	if b := tr.CheckAndIncrement(55); b == nil {
		t.Fatal("third request allowed, want minute block")
	}
}

func TestAbuseEscalation(t *testing.T) {
	tr, db, clock := testTracker(t)
	db.UpsertUser(1, "u")

	// Plant a day counter far beyond double the Basic day quota (30).
	st, _ := db.GetRateState(1)
	st.TelegramID = 1
	st.DayCount = 75
	st.DayReset = clock.Add(2 * time.Hour)
	st.MinuteReset = clock.Add(time.Minute)
	st.HourReset = clock.Add(time.Hour)
	db.PutRateState(st)

	b := tr.CheckAndIncrement(1)
	if b == nil || b.Reason != "excessive" {
		t.Fatalf("got %+v, want excessive block", b)
	}

	got, _ := db.GetRateState(1)
	if got.DayCount != 30 {
		t.Errorf("day count = %d, want clamped to 30", got.DayCount)
	}
	want := clock.Add(48 * time.Hour)
	if !got.DayReset.Equal(want) {
		t.Errorf("day reset = %v, want %v", got.DayReset, want)
	}

	// still blocked tomorrow
	*clock = clock.Add(25 * time.Hour)
	b = tr.CheckAndIncrement(1)
	if b == nil || b.Reason != "day" {
		t.Fatalf("next day: got %+v, want day block", b)
	}
}

func TestRemaining(t *testing.T) {
	tr, db, _ := testTracker(t)
	db.UpsertUser(1, "u")

	m, h, d, err := tr.Remaining(1)
	if err != nil {
		t.Fatal(err)
	}
	if m != 2 || h != 10 || d != 30 {
		t.Errorf("fresh remaining = %d/%d/%d", m, h, d)
	}

	tr.CheckAndIncrement(1)
	m, h, d, _ = tr.Remaining(1)
	if m != 1 || h != 9 || d != 29 {
		t.Errorf("after one request = %d/%d/%d", m, h, d)
	}

	db.SetAdmin(1, true)
	m, h, d, _ = tr.Remaining(1)
	if m != -1 || h != -1 || d != -1 {
		t.Errorf("admin remaining = %d/%d/%d, want unlimited", m, h, d)
	}
}

func TestResetClearsCounters(t *testing.T) {
	tr, db, _ := testTracker(t)
	db.UpsertUser(1, "u")

	tr.CheckAndIncrement(1)
	tr.CheckAndIncrement(1)
	if b := tr.CheckAndIncrement(1); b == nil {
		t.Fatal("want minute block before reset")
	}

	if err := tr.Reset(1); err != nil {
		t.Fatal(err)
	}
	if b := tr.CheckAndIncrement(1); b != nil {
		t.Fatalf("blocked after reset: %+v", b)
	}
}
