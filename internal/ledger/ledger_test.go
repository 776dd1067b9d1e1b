package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"moorelink-bot/internal/models"
	"moorelink-bot/internal/storage"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func posts(ids ...string) []models.Post {
	out := make([]models.Post, len(ids))
	for i, id := range ids {
		out[i] = models.Post{ID: id, URL: fmt.Sprintf("https://example.com/%s", id)}
	}
	return out
}

func idsOf(ps []models.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestSelectFiltersSeen(t *testing.T) {
	l := testLedger(t)

	first := l.SelectAndRecord(1, "x", "nasa", posts("a", "b", "c"), false, 10)
	if len(first) != 3 {
		t.Fatalf("first select = %v", idsOf(first))
	}

	// overlapping refetch only surfaces the new post
	second := l.SelectAndRecord(1, "x", "nasa", posts("b", "c", "d"), false, 10)
	if len(second) != 1 || second[0].ID != "d" {
		t.Fatalf("second select = %v, want [d]", idsOf(second))
	}

	// fully seen refetch yields nothing
	third := l.SelectAndRecord(1, "x", "nasa", posts("a", "d"), false, 10)
	if len(third) != 0 {
		t.Fatalf("third select = %v, want empty", idsOf(third))
	}
}

func TestSelectHonorsLimit(t *testing.T) {
	l := testLedger(t)

	got := l.SelectAndRecord(1, "x", "nasa", posts("a", "b", "c", "d", "e"), false, 2)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("got %v, want first two", idsOf(got))
	}

	// the posts beyond the limit were not recorded
	next := l.SelectAndRecord(1, "x", "nasa", posts("c", "d", "e"), false, 10)
	if len(next) != 3 {
		t.Fatalf("got %v, want all three", idsOf(next))
	}
}

func TestForceBypassesFilterButStillRecords(t *testing.T) {
	l := testLedger(t)

	l.SelectAndRecord(1, "x", "nasa", posts("a", "b"), false, 10)

	forced := l.SelectAndRecord(1, "x", "nasa", posts("a", "b", "c"), true, 2)
	if len(forced) != 2 || forced[0].ID != "a" {
		t.Fatalf("forced = %v, want [a b]", idsOf(forced))
	}

	// "c" was beyond the forced limit, so it is still unseen
	normal := l.SelectAndRecord(1, "x", "nasa", posts("a", "b", "c"), false, 10)
	if len(normal) != 1 || normal[0].ID != "c" {
		t.Fatalf("post-force select = %v, want [c]", idsOf(normal))
	}
}

func TestLedgerScopedPerAccountAndUser(t *testing.T) {
	l := testLedger(t)

	l.SelectAndRecord(1, "x", "nasa", posts("a"), false, 10)

	if got := l.SelectAndRecord(1, "x", "spacex", posts("a"), false, 10); len(got) != 1 {
		t.Error("seen state leaked across accounts")
	}
	if got := l.SelectAndRecord(2, "x", "nasa", posts("a"), false, 10); len(got) != 1 {
		t.Error("seen state leaked across users")
	}
	if got := l.SelectAndRecord(1, "ig", "nasa", posts("a"), false, 10); len(got) != 1 {
		t.Error("seen state leaked across platforms")
	}
}

func TestSelectPreservesOrder(t *testing.T) {
	l := testLedger(t)
	l.SelectAndRecord(1, "x", "nasa", posts("b"), false, 10)

	got := l.SelectAndRecord(1, "x", "nasa", posts("a", "b", "c"), false, 10)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("got %v, want [a c] in order", idsOf(got))
	}
}
