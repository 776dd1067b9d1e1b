package handlers

import (
	"testing"

	"moorelink-bot/internal/models"
	"moorelink-bot/internal/session"
)

func TestParsePostAction(t *testing.T) {
	cases := []struct {
		payload string
		want    session.Key
		idx     int
		ok      bool
	}{
		{"x_nasa_0", session.Key{Platform: "x", Account: "nasa"}, 0, true},
		{"ig_nat_geo_3", session.Key{Platform: "ig", Account: "nat_geo"}, 3, true},
		{"yt_mkbhd_12", session.Key{Platform: "yt", Account: "mkbhd"}, 12, true},
		{"x_nasa_-1", session.Key{}, 0, false},
		{"x_nasa_abc", session.Key{}, 0, false},
		{"tiktok_user_0", session.Key{}, 0, false},
		{"x_0", session.Key{}, 0, false},
		{"", session.Key{}, 0, false},
	}
	for _, tc := range cases {
		key, idx, ok := parsePostAction(tc.payload)
		if ok != tc.ok || key != tc.want || idx != tc.idx {
			t.Errorf("parsePostAction(%q) = %+v, %d, %v; want %+v, %d, %v",
				tc.payload, key, idx, ok, tc.want, tc.idx, tc.ok)
		}
	}
}

func TestSplitPlatformAccount(t *testing.T) {
	platform, account, ok := splitPlatformAccount("ig_nat_geo")
	if !ok || platform != "ig" || account != "nat_geo" {
		t.Errorf("got %q, %q, %v", platform, account, ok)
	}
	if _, _, ok := splitPlatformAccount("tiktok_user"); ok {
		t.Error("unknown platform accepted")
	}
	if _, _, ok := splitPlatformAccount("x_"); ok {
		t.Error("empty account accepted")
	}
	if _, _, ok := splitPlatformAccount("x"); ok {
		t.Error("missing separator accepted")
	}
}

func TestPostKeyboardOffersSendAll(t *testing.T) {
	key := session.Key{UserID: 1, Platform: "x", Account: "nasa"}
	out := sessionOutcome(0, 5, false)

	kb := postKeyboard(key, out)
	if len(kb.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want confirm/skip, send-all, cancel", len(kb.InlineKeyboard))
	}
	if got := *kb.InlineKeyboard[1][0].CallbackData; got != "send_all_x_nasa" {
		t.Errorf("send-all data = %q", got)
	}

	// no send-all after an individual send
	kb = postKeyboard(key, sessionOutcome(1, 5, true))
	if len(kb.InlineKeyboard) != 2 {
		t.Errorf("rows = %d, want no send-all row", len(kb.InlineKeyboard))
	}

	// skipping keeps the offer alive
	kb = postKeyboard(key, sessionOutcome(2, 5, false))
	if len(kb.InlineKeyboard) != 3 {
		t.Errorf("rows = %d, want send-all kept after skips", len(kb.InlineKeyboard))
	}

	// no send-all for the last remaining post either
	kb = postKeyboard(key, sessionOutcome(4, 5, false))
	if len(kb.InlineKeyboard) != 2 {
		t.Errorf("rows = %d, want no send-all for final post", len(kb.InlineKeyboard))
	}

	if got := *kb.InlineKeyboard[0][0].CallbackData; got != "confirm_post_x_nasa_4" {
		t.Errorf("confirm data = %q", got)
	}
}

func sessionOutcome(cursor, total int, bulkLocked bool) session.Outcome {
	p := models.Post{ID: "p", URL: "https://example.com/p"}
	return session.Outcome{Next: &p, Cursor: cursor, Total: total, BulkLocked: bulkLocked}
}
