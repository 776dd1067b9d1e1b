package utils

import (
	"strings"
	"testing"

	"moorelink-bot/internal/models"
)

func TestNormalizeAccount(t *testing.T) {
	cases := []struct {
		platform string
		in       string
		want     string
	}{
		{models.PlatformX, "@nasa", "nasa"},
		{models.PlatformX, "  nasa  ", "nasa"},
		{models.PlatformInstagram, "https://www.instagram.com/natgeo", "natgeo"},
		{models.PlatformInstagram, "https://www.instagram.com/natgeo?igsh=abc", "natgeo"},
		{models.PlatformYouTube, "@mkbhd", "mkbhd"},
		{models.PlatformX, "", ""},
		// single-post facebook links pass through untouched
		{models.PlatformFacebook, "https://www.facebook.com/share/abc/?mibextid=x", "https://www.facebook.com/share/abc/?mibextid=x"},
		{models.PlatformFacebook, "https://www.facebook.com/natgeo", "natgeo"},
	}
	for _, tc := range cases {
		if got := NormalizeAccount(tc.platform, tc.in); got != tc.want {
			t.Errorf("NormalizeAccount(%s, %q) = %q, want %q", tc.platform, tc.in, got, tc.want)
		}
	}
}

func TestInviteLink(t *testing.T) {
	got := InviteLink("moorelink_bot", 12345)
	if got != "https://t.me/moorelink_bot?start=12345" {
		t.Errorf("InviteLink = %q", got)
	}
}

func TestParseStartPayload(t *testing.T) {
	if id, ok := ParseStartPayload("987"); !ok || id != 987 {
		t.Errorf("ParseStartPayload(987) = %d, %v", id, ok)
	}
	for _, bad := range []string{"", "abc", "-5", "0"} {
		if _, ok := ParseStartPayload(bad); ok {
			t.Errorf("ParseStartPayload(%q) accepted", bad)
		}
	}
}

func TestUsersToCSV(t *testing.T) {
	users := []models.User{
		{TelegramID: 1, FirstName: "Ada", InviteCount: 3, RequestCount: 7, JoinedAt: 1700000000},
		{TelegramID: 2, FirstName: "Bob, Jr.", IsBanned: true},
	}
	out, err := UsersToCSV(users)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "telegram_id,first_name") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], `"Bob, Jr."`) {
		t.Errorf("comma in name not quoted: %q", lines[2])
	}
	if !strings.Contains(lines[1], "2023-11-14T22:13:20Z") {
		t.Errorf("joined_at not rendered: %q", lines[1])
	}
}
