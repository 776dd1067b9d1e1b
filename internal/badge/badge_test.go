package badge

import (
	"testing"

	"moorelink-bot/internal/models"
)

func TestResolveMonotonic(t *testing.T) {
	prev := -1
	for invites := 0; invites <= 60; invites++ {
		u := &models.User{TelegramID: 1, InviteCount: invites}
		b := Resolve(u, nil)
		if b.AdminOnly {
			t.Fatalf("invites=%d resolved to admin tier", invites)
		}
		if b.InvitesNeeded > invites {
			t.Fatalf("invites=%d resolved to %s needing %d", invites, b.Name, b.InvitesNeeded)
		}
		if r := Rank(b); r < prev {
			t.Fatalf("rank decreased at invites=%d: %d -> %d", invites, prev, r)
		} else {
			prev = r
		}
	}
}

func TestResolveAdminPrecedence(t *testing.T) {
	for _, invites := range []int{0, 5, 50, 1000} {
		u := &models.User{TelegramID: 7, InviteCount: invites, IsAdmin: true}
		if b := Resolve(u, nil); !b.AdminOnly {
			t.Errorf("invites=%d with admin flag: got %s", invites, b.Name)
		}
	}

	// allowlist works without the stored flag
	u := &models.User{TelegramID: 42}
	if b := Resolve(u, []int64{42}); !b.AdminOnly {
		t.Errorf("allowlisted user resolved to %s", b.Name)
	}
	if b := Resolve(u, []int64{43}); b.AdminOnly {
		t.Error("non-allowlisted user resolved to admin tier")
	}
}

func TestResolveMissingUser(t *testing.T) {
	b := Resolve(nil, nil)
	if b.Name != "Basic" {
		t.Errorf("nil user resolved to %s, want Basic", b.Name)
	}
}

func TestResolveExactThresholds(t *testing.T) {
	cases := []struct {
		invites int
		want    string
	}{
		{0, "Basic"},
		{2, "Basic"},
		{3, "Bronze"},
		{9, "Bronze"},
		{10, "Silver"},
		{25, "Gold"},
		{49, "Gold"},
		{50, "Diamond"},
		{9999, "Diamond"},
	}
	for _, tc := range cases {
		u := &models.User{TelegramID: 1, InviteCount: tc.invites}
		if b := Resolve(u, nil); b.Name != tc.want {
			t.Errorf("invites=%d: got %s, want %s", tc.invites, b.Name, tc.want)
		}
	}
}

func TestNextSkipsAdmin(t *testing.T) {
	gold := Resolve(&models.User{InviteCount: 25}, nil)
	next, ok := Next(gold)
	if !ok || next.Name != "Diamond" {
		t.Fatalf("Next(Gold) = %v, %v", next.Name, ok)
	}

	diamond := Resolve(&models.User{InviteCount: 50}, nil)
	if _, ok := Next(diamond); ok {
		t.Error("Diamond should be the top of the invite ladder")
	}
}

func TestQuotaString(t *testing.T) {
	if s := Bounded(5).String(); s != "5" {
		t.Errorf("Bounded(5) = %q", s)
	}
	if s := Unlimited().String(); s != "∞" {
		t.Errorf("Unlimited() = %q", s)
	}
}
