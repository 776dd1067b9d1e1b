package badge

import (
	"strconv"

	"moorelink-bot/internal/models"
)

// Quota is either a bounded integer limit or unlimited. The original
// configuration used floating-point infinity as a sentinel; a tagged value
// keeps comparisons and display unambiguous.
type Quota struct {
	bounded bool
	n       int
}

func Bounded(n int) Quota { return Quota{bounded: true, n: n} }

func Unlimited() Quota { return Quota{} }

// Limited reports whether the quota carries a bound.
func (q Quota) Limited() bool { return q.bounded }

// Value returns the bound; only meaningful when Limited.
func (q Quota) Value() int { return q.n }

func (q Quota) String() string {
	if !q.bounded {
		return "∞"
	}
	return strconv.Itoa(q.n)
}

// Badge is one access tier. AdminOnly tiers are never reached through
// invites, only through the admin flag or allowlist.
type Badge struct {
	Name          string
	Emoji         string
	InvitesNeeded int
	AdminOnly     bool
	SaveSlots     Quota
	PerMinute     Quota
	PerHour       Quota
	PerDay        Quota
}

// Unrestricted reports whether the tier is exempt from every quota.
func (b Badge) Unrestricted() bool {
	return !b.PerMinute.Limited() && !b.PerHour.Limited() && !b.PerDay.Limited()
}

// Levels is the static tier list, ascending by invites needed, with the
// administrator tier last. Resolution scans the invite tiers in reverse so
// the effective rule is "highest tier the user qualifies for".
var Levels = []Badge{
	{Name: "Basic", Emoji: "🌱", InvitesNeeded: 0, SaveSlots: Bounded(2),
		PerMinute: Bounded(2), PerHour: Bounded(10), PerDay: Bounded(30)},
	{Name: "Bronze", Emoji: "🥉", InvitesNeeded: 3, SaveSlots: Bounded(5),
		PerMinute: Bounded(4), PerHour: Bounded(25), PerDay: Bounded(80)},
	{Name: "Silver", Emoji: "🥈", InvitesNeeded: 10, SaveSlots: Bounded(10),
		PerMinute: Bounded(6), PerHour: Bounded(50), PerDay: Bounded(150)},
	{Name: "Gold", Emoji: "🥇", InvitesNeeded: 25, SaveSlots: Bounded(25),
		PerMinute: Bounded(10), PerHour: Bounded(100), PerDay: Bounded(400)},
	{Name: "Diamond", Emoji: "💎", InvitesNeeded: 50, SaveSlots: Unlimited(),
		PerMinute: Unlimited(), PerHour: Unlimited(), PerDay: Unlimited()},
	{Name: "Admin", Emoji: "👑", AdminOnly: true, SaveSlots: Unlimited(),
		PerMinute: Unlimited(), PerHour: Unlimited(), PerDay: Unlimited()},
}

// Resolve maps a user to their tier. The admin check has absolute priority;
// a missing user record resolves to the lowest tier. Resolve never fails.
func Resolve(u *models.User, adminIDs []int64) Badge {
	if u != nil && u.IsAdmin {
		return adminLevel()
	}
	if u != nil && contains(adminIDs, u.TelegramID) {
		return adminLevel()
	}

	invites := 0
	if u != nil {
		invites = u.InviteCount
	}

	for i := len(Levels) - 1; i >= 0; i-- {
		lvl := Levels[i]
		if lvl.AdminOnly {
			continue
		}
		if invites >= lvl.InvitesNeeded {
			return lvl
		}
	}
	return Levels[0]
}

// Next returns the tier after b in the invite ladder, if any. The admin
// tier is not part of the ladder.
func Next(b Badge) (Badge, bool) {
	for i, lvl := range Levels {
		if lvl.Name != b.Name {
			continue
		}
		for j := i + 1; j < len(Levels); j++ {
			if !Levels[j].AdminOnly {
				return Levels[j], true
			}
		}
		break
	}
	return Badge{}, false
}

func adminLevel() Badge {
	for _, b := range Levels {
		if b.AdminOnly {
			return b
		}
	}
	return Levels[len(Levels)-1]
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Rank returns the position of b in the tier list; higher means better.
func Rank(b Badge) int {
	for i, lvl := range Levels {
		if lvl.Name == b.Name {
			return i
		}
	}
	return 0
}
