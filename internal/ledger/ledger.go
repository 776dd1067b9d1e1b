package ledger

import (
	"log/slog"

	"moorelink-bot/internal/models"
	"moorelink-bot/internal/storage"
)

// Ledger tracks which posts a user has already been offered, per tracked
// account. It exists so repeat fetches of the same account surface only
// content the user has not seen.
type Ledger struct {
	db  *storage.DB
	log *slog.Logger
}

func New(db *storage.DB, log *slog.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// FilterNew returns the candidates the user has not seen yet, in input
// order. A read failure on one candidate counts it as new rather than
// silently dropping content.
func (l *Ledger) FilterNew(ownerID int64, platform, account string, candidates []models.Post) []models.Post {
	fresh := make([]models.Post, 0, len(candidates))
	for _, p := range candidates {
		seen, err := l.db.IsPostSeen(ownerID, platform, account, p.ID)
		if err != nil {
			l.log.Error("ledger: lookup", "user", ownerID, "post", p.ID, "error", err)
			fresh = append(fresh, p)
			continue
		}
		if !seen {
			fresh = append(fresh, p)
		}
	}
	return fresh
}

// RecordSeen marks posts as offered. Failures are logged; a missed record
// means the post may be offered again, which is the safer direction.
func (l *Ledger) RecordSeen(ownerID int64, platform, account string, posts []models.Post) {
	if err := l.db.RecordSeenPosts(ownerID, platform, account, posts); err != nil {
		l.log.Error("ledger: record", "user", ownerID, "account", account, "error", err)
	}
}

// SelectAndRecord picks up to limit posts for delivery and records them as
// seen. With force set the ledger is bypassed for selection but still
// written, so a later normal fetch will not repeat the forced batch.
func (l *Ledger) SelectAndRecord(ownerID int64, platform, account string, candidates []models.Post, force bool, limit int) []models.Post {
	var picked []models.Post
	if force {
		picked = candidates
	} else {
		picked = l.FilterNew(ownerID, platform, account, candidates)
	}
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}
	l.RecordSeen(ownerID, platform, account, picked)
	return picked
}
