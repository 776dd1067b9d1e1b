package storage

import (
	"database/sql"
	"embed"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"moorelink-bot/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

type DB struct{ *sql.DB }

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err = migrate(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ---------- users -----------------------------------------------------------

// UpsertUser creates the user on first contact or refreshes the display name.
// Returns true when the row was newly created (used for invite crediting).
func (d *DB) UpsertUser(telegramID int64, firstName string) (bool, error) {
	res, err := d.Exec(`
        INSERT INTO users (telegram_id, first_name, joined_at)
        VALUES (?,?,?)
        ON CONFLICT(telegram_id) DO NOTHING
    `, telegramID, firstName, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return true, nil
	}
	_, err = d.Exec(`UPDATE users SET first_name=? WHERE telegram_id=?`, firstName, telegramID)
	return false, err
}

func (d *DB) GetUser(telegramID int64) (*models.User, error) {
	var u models.User
	err := d.QueryRow(`
        SELECT id, telegram_id, first_name, is_admin, is_banned,
               invite_count, request_count, last_request_at, joined_at
        FROM users WHERE telegram_id=?`, telegramID,
	).Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.IsAdmin, &u.IsBanned,
		&u.InviteCount, &u.RequestCount, &u.LastRequestAt, &u.JoinedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) ListUsers(limit int) ([]models.User, error) {
	rows, err := d.Query(`
        SELECT id, telegram_id, first_name, is_admin, is_banned,
               invite_count, request_count, last_request_at, joined_at
        FROM users ORDER BY joined_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.IsAdmin, &u.IsBanned,
			&u.InviteCount, &u.RequestCount, &u.LastRequestAt, &u.JoinedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// TopInviters returns users ordered by invite count for the leaderboard.
func (d *DB) TopInviters(limit int) ([]models.User, error) {
	rows, err := d.Query(`
        SELECT id, telegram_id, first_name, is_admin, is_banned,
               invite_count, request_count, last_request_at, joined_at
        FROM users ORDER BY invite_count DESC, joined_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.IsAdmin, &u.IsBanned,
			&u.InviteCount, &u.RequestCount, &u.LastRequestAt, &u.JoinedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (d *DB) SetBanned(telegramID int64, banned bool) error {
	_, err := d.Exec(`UPDATE users SET is_banned=? WHERE telegram_id=?`, banned, telegramID)
	return err
}

func (d *DB) SetAdmin(telegramID int64, admin bool) error {
	_, err := d.Exec(`UPDATE users SET is_admin=? WHERE telegram_id=?`, admin, telegramID)
	return err
}

// IncrementInvites credits n invites; the row is created if the inviter has
// never talked to the bot (they may only be known through a deep link).
func (d *DB) IncrementInvites(telegramID int64, n int) error {
	_, err := d.Exec(`
        INSERT INTO users (telegram_id, invite_count, joined_at)
        VALUES (?,?,?)
        ON CONFLICT(telegram_id) DO UPDATE SET invite_count = invite_count + ?
    `, telegramID, n, time.Now().Unix(), n)
	return err
}

func (d *DB) IncrementRequestCount(telegramID int64) error {
	_, err := d.Exec(`
        UPDATE users SET request_count = request_count + 1, last_request_at = ?
        WHERE telegram_id = ?`, time.Now().Unix(), telegramID)
	return err
}

// ---------- rate limits -----------------------------------------------------

// GetRateState loads the three-window state, returning a zeroed state when
// the user has none yet.
func (d *DB) GetRateState(telegramID int64) (models.RateLimitState, error) {
	st := models.RateLimitState{TelegramID: telegramID}
	var minuteReset, hourReset, dayReset int64

	err := d.QueryRow(`
        SELECT minute_count, hour_count, day_count, minute_reset, hour_reset, day_reset
        FROM rate_limits WHERE telegram_id=?`, telegramID,
	).Scan(&st.MinuteCount, &st.HourCount, &st.DayCount, &minuteReset, &hourReset, &dayReset)

	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.MinuteReset = fromUnix(minuteReset)
	st.HourReset = fromUnix(hourReset)
	st.DayReset = fromUnix(dayReset)
	return st, nil
}

func (d *DB) PutRateState(st models.RateLimitState) error {
	_, err := d.Exec(`
        INSERT INTO rate_limits (telegram_id, minute_count, hour_count, day_count,
                                 minute_reset, hour_reset, day_reset)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT(telegram_id) DO UPDATE SET
            minute_count=excluded.minute_count,
            hour_count=excluded.hour_count,
            day_count=excluded.day_count,
            minute_reset=excluded.minute_reset,
            hour_reset=excluded.hour_reset,
            day_reset=excluded.day_reset
    `, st.TelegramID, st.MinuteCount, st.HourCount, st.DayCount,
		toUnix(st.MinuteReset), toUnix(st.HourReset), toUnix(st.DayReset))
	return err
}

func (d *DB) ResetRateState(telegramID int64) error {
	_, err := d.Exec(`DELETE FROM rate_limits WHERE telegram_id=?`, telegramID)
	return err
}

// ResetAllRateStates clears every user's counters and reports how many were
// affected.
func (d *DB) ResetAllRateStates() (int64, error) {
	res, err := d.Exec(`DELETE FROM rate_limits`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// ---------- seen posts ------------------------------------------------------

func (d *DB) IsPostSeen(ownerID int64, platform, account, postID string) (bool, error) {
	var one int
	err := d.QueryRow(`
        SELECT 1 FROM seen_posts
        WHERE owner_telegram_id=? AND platform=? AND account_name=? AND post_id=?`,
		ownerID, platform, account, postID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordSeenPosts appends ledger rows for each post; re-recording an already
// seen post is a no-op. Posts without an id or URL are skipped.
func (d *DB) RecordSeenPosts(ownerID int64, platform, account string, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, p := range posts {
		if p.ID == "" || p.URL == "" {
			continue
		}
		if _, err := tx.Exec(`
            INSERT INTO seen_posts (owner_telegram_id, platform, account_name, post_id, post_url, seen_at)
            VALUES (?,?,?,?,?,?)
            ON CONFLICT(owner_telegram_id, platform, account_name, post_id) DO NOTHING
        `, ownerID, platform, account, p.ID, p.URL, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) CountSeenPosts(ownerID int64, platform, account string) (int, error) {
	var n int
	err := d.QueryRow(`
        SELECT COUNT(1) FROM seen_posts
        WHERE owner_telegram_id=? AND platform=? AND account_name=?`,
		ownerID, platform, account,
	).Scan(&n)
	return n, err
}

// ---------- saved accounts --------------------------------------------------

// SaveAccount upserts a saved account; an empty label keeps an existing one.
func (d *DB) SaveAccount(ownerID int64, platform, account, label string) (*models.SavedAccount, error) {
	_, err := d.Exec(`
        INSERT INTO saved_accounts (owner_telegram_id, platform, account_name, label, created_at)
        VALUES (?,?,?,?,?)
        ON CONFLICT(owner_telegram_id, platform, account_name) DO UPDATE SET
            label = CASE WHEN excluded.label != '' THEN excluded.label ELSE saved_accounts.label END
    `, ownerID, platform, account, label, time.Now().Unix())
	if err != nil {
		return nil, err
	}

	var sa models.SavedAccount
	err = d.QueryRow(`
        SELECT id, owner_telegram_id, platform, account_name, label, created_at
        FROM saved_accounts WHERE owner_telegram_id=? AND platform=? AND account_name=?`,
		ownerID, platform, account,
	).Scan(&sa.ID, &sa.OwnerID, &sa.Platform, &sa.Account, &sa.Label, &sa.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (d *DB) ListSavedAccounts(ownerID int64) ([]models.SavedAccount, error) {
	rows, err := d.Query(`
        SELECT id, owner_telegram_id, platform, account_name, label, created_at
        FROM saved_accounts WHERE owner_telegram_id=? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.SavedAccount
	for rows.Next() {
		var sa models.SavedAccount
		if err := rows.Scan(&sa.ID, &sa.OwnerID, &sa.Platform, &sa.Account, &sa.Label, &sa.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, sa)
	}
	return res, rows.Err()
}

func (d *DB) GetSavedAccount(ownerID, savedID int64) (*models.SavedAccount, error) {
	var sa models.SavedAccount
	err := d.QueryRow(`
        SELECT id, owner_telegram_id, platform, account_name, label, created_at
        FROM saved_accounts WHERE owner_telegram_id=? AND id=?`, ownerID, savedID,
	).Scan(&sa.ID, &sa.OwnerID, &sa.Platform, &sa.Account, &sa.Label, &sa.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (d *DB) RemoveSavedAccount(ownerID, savedID int64) (bool, error) {
	res, err := d.Exec(`DELETE FROM saved_accounts WHERE owner_telegram_id=? AND id=?`, ownerID, savedID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (d *DB) RenameSavedAccount(ownerID, savedID int64, label string) (bool, error) {
	res, err := d.Exec(`
        UPDATE saved_accounts SET label=? WHERE owner_telegram_id=? AND id=?`,
		label, ownerID, savedID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (d *DB) CountSavedAccounts(ownerID int64) (int, error) {
	var n int
	err := d.QueryRow(`SELECT COUNT(1) FROM saved_accounts WHERE owner_telegram_id=?`, ownerID).Scan(&n)
	return n, err
}

// ---------- message expiry --------------------------------------------------

// ScheduleMessageDelete records that a bot message should be removed from
// the chat at deleteAt; the scheduler sweeps these.
func (d *DB) ScheduleMessageDelete(chatID int64, messageID int, deleteAt time.Time) error {
	_, err := d.Exec(`
        INSERT INTO message_expiry (chat_id, message_id, delete_at) VALUES (?,?,?)`,
		chatID, messageID, deleteAt.Unix())
	return err
}

type ExpiredMessage struct {
	ID        int64
	ChatID    int64
	MessageID int
}

func (d *DB) DueMessageDeletes(now time.Time, limit int) ([]ExpiredMessage, error) {
	rows, err := d.Query(`
        SELECT id, chat_id, message_id FROM message_expiry
        WHERE delete_at <= ? ORDER BY delete_at LIMIT ?`, now.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ExpiredMessage
	for rows.Next() {
		var m ExpiredMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.MessageID); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (d *DB) PurgeMessageDelete(id int64) error {
	_, err := d.Exec(`DELETE FROM message_expiry WHERE id=?`, id)
	return err
}
