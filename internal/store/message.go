package store

import (
	"database/sql"
	"time"
)

// InsertMessageIfAbsent records a message in the dedup ledger. The insert
// is idempotent on (channel_id, message_id); a second call with the same
// key is a no-op that leaves the pushed state untouched. Returns whether
// a new row was inserted.
func (db *DB) InsertMessageIfAbsent(channelID int64, messageID, content string, creatorID, createdAt int64) (bool, error) {
	res, err := db.Exec(`
		INSERT OR IGNORE INTO message_records (channel_id, message_id, content, creator_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		channelID, messageID, content, creatorID, createdAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IsPushed reports whether the message has already been pushed. A message
// with no ledger row counts as not pushed.
func (db *DB) IsPushed(channelID int64, messageID string) (bool, error) {
	var pushed bool
	err := db.QueryRow(`
		SELECT pushed FROM message_records WHERE channel_id = ? AND message_id = ?`,
		channelID, messageID).Scan(&pushed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return pushed, nil
}

// MarkPushed flips a ledger row to pushed, recording the push time.
// Succeeds (returns true) only when a matching unpushed row exists, so a
// message can be confirmed at most once.
func (db *DB) MarkPushed(channelID int64, messageID string) (bool, error) {
	res, err := db.Exec(`
		UPDATE message_records SET pushed = 1, pushed_at = ?
		WHERE channel_id = ? AND message_id = ? AND pushed = 0`,
		time.Now().UnixMilli(), channelID, messageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountUnpushed returns the number of ledger rows awaiting a push.
func (db *DB) CountUnpushed() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM message_records WHERE pushed = 0`).Scan(&n)
	return n, err
}

// PurgeOldMessageRecords deletes pushed ledger rows whose push time is
// older than the retention window. Unpushed rows are never purged; they
// are the retry queue. Returns the number of rows deleted.
func (db *DB) PurgeOldMessageRecords(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	res, err := db.Exec(`
		DELETE FROM message_records WHERE pushed_at IS NOT NULL AND pushed_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
