package store

import (
	"database/sql"
	"time"
)

// SetConfig sets a system config entry (insert-or-replace by key).
func (db *DB) SetConfig(key, value, description string) error {
	_, err := db.Exec(`
		INSERT INTO system_config (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		key, value, description, time.Now().UnixMilli())
	return err
}

// GetConfig returns the config value for key, or def when unset.
func (db *DB) GetConfig(key, def string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM system_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return value, nil
}
