package store

import (
	"database/sql"
	"time"
)

// UpsertDirectoryUser inserts or updates a remote user keyed by user_id.
func (db *DB) UpsertDirectoryUser(u *DirectoryUser) error {
	_, err := db.Exec(`
		INSERT INTO directory_users (user_id, nickname, login_name, type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			nickname = excluded.nickname,
			login_name = excluded.login_name,
			type = excluded.type,
			updated_at = excluded.updated_at`,
		u.UserID, u.Nickname, u.LoginName, u.Type, time.Now().UnixMilli())
	return err
}

// GetDirectoryUserByID returns the cached user, or nil.
func (db *DB) GetDirectoryUserByID(userID int64) (*DirectoryUser, error) {
	return db.getDirectoryUser(`
		SELECT user_id, nickname, login_name, type
		FROM directory_users WHERE user_id = ?`, userID)
}

// GetDirectoryUserByLogin returns the cached user with the given login
// name, or nil.
func (db *DB) GetDirectoryUserByLogin(loginName string) (*DirectoryUser, error) {
	return db.getDirectoryUser(`
		SELECT user_id, nickname, login_name, type
		FROM directory_users WHERE login_name = ?`, loginName)
}

func (db *DB) getDirectoryUser(query string, arg any) (*DirectoryUser, error) {
	var u DirectoryUser
	err := db.QueryRow(query, arg).Scan(&u.UserID, &u.Nickname, &u.LoginName, &u.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
