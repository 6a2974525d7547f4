package store

import (
	"database/sql"
	"time"
)

// UpsertAccount inserts or updates an account keyed by login name.
// Used by the admin boundary and the initial setup path.
func (db *DB) UpsertAccount(a *Account) error {
	_, err := db.Exec(`
		INSERT INTO accounts (enabled, login_name, secret, session_token, push_url, push_token, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(login_name) DO UPDATE SET
			enabled = excluded.enabled,
			secret = excluded.secret,
			session_token = excluded.session_token,
			push_url = excluded.push_url,
			push_token = excluded.push_token,
			updated_at = excluded.updated_at`,
		a.Enabled, a.LoginName, a.Secret, a.SessionToken, a.PushURL, a.PushToken, time.Now().UnixMilli())
	return err
}

// GetAccount returns the account with the given login name, or nil.
func (db *DB) GetAccount(loginName string) (*Account, error) {
	row := db.QueryRow(`
		SELECT id, enabled, login_name, secret, session_token, push_url, push_token
		FROM accounts WHERE login_name = ?`, loginName)
	var a Account
	err := row.Scan(&a.ID, &a.Enabled, &a.LoginName, &a.Secret, &a.SessionToken, &a.PushURL, &a.PushToken)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListEnabledAccounts returns all enabled accounts, including ones with an
// incomplete push configuration. The monitor loop skips (and logs) those
// itself so the skip is visible.
func (db *DB) ListEnabledAccounts() ([]Account, error) {
	return db.listAccounts(`
		SELECT id, enabled, login_name, secret, session_token, push_url, push_token
		FROM accounts WHERE enabled = 1 ORDER BY id`)
}

// ListEnabledAccountsWithPushConfig returns enabled accounts that have both
// push fields set, i.e. the accounts the monitor can actually serve.
func (db *DB) ListEnabledAccountsWithPushConfig() ([]Account, error) {
	return db.listAccounts(`
		SELECT id, enabled, login_name, secret, session_token, push_url, push_token
		FROM accounts WHERE enabled = 1 AND push_url != '' AND push_token != '' ORDER BY id`)
}

func (db *DB) listAccounts(query string) ([]Account, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Enabled, &a.LoginName, &a.Secret, &a.SessionToken, &a.PushURL, &a.PushToken); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateSessionToken persists a refreshed session token. Returns false if
// no such account exists.
func (db *DB) UpdateSessionToken(loginName, token string) (bool, error) {
	res, err := db.Exec(`
		UPDATE accounts SET session_token = ?, updated_at = ? WHERE login_name = ?`,
		token, time.Now().UnixMilli(), loginName)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountAccounts returns the total number of configured accounts.
func (db *DB) CountAccounts() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}
