package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// UpsertChannel inserts or updates channel metadata keyed by channel_id.
func (db *DB) UpsertChannel(c *Channel) error {
	members, err := json.Marshal(c.Members)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO channels (channel_id, name, members, member_count, type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			name = excluded.name,
			members = excluded.members,
			member_count = excluded.member_count,
			type = excluded.type,
			updated_at = excluded.updated_at`,
		c.ChannelID, c.Name, string(members), c.MemberCount, string(c.Type), time.Now().UnixMilli())
	return err
}

// GetChannelByID returns the cached channel, or nil if never discovered.
func (db *DB) GetChannelByID(channelID int64) (*Channel, error) {
	row := db.QueryRow(`
		SELECT channel_id, name, members, member_count, type
		FROM channels WHERE channel_id = ?`, channelID)
	var c Channel
	var members, typ string
	err := row.Scan(&c.ChannelID, &c.Name, &members, &c.MemberCount, &typ)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Type = ChannelType(typ)
	if err := json.Unmarshal([]byte(members), &c.Members); err != nil {
		// A corrupt member list only degrades direct-channel titles.
		c.Members = nil
	}
	return &c, nil
}
