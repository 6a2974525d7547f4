// Package directory keeps the local channel and user caches in step with
// what the remote chat service reports.
package directory

import (
	"context"
	"fmt"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/syno"
	"go.uber.org/zap"
)

// Client lists channels for a session and upserts discovered channel and
// user metadata into the store.
type Client struct {
	chat   *syno.Client
	db     *store.DB
	logger *zap.Logger
}

// NewClient creates a directory client.
func NewClient(chat *syno.Client, db *store.DB, logger *zap.Logger) *Client {
	return &Client{chat: chat, db: db, logger: logger}
}

// ListChannels fetches the channel listing (one batched call including
// unread counts) and upserts every discovered channel. The remote listing
// is returned unchanged so the caller sees the unread counts.
func (c *Client) ListChannels(ctx context.Context, token string) ([]syno.Channel, error) {
	channels, err := c.chat.ListChannels(ctx, token)
	if err != nil {
		return nil, err
	}

	for _, ch := range channels {
		err := c.db.UpsertChannel(&store.Channel{
			ChannelID:   ch.ChannelID,
			Name:        ch.Name,
			Members:     ch.Members,
			MemberCount: ch.TotalMemberCount,
			Type:        store.ParseChannelType(ch.Type),
		})
		if err != nil {
			// A stale cache entry only degrades notification titles;
			// the listing itself is still usable.
			c.logger.Warn("upsert channel failed",
				zap.Int64("channel_id", ch.ChannelID), zap.Error(err))
		}
	}
	return channels, nil
}

// SyncUsers refreshes the directory user cache. Users with an empty type
// are deactivated remote artifacts and are skipped. Returns the number of
// users upserted.
func (c *Client) SyncUsers(ctx context.Context, token string) (int, error) {
	users, err := c.chat.ListUsers(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	synced := 0
	for _, u := range users {
		if u.Type == "" {
			continue
		}
		err := c.db.UpsertDirectoryUser(&store.DirectoryUser{
			UserID:    u.UserID,
			Nickname:  u.Nickname,
			LoginName: u.Username,
			Type:      u.Type,
		})
		if err != nil {
			c.logger.Warn("upsert directory user failed",
				zap.Int64("user_id", u.UserID), zap.Error(err))
			continue
		}
		synced++
	}
	c.logger.Info("directory users synced", zap.Int("count", synced))
	return synced, nil
}
