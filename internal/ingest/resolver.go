// Package ingest turns a channel's unread count into the concrete set of
// not-yet-pushed messages, backed by the dedup ledger.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/syno"
	"go.uber.org/zap"
)

const (
	// fetchMargin widens the fetch beyond the reported unread count to
	// tolerate races between the unread counter and the fetch.
	fetchMargin = 5
	// fetchCap bounds a single fetch regardless of the unread count.
	fetchCap = 50
)

// NewMessage is an observed message that has not been pushed yet.
type NewMessage struct {
	ChannelID int64
	MessageID string
	Content   string
	CreatorID int64
	CreatedAt int64 // unix milliseconds as reported by the remote
	Timestamp time.Time
}

// Resolver fetches recent posts and filters them through the ledger.
type Resolver struct {
	chat   *syno.Client
	db     *store.DB
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(chat *syno.Client, db *store.DB, logger *zap.Logger) *Resolver {
	return &Resolver{chat: chat, db: db, logger: logger}
}

// ResolveUnread fetches recent posts of the channel and returns the ones
// not yet pushed, in the remote's newest-first order. Every fetched post
// is recorded in the ledger via an idempotent insert, so refetching the
// same posts next cycle cannot produce duplicates.
func (r *Resolver) ResolveUnread(ctx context.Context, token string, channelID int64, unreadCount int) ([]NewMessage, error) {
	limit := unreadCount + fetchMargin
	if limit > fetchCap {
		limit = fetchCap
	}

	posts, err := r.chat.ListPosts(ctx, token, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}

	var fresh []NewMessage
	for _, post := range posts {
		msgID := MessageID(channelID, post)

		if _, err := r.db.InsertMessageIfAbsent(channelID, msgID, post.Message, post.CreatorID, post.CreateAt); err != nil {
			return nil, fmt.Errorf("record message %s: %w", msgID, err)
		}

		pushed, err := r.db.IsPushed(channelID, msgID)
		if err != nil {
			return nil, fmt.Errorf("check pushed %s: %w", msgID, err)
		}
		if pushed {
			continue
		}

		fresh = append(fresh, NewMessage{
			ChannelID: channelID,
			MessageID: msgID,
			Content:   post.Message,
			CreatorID: post.CreatorID,
			CreatedAt: post.CreateAt,
			Timestamp: time.UnixMilli(post.CreateAt),
		})
	}

	if len(fresh) > 0 {
		r.logger.Info("unpushed messages resolved",
			zap.Int64("channel_id", channelID), zap.Int("count", len(fresh)))
	}
	return fresh, nil
}

// MessageID returns the ledger key for a post. Posts without a stable
// remote id get a synthesized one derived from the channel and creation
// time, which is deterministic across refetches of the same post.
func MessageID(channelID int64, post syno.Post) string {
	if post.ID != 0 {
		return strconv.FormatInt(post.ID, 10)
	}
	return fmt.Sprintf("%d_%d", channelID, post.CreateAt)
}
