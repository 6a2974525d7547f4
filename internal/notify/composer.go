// Package notify composes push notifications from observed messages and
// delivers them to the account's push endpoint.
package notify

import (
	"fmt"
	"strings"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/ingest"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"go.uber.org/zap"
)

const (
	// unknownUser is the placeholder when no display name resolves.
	unknownUser = "unknown user"
	// botChannelFallback is the title for a nameless bot channel.
	botChannelFallback = "bot channel"
)

// Composer produces a (title, body) pair for a message, dispatching on
// the channel's type. Name resolution failures never abort composition;
// they fall back to placeholders.
type Composer struct {
	db     *store.DB
	logger *zap.Logger
}

// NewComposer creates a composer backed by the directory cache.
func NewComposer(db *store.DB, logger *zap.Logger) *Composer {
	return &Composer{db: db, logger: logger}
}

// Compose builds the notification for msg as seen by acct in ch.
func (c *Composer) Compose(acct *store.Account, ch *store.Channel, msg ingest.NewMessage) (title, body string) {
	switch ch.Type {
	case store.ChannelDirect:
		title = c.counterpartName(acct, ch)
		body = fmt.Sprintf("message from %s: %s", title, msg.Content)
	case store.ChannelBot:
		if ch.Name != "" {
			title = "bot - " + ch.Name
		} else {
			title = botChannelFallback
		}
		body = msg.Content
	default:
		sender := c.lookupByID(msg.CreatorID)
		if sender != nil {
			title = fmt.Sprintf("%s - %s", ch.Name, displayName(sender))
		} else {
			title = "channel: " + ch.Name
		}
		body = msg.Content
	}
	return title, body
}

// counterpartName resolves the other participant of a direct channel:
// the member list minus the current account's directory id. Without the
// account's own entry the counterpart cannot be told apart from the
// account itself, so the placeholder is used rather than a guess.
func (c *Composer) counterpartName(acct *store.Account, ch *store.Channel) string {
	self, err := c.db.GetDirectoryUserByLogin(acct.LoginName)
	if err != nil {
		c.logger.Warn("lookup own directory entry failed",
			zap.String("login", acct.LoginName), zap.Error(err))
	}
	if self == nil {
		return unknownUser
	}

	var otherID int64
	for _, member := range ch.Members {
		if member == self.UserID {
			continue
		}
		otherID = member
		break
	}
	if otherID == 0 {
		return unknownUser
	}
	return displayName(c.lookupByID(otherID))
}

func (c *Composer) lookupByID(userID int64) *store.DirectoryUser {
	u, err := c.db.GetDirectoryUserByID(userID)
	if err != nil {
		c.logger.Warn("lookup directory user failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	return u
}

// displayName prefers the nickname, then the login name, then the
// placeholder. Never empty.
func displayName(u *store.DirectoryUser) string {
	if u == nil {
		return unknownUser
	}
	if name := strings.TrimSpace(u.Nickname); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.LoginName); name != "" {
		return name
	}
	return unknownUser
}
