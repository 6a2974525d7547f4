// Package session manages the authentication session lifecycle of the
// monitored accounts: login, token caching and refresh-on-expiry.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/syno"
	"go.uber.org/zap"
)

// Manager obtains and refreshes session tokens against the remote chat
// service and keeps the durable copy in the account record current.
type Manager struct {
	chat   *syno.Client
	db     *store.DB
	logger *zap.Logger

	// Serializes refreshes so two expiry classifications for the same
	// account can never race to write the cached token.
	mu sync.Mutex
}

// NewManager creates a session manager.
func NewManager(chat *syno.Client, db *store.DB, logger *zap.Logger) *Manager {
	return &Manager{chat: chat, db: db, logger: logger}
}

// Authenticate performs a login exchange and returns the session token.
func (m *Manager) Authenticate(ctx context.Context, login, secret string) (string, error) {
	token, err := m.chat.Login(ctx, login, secret)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	return token, nil
}

// Refresh re-authenticates the account, persists the new token and
// updates the in-memory copy. Called by the monitor loop after a remote
// call was classified as session expiry.
func (m *Manager) Refresh(ctx context.Context, acct *store.Account) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, err := m.Authenticate(ctx, acct.LoginName, acct.Secret)
	if err != nil {
		return "", err
	}

	updated, err := m.db.UpdateSessionToken(acct.LoginName, token)
	if err != nil {
		return "", fmt.Errorf("persist session token: %w", err)
	}
	if !updated {
		m.logger.Warn("account vanished while refreshing token", zap.String("login", acct.LoginName))
	}

	acct.SessionToken = token
	m.logger.Info("session token refreshed", zap.String("login", acct.LoginName))
	return token, nil
}
