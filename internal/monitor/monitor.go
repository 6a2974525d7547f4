// Package monitor drives the poll cycle: per enabled account, list
// channels, resolve unread messages, compose and push, confirm in the
// ledger. One background worker; the loop never terminates on its own.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/bus"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/directory"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/ingest"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/notify"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/session"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/status"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/syno"
	"go.uber.org/zap"
)

const (
	// pollInterval is the sleep between full scans.
	pollInterval = 5 * time.Second
	// errorBackoff is the longer sleep after a cycle-level failure.
	errorBackoff = 10 * time.Second
)

// ErrNoAccounts is returned by Start when the store holds no enabled
// account with a complete push configuration.
var ErrNoAccounts = errors.New("no push-configured accounts")

// ErrStoreNotReady is returned by Start when the runner has no store.
var ErrStoreNotReady = errors.New("store not initialized")

// Deps bundles the collaborators of the runner.
type Deps struct {
	DB         *store.DB
	Sessions   *session.Manager
	Directory  *directory.Client
	Resolver   *ingest.Resolver
	Composer   *notify.Composer
	Dispatcher *notify.Dispatcher
	Machine    *status.Machine
	Bus        *bus.Bus
	Logger     *zap.Logger

	// DirectorySyncCycles is the cadence of directory user re-syncs, in
	// poll cycles. 0 disables periodic re-sync; the sync on the first
	// cycle runs regardless.
	DirectorySyncCycles int
}

// Runner owns the monitor loop. It is started at most once at a time;
// Start while running is a logged no-op.
type Runner struct {
	deps Deps

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	cycles        atomic.Uint64
	pushed        atomic.Uint64
	failures      atomic.Uint64
	lastCycleUnix atomic.Int64
}

// NewRunner creates a runner. It does not start the loop.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// Snapshot is a point-in-time view of the runner for the status surface.
type Snapshot struct {
	Running   bool
	State     status.State
	Cycles    uint64
	Pushed    uint64
	Failures  uint64
	LastCycle time.Time
}

// Snapshot returns current runner statistics.
func (r *Runner) Snapshot() Snapshot {
	s := Snapshot{
		Running:  r.running.Load(),
		State:    r.deps.Machine.Current(),
		Cycles:   r.cycles.Load(),
		Pushed:   r.pushed.Load(),
		Failures: r.failures.Load(),
	}
	if ms := r.lastCycleUnix.Load(); ms > 0 {
		s.LastCycle = time.UnixMilli(ms)
	}
	return s
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Start launches the background worker. It is idempotent: a second call
// while running is a no-op. It fails when the store is absent or no
// account is configured for pushing.
func (r *Runner) Start() error {
	if r.deps.DB == nil {
		return ErrStoreNotReady
	}
	accounts, err := r.deps.DB.ListEnabledAccountsWithPushConfig()
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	if !r.running.CompareAndSwap(false, true) {
		r.deps.Logger.Info("monitor already running")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)

	r.deps.Logger.Info("monitor started", zap.Int("accounts", len(accounts)))
	return nil
}

// Stop signals the loop and waits for the current cycle to finish.
// Safe to call when not running.
func (r *Runner) Stop() {
	if !r.running.Load() {
		return
	}
	r.cancel()
	<-r.done
	r.running.Store(false)
	r.deps.Logger.Info("monitor stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	r.deps.Logger.Info("monitor loop started")

	for {
		cycleID := uuid.NewString()[:8]
		started := time.Now()

		err := r.runCycle(ctx, cycleID)

		r.lastCycleUnix.Store(time.Now().UnixMilli())
		_ = r.deps.Machine.Transition(status.Idle)
		r.deps.Bus.Publish(bus.Event{
			Kind:      "monitor.cycle",
			Timestamp: time.Now(),
			Payload: CycleSummary{
				ID:       cycleID,
				Number:   r.cycles.Load(),
				Duration: time.Since(started),
				Err:      err,
			},
		})

		sleep := pollInterval
		if err != nil {
			// A cycle-level error (store unavailable etc.) never kills
			// the loop; back off and resume.
			r.deps.Logger.Error("cycle failed", zap.String("cycle", cycleID), zap.Error(err))
			sleep = errorBackoff
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return
		}
	}
}

// CycleSummary is the payload of monitor.cycle events.
type CycleSummary struct {
	ID       string
	Number   uint64
	Duration time.Duration
	Err      error
}

func (r *Runner) runCycle(ctx context.Context, cycleID string) error {
	accounts, err := r.deps.DB.ListEnabledAccounts()
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	cycle := r.cycles.Add(1)
	// The first cycle always syncs the user directory so display names
	// resolve from the start; after that the configured cadence applies.
	syncDue := cycle == 1 ||
		(r.deps.DirectorySyncCycles > 0 && cycle%uint64(r.deps.DirectorySyncCycles) == 1)

	for i := range accounts {
		acct := &accounts[i]

		if !acct.HasPushConfig() {
			r.deps.Logger.Warn("push config incomplete, skipping account",
				zap.String("cycle", cycleID), zap.String("login", acct.LoginName))
			continue
		}

		// One account's failure never blocks the rest of the cycle.
		if err := r.scanAccount(ctx, acct, &syncDue); err != nil {
			r.deps.Logger.Error("account turn failed",
				zap.String("cycle", cycleID), zap.String("login", acct.LoginName), zap.Error(err))
		}
	}
	return nil
}

func (r *Runner) scanAccount(ctx context.Context, acct *store.Account, syncDue *bool) error {
	_ = r.deps.Machine.Transition(status.Scanning)

	channels, err := r.listWithRefresh(ctx, acct)
	if err != nil {
		return err
	}

	if *syncDue {
		*syncDue = false
		if _, err := r.deps.Directory.SyncUsers(ctx, acct.SessionToken); err != nil {
			r.deps.Logger.Warn("directory sync failed", zap.Error(err))
		}
	}

	for _, ch := range channels {
		if ch.Unread <= 0 {
			continue
		}
		_ = r.deps.Machine.Transition(status.Dispatching)
		if err := r.processChannel(ctx, acct, ch); err != nil {
			r.deps.Logger.Error("channel processing failed",
				zap.Int64("channel_id", ch.ChannelID), zap.Error(err))
		}
		_ = r.deps.Machine.Transition(status.Scanning)
	}
	return nil
}

// listWithRefresh lists channels with the cached token. On an expiry-
// classified failure it re-authenticates once and retries the listing
// exactly once; any other failure (or a second one) ends the turn.
func (r *Runner) listWithRefresh(ctx context.Context, acct *store.Account) ([]syno.Channel, error) {
	channels, err := r.deps.Directory.ListChannels(ctx, acct.SessionToken)
	if err == nil {
		return channels, nil
	}
	if !syno.IsSessionExpired(err) {
		return nil, err
	}

	_ = r.deps.Machine.Transition(status.Refreshing)
	r.deps.Logger.Warn("session expired, re-authenticating", zap.String("login", acct.LoginName))

	token, rerr := r.deps.Sessions.Refresh(ctx, acct)
	if rerr != nil {
		return nil, fmt.Errorf("session refresh: %w", rerr)
	}
	r.deps.Bus.Publish(bus.Event{
		Kind:      "session.refreshed",
		Timestamp: time.Now(),
		Payload:   acct.LoginName,
	})

	_ = r.deps.Machine.Transition(status.Scanning)
	return r.deps.Directory.ListChannels(ctx, token)
}

func (r *Runner) processChannel(ctx context.Context, acct *store.Account, remote syno.Channel) error {
	msgs, err := r.deps.Resolver.ResolveUnread(ctx, acct.SessionToken, remote.ChannelID, remote.Unread)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	meta, err := r.deps.DB.GetChannelByID(remote.ChannelID)
	if err != nil {
		r.deps.Logger.Warn("channel lookup failed", zap.Int64("channel_id", remote.ChannelID), zap.Error(err))
	}
	if meta == nil {
		meta = &store.Channel{
			ChannelID: remote.ChannelID,
			Name:      remote.Name,
			Members:   remote.Members,
			Type:      store.ParseChannelType(remote.Type),
		}
	}

	// The resolver returns messages newest-first as fetched; deliver
	// oldest-first so the push history reads chronologically.
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		title, body := r.deps.Composer.Compose(acct, meta, msg)

		if err := r.deps.Dispatcher.Send(ctx, acct.PushURL, acct.PushToken, title, body); err != nil {
			// Leave the record unpushed; the next cycle that sees this
			// channel unread retries it.
			r.failures.Add(1)
			r.deps.Logger.Warn("push failed",
				zap.Int64("channel_id", msg.ChannelID), zap.String("message_id", msg.MessageID), zap.Error(err))
			r.deps.Bus.Publish(bus.Event{Kind: "push.failed", Timestamp: time.Now(), Payload: msg.MessageID})
			continue
		}

		confirmed, err := r.deps.DB.MarkPushed(msg.ChannelID, msg.MessageID)
		if err != nil {
			r.deps.Logger.Error("mark pushed failed",
				zap.Int64("channel_id", msg.ChannelID), zap.String("message_id", msg.MessageID), zap.Error(err))
			continue
		}
		if confirmed {
			r.pushed.Add(1)
			r.deps.Bus.Publish(bus.Event{Kind: "push.sent", Timestamp: time.Now(), Payload: msg.MessageID})
		}
	}
	return nil
}
