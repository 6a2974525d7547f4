package daemon

import (
	"context"
	"errors"
	"io/fs"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/api"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/bus"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/config"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/directory"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/ingest"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/lock"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/logging"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/monitor"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/notify"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/retention"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/session"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/status"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/syno"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved startup configuration for the fx module.
type Params struct {
	ConfigPath string
}

// Module composes all gateway providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("gateway",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideChatClient,
			provideSessionManager,
			provideDirectory,
			provideResolver,
			provideComposer,
			provideDispatcher,
			provideRunner,
			provideJanitor,
			provideEventLog,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if err := config.Save(p.ConfigPath, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", cfg.DBPath()))
	return db, nil
}

func provideChatClient(cfg *config.Config, db *store.DB, logger *zap.Logger) *syno.Client {
	// Resolved from system_config on every request, so initialization via
	// the admin boundary takes effect without a restart.
	source := func() string {
		baseURL, err := db.GetConfig("BASE_URL", "")
		if err != nil {
			logger.Warn("read BASE_URL failed", zap.Error(err))
			return ""
		}
		return baseURL
	}
	if source() == "" {
		// Not initialized yet. The daemon still serves the control
		// surface; remote calls report a missing base url until one
		// is stored.
		logger.Warn("BASE_URL not configured, remote calls will fail until initialization")
	}
	return syno.NewClientWithSource(source, cfg.InsecureTLS, logger)
}

func provideSessionManager(chat *syno.Client, db *store.DB, logger *zap.Logger) *session.Manager {
	return session.NewManager(chat, db, logger)
}

func provideDirectory(chat *syno.Client, db *store.DB, logger *zap.Logger) *directory.Client {
	return directory.NewClient(chat, db, logger)
}

func provideResolver(chat *syno.Client, db *store.DB, logger *zap.Logger) *ingest.Resolver {
	return ingest.NewResolver(chat, db, logger)
}

func provideComposer(db *store.DB, logger *zap.Logger) *notify.Composer {
	return notify.NewComposer(db, logger)
}

func provideDispatcher(logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(logger)
}

func provideRunner(
	cfg *config.Config,
	db *store.DB,
	sessions *session.Manager,
	dir *directory.Client,
	resolver *ingest.Resolver,
	composer *notify.Composer,
	dispatcher *notify.Dispatcher,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) *monitor.Runner {
	return monitor.NewRunner(monitor.Deps{
		DB:                  db,
		Sessions:            sessions,
		Directory:           dir,
		Resolver:            resolver,
		Composer:            composer,
		Dispatcher:          dispatcher,
		Machine:             machine,
		Bus:                 b,
		Logger:              logger,
		DirectorySyncCycles: cfg.DirectorySyncCycles,
	})
}

func provideJanitor(cfg *config.Config, db *store.DB, logger *zap.Logger) *retention.Janitor {
	return retention.NewJanitor(db, cfg.RetentionDays, logger)
}

func provideEventLog(b *bus.Bus) *api.EventLog {
	return api.NewEventLog(b, 100)
}

func provideHandler(db *store.DB, runner *monitor.Runner, events *api.EventLog) *api.Handler {
	return api.NewHandler(db, runner, events)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	lk *lock.Lock,
	runner *monitor.Runner,
	janitor *retention.Janitor,
	events *api.EventLog,
	db *store.DB,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Trim the ledger before the first cycle, then nightly.
			janitor.RunOnce()
			if err := janitor.Start(); err != nil {
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// No accounts yet is not fatal: the admin boundary can add
			// them and start the monitor over the control surface.
			if err := runner.Start(); err != nil {
				logger.Warn("monitor not started", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			runner.Stop()
			janitor.Stop()
			srv.Stop(ctx)
			events.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
