// Package retention trims old rows out of the message ledger.
package retention

import (
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// purgeSpec runs the purge nightly, off the busy hours.
const purgeSpec = "0 3 * * *"

// Janitor purges pushed message records older than the retention window.
// It runs once at daemon startup and then on a daily schedule.
type Janitor struct {
	db     *store.DB
	logger *zap.Logger
	days   int
	cron   *cron.Cron
}

// NewJanitor creates a janitor with the given retention in days.
func NewJanitor(db *store.DB, days int, logger *zap.Logger) *Janitor {
	if days <= 0 {
		days = 7
	}
	return &Janitor{db: db, logger: logger, days: days}
}

// RunOnce performs a single purge pass.
func (j *Janitor) RunOnce() {
	deleted, err := j.db.PurgeOldMessageRecords(j.days)
	if err != nil {
		j.logger.Error("message record purge failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("message records purged",
			zap.Int64("deleted", deleted), zap.Int("retention_days", j.days))
	}
}

// Start schedules the daily purge.
func (j *Janitor) Start() error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(purgeSpec, j.RunOnce); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a purge in flight.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}
