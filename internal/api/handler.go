// Package api exposes the daemon's HTTP control surface. The admin UI is
// an external collaborator; these endpoints are its boundary.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/monitor"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
)

// Handler serves status, event history and monitor start/stop.
type Handler struct {
	db     *store.DB
	runner *monitor.Runner
	events *EventLog
}

// NewHandler creates the control-surface handler.
func NewHandler(db *store.DB, runner *monitor.Runner, events *EventLog) *Handler {
	return &Handler{db: db, runner: runner, events: events}
}

// Register mounts the routes on the given engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/api/status", h.status)
	r.GET("/api/events", h.listEvents)
	r.POST("/api/monitor/start", h.startMonitor)
	r.POST("/api/monitor/stop", h.stopMonitor)
}

func (h *Handler) status(c *gin.Context) {
	accounts, err := h.db.CountAccounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	unpushed, err := h.db.CountUnpushed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snap := h.runner.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"monitor_running": snap.Running,
		"monitor_state":   snap.State,
		"cycles":          snap.Cycles,
		"pushed":          snap.Pushed,
		"push_failures":   snap.Failures,
		"last_cycle":      snap.LastCycle,
		"accounts":        accounts,
		"unpushed":        unpushed,
	})
}

func (h *Handler) listEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.events.Recent()})
}

func (h *Handler) startMonitor(c *gin.Context) {
	if err := h.runner.Start(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, monitor.ErrNoAccounts) || errors.Is(err, monitor.ErrStoreNotReady) {
			code = http.StatusConflict
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitor_running": true})
}

func (h *Handler) stopMonitor(c *gin.Context) {
	h.runner.Stop()
	c.JSON(http.StatusOK, gin.H{"monitor_running": false})
}
