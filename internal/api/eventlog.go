package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/bus"
)

// EventEntry is one recorded bus event, as served by /api/events.
type EventEntry struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail"`
}

// EventLog keeps a bounded in-memory history of bus events for the
// control surface. Oldest entries fall off the front.
type EventLog struct {
	mu      sync.Mutex
	entries []EventEntry
	max     int
	unsub   func()
}

// NewEventLog subscribes to every bus event and records up to max entries.
func NewEventLog(b *bus.Bus, max int) *EventLog {
	if max <= 0 {
		max = 100
	}
	l := &EventLog{max: max}

	ch, unsub := b.Subscribe("", 256)
	l.unsub = unsub
	go func() {
		for evt := range ch {
			l.record(evt)
		}
	}()
	return l
}

func (l *EventLog) record(evt bus.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, EventEntry{
		ID:     uuid.NewString(),
		Kind:   evt.Kind,
		At:     evt.Timestamp,
		Detail: fmt.Sprintf("%v", evt.Payload),
	})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Recent returns the recorded entries, newest first.
func (l *EventLog) Recent() []EventEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]EventEntry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Close unsubscribes from the bus.
func (l *EventLog) Close() {
	if l.unsub != nil {
		l.unsub()
	}
}
