package canvas

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log is the ordered in-memory record of everything drawn on the board.
// Replaying its snapshot onto an empty raster in order reproduces the
// current surface exactly; there is no other source of truth.
type Log struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

func NewLog(limit int) *Log {
	if limit < 1 {
		limit = 1
	}
	return &Log{limit: limit}
}

// Append finalizes the event (id, server timestamp) and inserts it at the
// tail. A clear event replaces the whole log with just itself: history
// before a clear can never influence replay. The finalized event is
// returned for broadcast.
func (l *Log) Append(ev Event) Event {
	ev.Normalize()
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Kind == KindClear {
		l.events = []Event{ev}
		return ev
	}

	l.events = append(l.events, ev)
	l.evictLocked()
	return ev
}

// evictLocked drops the oldest non-clear events beyond the retention limit.
// A leading clear survives eviction: it is the only marker clients can rely
// on to reset state deterministically.
func (l *Log) evictLocked() {
	for len(l.events) > l.limit {
		if l.events[0].Kind == KindClear {
			l.events = append(l.events[:1], l.events[2:]...)
		} else {
			l.events = l.events[1:]
		}
	}
}

// Snapshot returns a copy of the current log content in insertion order.
func (l *Log) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
