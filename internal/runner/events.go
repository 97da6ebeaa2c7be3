package runner

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/scrollshot/internal/session"
)

// Host-level event types, alongside the session's own.
const (
	EventStarted  session.EventType = "started"
	EventFinished session.EventType = "finished"
	EventFailed   session.EventType = "failed"
)

// Event is a session event stamped with the session it belongs to.
type Event struct {
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
	session.Event
	Error  string `json:"error,omitempty"`
	Output string `json:"output,omitempty"`
}

// EventLog keeps the most recent events and fans them out on a buffered
// channel. Emit never blocks: when no one drains the channel, events are
// still retained in the recent list.
type EventLog struct {
	mu      sync.RWMutex
	recent  []Event
	maxSize int
	ch      chan Event
}

// NewEventLog creates a log that retains maxEvents and buffers buffer events.
func NewEventLog(maxEvents, buffer int) *EventLog {
	return &EventLog{
		recent:  make([]Event, 0, maxEvents),
		maxSize: maxEvents,
		ch:      make(chan Event, buffer),
	}
}

// Emit records ev and offers it to the channel (non-blocking).
func (l *EventLog) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Err != nil && ev.Error == "" {
		ev.Error = ev.Err.Error()
	}

	l.mu.Lock()
	l.recent = append(l.recent, ev)
	if len(l.recent) > l.maxSize {
		l.recent = l.recent[len(l.recent)-l.maxSize:]
	}
	l.mu.Unlock()

	select {
	case l.ch <- ev:
	default:
	}
}

// Events returns the channel for live events.
func (l *EventLog) Events() <-chan Event {
	return l.ch
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]Event, n)
	copy(out, l.recent[len(l.recent)-n:])
	return out
}
