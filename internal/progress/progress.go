// Package progress tracks the state of a long-running bulk analysis so the
// dashboard can poll or stream it.
package progress

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of the current run.
type Status string

const (
	StatusIdle       Status = "Idle"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
)

// State is a snapshot of the tracker.
type State struct {
	RunID        string `json:"run_id,omitempty"`
	Total        int    `json:"total"`
	Current      int    `json:"current"`
	Status       Status `json:"status"`
	Message      string `json:"message"`
	LastAnalyzed string `json:"last_analyzed"`
	Timestamp    int64  `json:"timestamp"`
}

// Tracker is safe for concurrent use. Subscribers are notified on every
// change; a slow subscriber only ever sees the latest state.
type Tracker struct {
	mu    sync.Mutex
	state State
	subs  map[chan State]struct{}
	now   func() time.Time
}

// New returns an idle tracker.
func New() *Tracker {
	return &Tracker{
		state: State{Status: StatusIdle},
		subs:  make(map[chan State]struct{}),
		now:   time.Now,
	}
}

// Start resets the tracker for a run of total items and returns the run ID.
func (t *Tracker) Start(total int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{
		RunID:   uuid.NewString(),
		Total:   total,
		Status:  StatusProcessing,
		Message: "Starting analysis...",
	}
	t.publish()
	log.Printf("Progress initialized: %d items to process", total)
	return t.state.RunID
}

// Increment advances the counter. Empty arguments keep the previous values.
func (t *Tracker) Increment(message, lastAnalyzed string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Current++
	if message != "" {
		t.state.Message = message
	}
	if lastAnalyzed != "" {
		t.state.LastAnalyzed = lastAnalyzed
	}
	t.publish()
}

// Complete marks the run finished.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = StatusCompleted
	t.state.Message = "Analysis complete!"
	t.state.Current = t.state.Total
	t.publish()
	log.Printf("Progress completed: %d/%d", t.state.Current, t.state.Total)
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe returns a channel receiving the state after each change, and a
// function that unsubscribes and closes it.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with mu held.
func (t *Tracker) publish() {
	t.state.Timestamp = t.now().Unix()
	for ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		ch <- t.state
	}
}
