// Package progress carries run activity out of the orchestrator: a typed
// event stream for live consumers plus an append-only structured log kept
// for the final result.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
)

// EventType identifies what a progress event reports.
type EventType string

const (
	// EventProgressInit announces the initial step estimate for a run.
	EventProgressInit EventType = "progress-init"
	// EventActivity reports a stage starting or finishing.
	EventActivity EventType = "activity"
	// EventActivityDelta reports incremental output within a stage.
	EventActivityDelta EventType = "activity-delta"
	// EventDepthDelta reports the start of a new research iteration.
	EventDepthDelta EventType = "depth-delta"
	// EventWarning reports a recoverable problem.
	EventWarning EventType = "warning"
	// EventError reports a failure; it is terminal when no report follows.
	EventError EventType = "error"
	// EventComplete is the terminal event of a successful run.
	EventComplete EventType = "complete"
)

// Content is the payload every event carries. On progress-init only
// MaxDepth and TotalSteps are meaningful.
type Content struct {
	Message        string    `json:"message,omitempty"`
	CurrentDepth   int       `json:"currentDepth"`
	MaxDepth       int       `json:"maxDepth"`
	CompletedSteps int       `json:"completedSteps"`
	TotalSteps     int       `json:"totalSteps"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event is one progress notification. IDs are unique per event.
type Event struct {
	Type    EventType `json:"type"`
	ID      string    `json:"id"`
	Content Content   `json:"content"`
}

// Sink receives progress events. Emit must not block the research loop.
type Sink interface {
	Emit(Event)
}

// ChannelSink forwards events to a channel, dropping events the consumer
// is too slow to take.
type ChannelSink struct {
	ch chan Event
}

var _ Sink = (*ChannelSink)(nil)

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Emit sends the event without blocking; a full buffer drops it.
func (s *ChannelSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
		log.Warn("progress: dropping %s event, consumer too slow", e.Type)
	}
}

// Close closes the event channel. Call only after the run has finished.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// CaptureSink records every emitted event. It is safe for concurrent use.
type CaptureSink struct {
	mu     sync.Mutex
	events []Event
}

var _ Sink = (*CaptureSink)(nil)

// Emit records the event.
func (s *CaptureSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the recorded events in emission order.
func (s *CaptureSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Last returns the most recent event, or a zero Event when none exist.
func (s *CaptureSink) Last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return Event{}
	}
	return s.events[len(s.events)-1]
}

// Snapshot is the orchestrator state an event reports.
type Snapshot struct {
	CurrentDepth   int
	MaxDepth       int
	CompletedSteps int
	TotalSteps     int
	QueueLength    int
}

// Updater emits progress events and keeps the append-only run log. A nil
// sink degrades to logging only.
type Updater struct {
	sink Sink

	mu      sync.Mutex
	entries []research.LogEntry
}

// NewUpdater creates an updater for the given sink. sink may be nil.
func NewUpdater(sink Sink) *Updater {
	return &Updater{sink: sink}
}

// AddLogEntry appends one entry to the run log. A zero timestamp is filled
// with the current time.
func (u *Updater) AddLogEntry(entry research.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	u.mu.Lock()
	u.entries = append(u.entries, entry)
	u.mu.Unlock()

	switch entry.Status {
	case research.StatusWarning:
		log.Warn("[%s] %s", entry.Type, entry.Message)
	case research.StatusError:
		log.Error("[%s] %s", entry.Type, entry.Message)
	default:
		log.Info("[%s] %s", entry.Type, entry.Message)
	}
}

// Entries returns a copy of the run log in append order.
func (u *Updater) Entries() []research.LogEntry {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]research.LogEntry, len(u.entries))
	copy(out, u.entries)
	return out
}

// Init announces the initial step estimate for the run.
func (u *Updater) Init(maxDepth, totalSteps int) {
	u.emit(Event{
		Type: EventProgressInit,
		ID:   uuid.NewString(),
		Content: Content{
			MaxDepth:   maxDepth,
			TotalSteps: totalSteps,
			Timestamp:  time.Now(),
		},
	})
}

// Update emits one event carrying the current run snapshot. A complete
// event reports totalSteps equal to completedSteps so consumers land on
// 100%; every other event reports the best-effort estimate of completed
// steps plus one block of work per queued question plus the final report.
func (u *Updater) Update(eventType EventType, message string, snap Snapshot) {
	total := snap.CompletedSteps + snap.QueueLength + 1
	if eventType == EventComplete {
		total = snap.CompletedSteps
	}
	if total < snap.CompletedSteps {
		total = snap.CompletedSteps
	}
	u.emit(Event{
		Type: eventType,
		ID:   uuid.NewString(),
		Content: Content{
			Message:        message,
			CurrentDepth:   snap.CurrentDepth,
			MaxDepth:       snap.MaxDepth,
			CompletedSteps: snap.CompletedSteps,
			TotalSteps:     total,
			Timestamp:      time.Now(),
		},
	})
}

func (u *Updater) emit(e Event) {
	if u.sink == nil {
		log.Debug("progress: %s %s", e.Type, e.Content.Message)
		return
	}
	u.sink.Emit(e)
}
