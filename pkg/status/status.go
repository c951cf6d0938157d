// Package status is the UI-visible state of the facecam component: the
// lifecycle phase, the last error from any async boundary, loop counters
// and a bounded event log.
package status

import (
	"sync"
	"time"
)

// Phase is the component lifecycle phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading_models"
	PhaseReady     Phase = "ready"
	PhaseCapturing Phase = "capturing"
	PhaseDetecting Phase = "detecting"
	PhaseStopped   Phase = "stopped"
	PhaseError     Phase = "error"
)

// Sources of reported errors.
const (
	SourceModels  = "models"
	SourceCapture = "capture"
	SourceDetect  = "detect"
	SourceVideo   = "video"
)

// maxEvents bounds the event log.
const maxEvents = 100

// Stats mirrors the detection loop counters. Ticks counts ticks that
// reached the detector.
type Stats struct {
	Ticks       uint64        `json:"ticks"`
	Skipped     uint64        `json:"skipped"`
	Failures    uint64        `json:"failures"`
	Faces       int           `json:"faces"`
	LastLatency time.Duration `json:"last_latency_ns"`
}

// ErrorInfo is the last error reported from an async boundary.
type ErrorInfo struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Event is one entry of the event log.
type Event struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // phase, error, info
	Message string `json:"message"`
}

// Snapshot is a consistent copy of the board.
type Snapshot struct {
	// Seq increases by one on every change.
	Seq        uint64     `json:"seq"`
	Phase      Phase      `json:"phase"`
	ModelsOK   bool       `json:"models_ok"`
	StreamID   string     `json:"stream_id,omitempty"`
	LastError  *ErrorInfo `json:"last_error,omitempty"`
	Stats      Stats      `json:"stats"`
	UpdatedAt  time.Time  `json:"updated_at"`
	RecentLogs []Event    `json:"recent_logs,omitempty"`
}

// Board holds the status and notifies subscribers on every change.
type Board struct {
	// notifyMu orders delivery so subscribers see snapshots in Seq order.
	notifyMu sync.Mutex

	mu     sync.RWMutex
	snap   Snapshot
	events []Event
	subs   []func(Snapshot)
	now    func() time.Time
}

// NewBoard creates a board in the idle phase.
func NewBoard() *Board {
	b := &Board{now: time.Now, events: make([]Event, 0, maxEvents)}
	b.snap.Phase = PhaseIdle
	b.snap.UpdatedAt = b.now()
	return b
}

// Subscribe registers fn for every future change. fn runs on the
// updating goroutine, must not block and must not update the board.
func (b *Board) Subscribe(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// SetPhase moves to phase and logs the transition.
func (b *Board) SetPhase(p Phase) {
	b.update(func(s *Snapshot) { s.Phase = p }, Event{Type: "phase", Message: string(p)})
}

// SetModelsLoaded records the model load outcome.
func (b *Board) SetModelsLoaded(ok bool) {
	b.update(func(s *Snapshot) { s.ModelsOK = ok }, Event{})
}

// SetStream records the active stream id ("" when none).
func (b *Board) SetStream(id string) {
	b.update(func(s *Snapshot) { s.StreamID = id }, Event{})
}

// ReportError records err as the last error. When fatal is true the
// phase moves to error.
func (b *Board) ReportError(source string, err error, fatal bool) {
	if err == nil {
		return
	}
	info := &ErrorInfo{Source: source, Message: err.Error(), Time: b.now()}
	b.update(func(s *Snapshot) {
		s.LastError = info
		if fatal {
			s.Phase = PhaseError
		}
	}, Event{Type: "error", Message: source + ": " + err.Error()})
}

// ClearError drops the last error.
func (b *Board) ClearError() {
	b.update(func(s *Snapshot) { s.LastError = nil }, Event{})
}

// UpdateStats replaces the loop counters without logging.
func (b *Board) UpdateStats(st Stats) {
	b.update(func(s *Snapshot) { s.Stats = st }, Event{})
}

// Info appends a message to the event log.
func (b *Board) Info(msg string) {
	b.update(func(*Snapshot) {}, Event{Type: "info", Message: msg})
}

// Snapshot returns the current state with the event log.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.copyLocked()
}

// Phase returns the current phase.
func (b *Board) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Phase
}

func (b *Board) copyLocked() Snapshot {
	s := b.snap
	if b.snap.LastError != nil {
		e := *b.snap.LastError
		s.LastError = &e
	}
	s.RecentLogs = make([]Event, len(b.events))
	copy(s.RecentLogs, b.events)
	return s
}

func (b *Board) update(mutate func(*Snapshot), ev Event) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	mutate(&b.snap)
	b.snap.Seq++
	b.snap.UpdatedAt = b.now()
	if ev.Type != "" {
		ev.Time = b.snap.UpdatedAt.Format("15:04:05")
		b.events = append(b.events, ev)
		if len(b.events) > maxEvents {
			b.events = b.events[1:]
		}
	}
	snap := b.copyLocked()
	subs := make([]func(Snapshot), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
