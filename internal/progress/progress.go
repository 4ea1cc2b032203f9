// Package progress defines the progress sink shared by long-running phases.
package progress

import "sync"

// Phase labels reported to observers.
const (
	PhaseDownloading = "Downloading…"
	PhasePatching    = "Patching…"
	PhaseUnpacking   = "Unpacking…"
)

// Event describes the current state of a long-running phase.
type Event struct {
	Phase      string  `json:"phase"`
	Percent    float64 `json:"percent"` // 0-100
	BytesTotal int64   `json:"bytesTotal"`
	BytesDone  int64   `json:"bytesDone"`
	Message    string  `json:"message,omitempty"`
}

// Callback receives progress updates. Each install call carries its own
// callback so concurrent installs remain isolated.
type Callback func(Event)

// Discard is a no-op callback for callers that do not observe progress.
func Discard(Event) {}

// Tracker adapts a Callback into a single-writer, many-reader current value.
// Percent is clamped monotonically non-decreasing within one phase and the
// value is reset when the phase changes.
type Tracker struct {
	mu      sync.Mutex
	cb      Callback
	current Event
}

func NewTracker(cb Callback) *Tracker {
	if cb == nil {
		cb = Discard
	}
	return &Tracker{cb: cb}
}

// BeginPhase resets the tracked value for a new phase.
func (t *Tracker) BeginPhase(phase string) {
	t.mu.Lock()
	t.current = Event{Phase: phase}
	ev := t.current
	t.mu.Unlock()
	t.cb(ev)
}

// Report publishes progress for the active phase. Regressing percentages are
// ignored so observers always see a non-decreasing value.
func (t *Tracker) Report(done, total int64) {
	t.mu.Lock()
	pct := t.current.Percent
	if total > 0 {
		p := float64(done) / float64(total) * 100
		if p > 100 {
			p = 100
		}
		if p > pct {
			pct = p
		}
	}
	t.current.Percent = pct
	t.current.BytesDone = done
	t.current.BytesTotal = total
	ev := t.current
	t.mu.Unlock()
	t.cb(ev)
}

// EndPhase clears the phase label and percentage between phases.
func (t *Tracker) EndPhase() {
	t.mu.Lock()
	t.current = Event{}
	ev := t.current
	t.mu.Unlock()
	t.cb(ev)
}

// Current returns the most recently published event.
func (t *Tracker) Current() Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
