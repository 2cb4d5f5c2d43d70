package collector

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase of the current collector job
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseUpdating     Phase = "updating"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// Progress is an immutable snapshot of a collector job. HTTP handlers read
// the latest snapshot without touching collector state.
type Progress struct {
	Phase      Phase      `json:"phase"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Current    string     `json:"current,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Percent is 0..100 completion
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return 100 * float64(p.Done) / float64(p.Total)
}

// tracker publishes Progress snapshots. Mutations are serialized with mu;
// readers load the pointer lock-free.
type tracker struct {
	mu      sync.Mutex
	current Progress
	snap    atomic.Pointer[Progress]
}

func newTracker() *tracker {
	t := &tracker{}
	t.current = Progress{Phase: PhaseIdle}
	t.publish()
	return t
}

func (t *tracker) publish() {
	snap := t.current
	t.snap.Store(&snap)
}

// Snapshot returns the latest published progress
func (t *tracker) Snapshot() Progress {
	return *t.snap.Load()
}

func (t *tracker) start(phase Phase, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.current = Progress{Phase: phase, Total: total, StartedAt: &now}
	t.publish()
}

func (t *tracker) step(code string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Done++
	t.current.Current = code
	if ok {
		t.current.Succeeded++
	} else {
		t.current.Failed++
	}
	t.publish()
}

func (t *tracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.current.FinishedAt = &now
	t.current.Current = ""
	if err != nil {
		t.current.Phase = PhaseFailed
		t.current.LastError = err.Error()
	} else {
		t.current.Phase = PhaseDone
	}
	t.publish()
}
