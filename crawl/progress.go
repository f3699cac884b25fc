package crawl

import (
	"sync"
	"time"
)

// State is a step of the session state machine.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateGuardingCaptcha
	StateExtracting
	StateRecording
	StateDelaying
	StateDone
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateNavigating:      "navigating",
	StateGuardingCaptcha: "guarding_captcha",
	StateExtracting:      "extracting",
	StateRecording:       "recording",
	StateDelaying:        "delaying",
	StateDone:            "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time view of a running session.
type Snapshot struct {
	State      State     `json:"state"`
	Mode       string    `json:"mode"`
	CurrentURL string    `json:"currentUrl,omitempty"`
	Category   string    `json:"category,omitempty"`
	Categories int       `json:"categories,omitempty"`
	CategoryNo int       `json:"categoryNo,omitempty"`
	Planned    int       `json:"planned"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	Output     string    `json:"output,omitempty"`
	Fatal      string    `json:"fatal,omitempty"`
}

// Progress publishes the session's state to concurrent readers such as the
// status API. The session is its only writer.
type Progress struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewProgress creates an idle Progress.
func NewProgress() *Progress {
	return &Progress{}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Progress) update(fn func(*Snapshot)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	fn(&p.snap)
	p.mu.Unlock()
}

func (p *Progress) setState(s State) {
	p.update(func(snap *Snapshot) { snap.State = s })
}
