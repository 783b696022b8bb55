package conversation

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxProgressSteps bounds the steps kept per session
const DefaultMaxProgressSteps = 50

// ProgressStep is one entry in a session's processing log
type ProgressStep struct {
	Step   string    `json:"step"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// ProgressLog records what the engine is doing for each session so clients can poll it
type ProgressLog struct {
	mu       sync.Mutex
	maxSteps int
	sessions *lru.Cache[string, []ProgressStep]
	now      func() time.Time
}

// NewProgressLog creates a progress log bounded in sessions and steps per session
func NewProgressLog(maxSessions, maxSteps int) *ProgressLog {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxProgressSteps
	}
	return &ProgressLog{
		maxSteps: maxSteps,
		sessions: newSessionCache[[]ProgressStep](maxSessions),
		now:      time.Now,
	}
}

// Record appends a step for the session. A nil log or empty session is ignored.
func (p *ProgressLog) Record(sessionID, step, detail string) {
	if p == nil || sessionID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	steps, _ := p.sessions.Get(sessionID)
	steps = append(steps, ProgressStep{Step: step, Detail: detail, At: p.now()})
	if over := len(steps) - p.maxSteps; over > 0 {
		steps = append([]ProgressStep(nil), steps[over:]...)
	}
	p.sessions.Add(sessionID, steps)
}

// Snapshot returns a copy of the session's steps, oldest first
func (p *ProgressLog) Snapshot(sessionID string) []ProgressStep {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	steps, ok := p.sessions.Peek(sessionID)
	if !ok {
		return []ProgressStep{}
	}
	return append([]ProgressStep(nil), steps...)
}

// Reset drops the session's steps
func (p *ProgressLog) Reset(sessionID string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions.Remove(sessionID)
}
