package clock

import (
	"sync"
	"time"
)

// Clock reports the current wall-clock time. Exporters read it when
// evaluating the interval trigger and when naming per-flush artifacts.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

type wallClock struct{}

// New returns a Clock backed by time.Now.
func New() Clock {
	return wallClock{}
}

func (wallClock) Now() time.Time {
	return time.Now()
}

// Mock is a manually advanced Clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a Mock starting at t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// Set moves the mock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = t
}

// Add advances the mock by d.
func (m *Mock) Add(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
}
