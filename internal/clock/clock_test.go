package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_ReturnsWallTime(t *testing.T) {
	clk := New()

	before := time.Now()
	now := clk.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestMock_SetAndAdd(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m := NewMock(start)
	assert.Equal(t, start, m.Now())

	m.Add(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), m.Now())

	later := start.Add(time.Hour)
	m.Set(later)
	assert.Equal(t, later, m.Now())
}

func TestMock_ImplementsClock(t *testing.T) {
	var _ Clock = NewMock(time.Time{})
}
