package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogical_Advance(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := NewLogical(start, 0)

	assert.Equal(t, start, c.Now())

	next := c.Advance()
	assert.Equal(t, start.Add(DefaultStep), next)
	assert.Equal(t, start.Add(7*24*time.Hour), next)
	assert.Equal(t, next, c.Now())
}

func TestLogical_CustomStep(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := NewLogical(start, 24*time.Hour)
	c.Advance()
	c.Advance()
	assert.Equal(t, start.Add(48*time.Hour), c.Now())
}

func TestLogical_ConcurrentAdvance(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := NewLogical(start, time.Hour)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance()
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(50*time.Hour), c.Now())
}
