package publish

import (
	"sync"
	"time"
)

// Cooldown suppresses repeats of the same key within a window. The extraction
// pipeline fires big-win callbacks on every qualifying frame; alert consumers
// use this to decide which of them to forward.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewCooldown creates a cooldown gate.
func NewCooldown(window time.Duration) *Cooldown {
	if window < 0 {
		window = 0
	}
	return &Cooldown{window: window, last: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether key may fire now and, if so, starts its window.
func (c *Cooldown) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if t, ok := c.last[key]; ok && now.Sub(t) < c.window {
		return false
	}
	c.last[key] = now
	return true
}

// Forget clears the window of key.
func (c *Cooldown) Forget(key string) {
	c.mu.Lock()
	delete(c.last, key)
	c.mu.Unlock()
}
