package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-process fallback used when redis is not
// configured (local dev, tests). Counters live behind one mutex.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memWindow
	now     func() time.Time
}

type memWindow struct {
	start time.Time
	count int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*memWindow),
		now:     time.Now,
	}
}

var _ Limiter = (*MemoryLimiter)(nil)

func (l *MemoryLimiter) CheckAndConsume(_ context.Context, action, identity string, max int, window time.Duration) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key(action, identity)

	w, ok := l.windows[k]
	if !ok || now.After(w.start.Add(window)) {
		w = &memWindow{start: now}
		l.windows[k] = w
	}
	w.count++

	remaining := max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= max,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   w.start.Add(window),
	}, nil
}
