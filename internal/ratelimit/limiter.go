// Package ratelimit implements fixed-window counting keyed by
// (action, client identity). The limiter instance is passed explicitly to the
// components that need it; there are no package-level singletons.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one CheckAndConsume call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts attempts in fixed windows. The first call in a new window
// allocates a fresh window starting at now; the count resets once the window
// elapses. Implementations must be safe under concurrent access to the same
// key with no lost updates.
type Limiter interface {
	CheckAndConsume(ctx context.Context, action, identity string, max int, window time.Duration) (Decision, error)
}

func key(action, identity string) string {
	return "ratelimit:" + action + ":" + identity
}
