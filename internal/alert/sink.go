// Package alert fans anomaly reports out to ops. Raising an alert is
// fire-and-forget from the request path: sinks may fail or be slow without
// affecting validation latency or outcome.
package alert

import (
	"context"
	"time"
)

// Alert is one anomaly notification.
type Alert struct {
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	ClientIP string         `json:"client_ip,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	RaisedAt time.Time      `json:"raised_at"`
}

// Sink delivers alerts somewhere ops will see them.
type Sink interface {
	Raise(ctx context.Context, a Alert) error
}

// Multi fans one alert out to several sinks; the first error is returned but
// every sink is attempted.
type Multi []Sink

func (m Multi) Raise(ctx context.Context, a Alert) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Raise(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
