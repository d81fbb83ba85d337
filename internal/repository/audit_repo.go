package repository

import (
	"context"
	"time"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// AuditRepo is the append-only attempt trail. RecordAttempt must be durable
// before the API response is returned, so implementations write synchronously.
type AuditRepo interface {
	// RecordAttempt appends one record. Records are immutable once written.
	RecordAttempt(ctx context.Context, record *domain.AttemptRecord) error

	// RecentByIP returns attempts from one client IP since the given time,
	// newest first, capped at limit. Feeds the anomaly scan.
	RecentByIP(ctx context.Context, clientIP string, since time.Time, limit int) ([]domain.AttemptRecord, error)
}
