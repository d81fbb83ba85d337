package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// MemoryAuditRepo keeps the attempt trail in memory for dev and tests.
type MemoryAuditRepo struct {
	mu      sync.Mutex
	records []domain.AttemptRecord
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

var _ AuditRepo = (*MemoryAuditRepo)(nil)

func (r *MemoryAuditRepo) RecordAttempt(_ context.Context, record *domain.AttemptRecord) error {
	if record == nil || record.Action == "" {
		return fmt.Errorf("action is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	if copied.ID == "" {
		copied.ID = uuid.New().String()
	}
	if copied.Actor == "" {
		copied.Actor = domain.AnonymousActor
	}
	if copied.Timestamp.IsZero() {
		copied.Timestamp = time.Now()
	}
	r.records = append(r.records, copied)
	return nil
}

func (r *MemoryAuditRepo) RecentByIP(_ context.Context, clientIP string, since time.Time, limit int) ([]domain.AttemptRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []domain.AttemptRecord{}
	// newest first
	for i := len(r.records) - 1; i >= 0 && len(matched) < limit; i-- {
		record := r.records[i]
		if record.ClientIP == clientIP && !record.Timestamp.Before(since) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// All returns every record, oldest first. Test helper.
func (r *MemoryAuditRepo) All() []domain.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AttemptRecord, len(r.records))
	copy(out, r.records)
	return out
}
