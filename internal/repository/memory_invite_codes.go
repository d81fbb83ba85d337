package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// MemoryInviteCodesRepo backs local dev and tests when no database is
// available. The mutex makes Consume an atomic check-and-increment, matching
// the postgres guarded UPDATE.
type MemoryInviteCodesRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.InviteCode
}

func NewMemoryInviteCodesRepo() *MemoryInviteCodesRepo {
	return &MemoryInviteCodesRepo{byID: make(map[string]*domain.InviteCode)}
}

var _ InviteCodesRepo = (*MemoryInviteCodesRepo)(nil)

func (r *MemoryInviteCodesRepo) Create(_ context.Context, code *domain.InviteCode) (string, error) {
	if code == nil || code.CodeHash == "" || code.ClinicCode == "" {
		return "", fmt.Errorf("code_hash and clinic_code are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.CodeHash == code.CodeHash && existing.ClinicCode == code.ClinicCode {
			return "", fmt.Errorf("invite code hash collision for clinic %q: %w", code.ClinicCode, ErrDuplicateCode)
		}
	}
	copied := *code
	if copied.ID == "" {
		copied.ID = uuid.New().String()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	r.byID[copied.ID] = &copied
	return copied.ID, nil
}

func (r *MemoryInviteCodesRepo) GetByHash(_ context.Context, codeHash, clinicCode string) (*domain.InviteCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.byID {
		if code.CodeHash == codeHash && code.ClinicCode == clinicCode {
			copied := *code
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("invite code: %w", ErrNotFound)
}

func (r *MemoryInviteCodesRepo) GetByID(_ context.Context, id string) (*domain.InviteCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("invite code %q: %w", id, ErrNotFound)
	}
	copied := *code
	return &copied, nil
}

func (r *MemoryInviteCodesRepo) List(_ context.Context, filter InviteCodeFilters, page, size int) ([]*domain.InviteCode, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	matched := []*domain.InviteCode{}
	for _, code := range r.byID {
		if filter.ClinicCode != "" && code.ClinicCode != filter.ClinicCode {
			continue
		}
		if filter.Status != "" && code.Status(now) != filter.Status {
			continue
		}
		copied := *code
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.SortAsc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryInviteCodesRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("invite code %q: %w", id, ErrNotFound)
	}
	code.Active = false
	return nil
}

func (r *MemoryInviteCodesRepo) Consume(_ context.Context, codeHash, clinicCode string, now time.Time) (*domain.InviteCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.byID {
		if code.CodeHash != codeHash || code.ClinicCode != clinicCode {
			continue
		}
		if !code.Active || code.Expired(now) || code.Exhausted() {
			return nil, fmt.Errorf("invite code: %w", ErrNotConsumable)
		}
		code.UsedCount++
		copied := *code
		return &copied, nil
	}
	return nil, fmt.Errorf("invite code: %w", ErrNotConsumable)
}
