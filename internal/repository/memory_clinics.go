package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// MemoryClinicsRepo backs local dev and tests when no database is available.
type MemoryClinicsRepo struct {
	mu        sync.Mutex
	byCode    map[string]*domain.Clinic
	sequences map[string]int // region|type -> last allocated
}

func NewMemoryClinicsRepo() *MemoryClinicsRepo {
	return &MemoryClinicsRepo{
		byCode:    make(map[string]*domain.Clinic),
		sequences: make(map[string]int),
	}
}

var _ ClinicsRepo = (*MemoryClinicsRepo)(nil)

func (r *MemoryClinicsRepo) GetByCode(_ context.Context, code string) (*domain.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clinic, ok := r.byCode[code]
	if !ok {
		return nil, fmt.Errorf("clinic %q: %w", code, ErrNotFound)
	}
	copied := *clinic
	return &copied, nil
}

func (r *MemoryClinicsRepo) Create(_ context.Context, clinic *domain.Clinic) (string, error) {
	if clinic == nil || clinic.Code == "" || clinic.Name == "" {
		return "", fmt.Errorf("clinic_code and clinic_name are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[clinic.Code]; exists {
		return "", fmt.Errorf("clinic code %q taken: %w", clinic.Code, ErrDuplicateCode)
	}
	copied := *clinic
	copied.ClinicID = uuid.New().String()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	r.byCode[copied.Code] = &copied
	return copied.ClinicID, nil
}

func (r *MemoryClinicsRepo) NextSequence(_ context.Context, region domain.Region, clinicType domain.ClinicType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(region) + "|" + string(clinicType)
	r.sequences[key]++
	return r.sequences[key], nil
}

func (r *MemoryClinicsRepo) SetActive(_ context.Context, code string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clinic, ok := r.byCode[code]
	if !ok {
		return fmt.Errorf("clinic %q: %w", code, ErrNotFound)
	}
	clinic.Active = active
	return nil
}

func (r *MemoryClinicsRepo) List(_ context.Context, filter ClinicFilters, page, size int) ([]*domain.Clinic, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []*domain.Clinic{}
	for _, clinic := range r.byCode {
		if filter.Region != "" && clinic.Region != filter.Region {
			continue
		}
		if filter.Type != "" && clinic.Type != filter.Type {
			continue
		}
		if filter.Active != nil && clinic.Active != *filter.Active {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(clinic.Name), strings.ToLower(filter.Search)) {
			continue
		}
		copied := *clinic
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })

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
