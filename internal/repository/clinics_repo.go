package repository

import (
	"context"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// ClinicsRepo is the persistence surface the code engine needs for clinics.
// Strongly typed domain models, no map[string]any.
type ClinicsRepo interface {
	// GetByCode fetches a clinic by its clinic code.
	GetByCode(ctx context.Context, code string) (*domain.Clinic, error)

	// Create inserts a new clinic. Returns the generated clinic_id, or
	// ErrDuplicateCode when the clinic code is already taken.
	Create(ctx context.Context, clinic *domain.Clinic) (string, error)

	// NextSequence allocates the next sequence number for (region, type).
	// Allocation must be atomic: two concurrent calls never receive the same
	// number.
	NextSequence(ctx context.Context, region domain.Region, clinicType domain.ClinicType) (int, error)

	// SetActive soft-(de)activates a clinic. Clinics are never deleted.
	SetActive(ctx context.Context, code string, active bool) error

	// List queries clinics with paging.
	List(ctx context.Context, filter ClinicFilters, page, size int) ([]*domain.Clinic, int, error)
}

// ClinicFilters narrows List results.
type ClinicFilters struct {
	Region domain.Region
	Type   domain.ClinicType
	Active *bool
	Search string // clinic_name, fuzzy
}
