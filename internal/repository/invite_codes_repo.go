package repository

import (
	"context"
	"time"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// InviteCodesRepo is the persistence surface for invite codes. Only hashes are
// stored; the repo never sees a plaintext code.
type InviteCodesRepo interface {
	// Create inserts a new invite code (hash already computed). Returns the
	// generated id, or ErrDuplicateCode on the (code_hash, clinic_code)
	// unique constraint.
	Create(ctx context.Context, code *domain.InviteCode) (string, error)

	// GetByHash fetches the code for (code_hash, clinic_code).
	GetByHash(ctx context.Context, codeHash, clinicCode string) (*domain.InviteCode, error)

	// GetByID fetches one code by id (ownership checks on deactivation).
	GetByID(ctx context.Context, id string) (*domain.InviteCode, error)

	// List queries codes with paging, scoped to a clinic. Status is the
	// derived status (active|inactive|expired).
	List(ctx context.Context, filter InviteCodeFilters, page, size int) ([]*domain.InviteCode, int, error)

	// Deactivate soft-deactivates a code. Idempotent: deactivating an already
	// inactive code succeeds.
	Deactivate(ctx context.Context, id string) error

	// Consume atomically increments used_count for a code that is active, not
	// expired at now and under its usage cap, returning the updated row.
	// Returns ErrNotConsumable when no row qualifies; the increment and the
	// guards are one store round trip, so concurrent consumers of a
	// max_uses=1 code cannot both succeed.
	Consume(ctx context.Context, codeHash, clinicCode string, now time.Time) (*domain.InviteCode, error)
}

// InviteCodeFilters narrows List results.
type InviteCodeFilters struct {
	ClinicCode string
	Status     string // active | inactive | expired (derived)
	SortAsc    bool   // default: created_at descending
}
