package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// PostgresInviteCodesRepo implements InviteCodesRepo over PostgreSQL.
type PostgresInviteCodesRepo struct {
	db *sql.DB
}

func NewPostgresInviteCodesRepo(db *sql.DB) *PostgresInviteCodesRepo {
	return &PostgresInviteCodesRepo{db: db}
}

var _ InviteCodesRepo = (*PostgresInviteCodesRepo)(nil)

const inviteCodeColumns = `
	id::text,
	code_hash,
	clinic_code,
	COALESCE(description, '') as description,
	max_uses,
	used_count,
	active,
	created_at,
	expires_at,
	created_by
`

func scanInviteCode(scan func(dest ...any) error) (*domain.InviteCode, error) {
	var code domain.InviteCode
	var maxUses sql.NullInt64
	var expiresAt sql.NullTime
	err := scan(
		&code.ID,
		&code.CodeHash,
		&code.ClinicCode,
		&code.Description,
		&maxUses,
		&code.UsedCount,
		&code.Active,
		&code.CreatedAt,
		&expiresAt,
		&code.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	if maxUses.Valid {
		m := int(maxUses.Int64)
		code.MaxUses = &m
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		code.ExpiresAt = &t
	}
	return &code, nil
}

func (r *PostgresInviteCodesRepo) Create(ctx context.Context, code *domain.InviteCode) (string, error) {
	if code == nil {
		return "", fmt.Errorf("invite code is required")
	}
	if code.CodeHash == "" || code.ClinicCode == "" {
		return "", fmt.Errorf("code_hash and clinic_code are required")
	}

	id := code.ID
	if id == "" {
		id = uuid.New().String()
	}

	var maxUses any
	if code.MaxUses != nil {
		maxUses = *code.MaxUses
	}
	var expiresAt any
	if code.ExpiresAt != nil {
		expiresAt = *code.ExpiresAt
	}

	var returnedID string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO invite_codes (id, code_hash, clinic_code, description, max_uses, active, expires_at, created_by)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text`,
		id,
		code.CodeHash,
		code.ClinicCode,
		code.Description,
		maxUses,
		code.Active,
		expiresAt,
		code.CreatedBy,
	).Scan(&returnedID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("invite code hash collision for clinic %q: %w", code.ClinicCode, ErrDuplicateCode)
		}
		return "", fmt.Errorf("failed to create invite code: %w", err)
	}
	return returnedID, nil
}

func (r *PostgresInviteCodesRepo) GetByHash(ctx context.Context, codeHash, clinicCode string) (*domain.InviteCode, error) {
	if codeHash == "" || clinicCode == "" {
		return nil, fmt.Errorf("code_hash and clinic_code are required")
	}

	query := `SELECT ` + inviteCodeColumns + ` FROM invite_codes WHERE code_hash = $1 AND clinic_code = $2`
	code, err := scanInviteCode(r.db.QueryRowContext(ctx, query, codeHash, clinicCode).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invite code: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}
	return code, nil
}

func (r *PostgresInviteCodesRepo) GetByID(ctx context.Context, id string) (*domain.InviteCode, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}

	query := `SELECT ` + inviteCodeColumns + ` FROM invite_codes WHERE id = $1::uuid`
	code, err := scanInviteCode(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invite code %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}
	return code, nil
}

func (r *PostgresInviteCodesRepo) List(ctx context.Context, filter InviteCodeFilters, page, size int) ([]*domain.InviteCode, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	where := []string{}
	args := []any{}
	argIdx := 1

	if filter.ClinicCode != "" {
		where = append(where, fmt.Sprintf("clinic_code = $%d", argIdx))
		args = append(args, filter.ClinicCode)
		argIdx++
	}

	// Status is derived: expiry wins over the active flag, exhausted counts
	// as inactive.
	switch filter.Status {
	case domain.InviteStatusActive:
		where = append(where,
			"active",
			"(expires_at IS NULL OR expires_at > now())",
			"(max_uses IS NULL OR used_count < max_uses)")
	case domain.InviteStatusInactive:
		where = append(where,
			"(NOT active OR (max_uses IS NOT NULL AND used_count >= max_uses))",
			"(expires_at IS NULL OR expires_at > now())")
	case domain.InviteStatusExpired:
		where = append(where, "expires_at IS NOT NULL AND expires_at <= now()")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM invite_codes %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invite codes: %w", err)
	}

	order := "created_at DESC"
	if filter.SortAsc {
		order = "created_at ASC"
	}
	query := fmt.Sprintf(`SELECT `+inviteCodeColumns+` FROM invite_codes %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		whereClause, order, argIdx, argIdx+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invite codes: %w", err)
	}
	defer rows.Close()

	codes := []*domain.InviteCode{}
	for rows.Next() {
		code, err := scanInviteCode(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invite code: %w", err)
		}
		codes = append(codes, code)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate invite codes: %w", err)
	}

	return codes, total, nil
}

func (r *PostgresInviteCodesRepo) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE invite_codes SET active = false WHERE id = $1::uuid`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate invite code: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invite code %q: %w", id, ErrNotFound)
	}
	return nil
}

// Consume guards and increments in a single UPDATE so cancellation or a
// concurrent consumer can never leave a half-applied count.
func (r *PostgresInviteCodesRepo) Consume(ctx context.Context, codeHash, clinicCode string, now time.Time) (*domain.InviteCode, error) {
	if codeHash == "" || clinicCode == "" {
		return nil, fmt.Errorf("code_hash and clinic_code are required")
	}

	query := `
		UPDATE invite_codes
		SET used_count = used_count + 1
		WHERE code_hash = $1
		  AND clinic_code = $2
		  AND active
		  AND (expires_at IS NULL OR expires_at > $3)
		  AND (max_uses IS NULL OR used_count < max_uses)
		RETURNING ` + inviteCodeColumns

	code, err := scanInviteCode(r.db.QueryRowContext(ctx, query, codeHash, clinicCode, now).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invite code: %w", ErrNotConsumable)
		}
		return nil, fmt.Errorf("failed to consume invite code: %w", err)
	}
	return code, nil
}
