package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// PostgresClinicsRepo implements ClinicsRepo over PostgreSQL.
type PostgresClinicsRepo struct {
	db *sql.DB
}

func NewPostgresClinicsRepo(db *sql.DB) *PostgresClinicsRepo {
	return &PostgresClinicsRepo{db: db}
}

var _ ClinicsRepo = (*PostgresClinicsRepo)(nil)

const clinicColumns = `
	clinic_id::text,
	clinic_code,
	clinic_name,
	clinic_type,
	region,
	COALESCE(address, '') as address,
	COALESCE(phone_sealed, '') as phone_sealed,
	active,
	created_by,
	created_at
`

func (r *PostgresClinicsRepo) GetByCode(ctx context.Context, code string) (*domain.Clinic, error) {
	if code == "" {
		return nil, fmt.Errorf("clinic code is required")
	}

	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE clinic_code = $1`

	var clinic domain.Clinic
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&clinic.ClinicID,
		&clinic.Code,
		&clinic.Name,
		&clinic.Type,
		&clinic.Region,
		&clinic.Address,
		&clinic.Phone,
		&clinic.Active,
		&clinic.CreatedBy,
		&clinic.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("clinic %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return &clinic, nil
}

func (r *PostgresClinicsRepo) Create(ctx context.Context, clinic *domain.Clinic) (string, error) {
	if clinic == nil {
		return "", fmt.Errorf("clinic is required")
	}
	if clinic.Code == "" || clinic.Name == "" {
		return "", fmt.Errorf("clinic_code and clinic_name are required")
	}

	var clinicID string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO clinics (clinic_code, clinic_name, clinic_type, region, address, phone_sealed, active, created_by)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		 RETURNING clinic_id::text`,
		clinic.Code,
		clinic.Name,
		string(clinic.Type),
		string(clinic.Region),
		clinic.Address,
		clinic.Phone,
		clinic.Active,
		clinic.CreatedBy,
	).Scan(&clinicID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("clinic code %q taken: %w", clinic.Code, ErrDuplicateCode)
		}
		return "", fmt.Errorf("failed to create clinic: %w", err)
	}
	return clinicID, nil
}

// NextSequence allocates in a single round trip. The upsert takes a row lock,
// so two concurrent issuances for the same (region, type) serialize and never
// see the same number.
func (r *PostgresClinicsRepo) NextSequence(ctx context.Context, region domain.Region, clinicType domain.ClinicType) (int, error) {
	var seq int
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO clinic_code_sequences (region, clinic_type, next_seq)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (region, clinic_type)
		 DO UPDATE SET next_seq = clinic_code_sequences.next_seq + 1
		 RETURNING next_seq`,
		string(region), string(clinicType),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate clinic code sequence: %w", err)
	}
	return seq, nil
}

func (r *PostgresClinicsRepo) SetActive(ctx context.Context, code string, active bool) error {
	if code == "" {
		return fmt.Errorf("clinic code is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE clinics SET active = $2 WHERE clinic_code = $1`,
		code, active,
	)
	if err != nil {
		return fmt.Errorf("failed to set clinic active flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("clinic %q: %w", code, ErrNotFound)
	}
	return nil
}

func (r *PostgresClinicsRepo) List(ctx context.Context, filter ClinicFilters, page, size int) ([]*domain.Clinic, int, error) {
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

	if filter.Region != "" {
		where = append(where, fmt.Sprintf("region = $%d", argIdx))
		args = append(args, string(filter.Region))
		argIdx++
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("clinic_type = $%d", argIdx))
		args = append(args, string(filter.Type))
		argIdx++
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", argIdx))
		args = append(args, *filter.Active)
		argIdx++
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("clinic_name ILIKE $%d", argIdx))
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM clinics %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clinics: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+clinicColumns+` FROM clinics %s ORDER BY clinic_code LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clinics: %w", err)
	}
	defer rows.Close()

	clinics := []*domain.Clinic{}
	for rows.Next() {
		var clinic domain.Clinic
		err := rows.Scan(
			&clinic.ClinicID,
			&clinic.Code,
			&clinic.Name,
			&clinic.Type,
			&clinic.Region,
			&clinic.Address,
			&clinic.Phone,
			&clinic.Active,
			&clinic.CreatedBy,
			&clinic.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan clinic: %w", err)
		}
		clinics = append(clinics, &clinic)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate clinics: %w", err)
	}

	return clinics, total, nil
}
