package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var inviteCodeCols = []string{
	"id", "code_hash", "clinic_code", "description", "max_uses",
	"used_count", "active", "created_at", "expires_at", "created_by",
}

var clinicCols = []string{
	"clinic_id", "clinic_code", "clinic_name", "clinic_type", "region",
	"address", "phone_sealed", "active", "created_by", "created_at",
}

func TestPostgresClinicsRepo_GetByCode(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresClinicsRepo(db)

	created := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM clinics WHERE clinic_code = \$1`).
		WithArgs("OB-SEOUL-CLINIC-001").
		WillReturnRows(sqlmock.NewRows(clinicCols).AddRow(
			"11111111-1111-1111-1111-111111111111", "OB-SEOUL-CLINIC-001",
			"Seoul Obesity Clinic", "clinic", "SEOUL", "", "", true, "admin-1", created,
		))

	clinic, err := repo.GetByCode(context.Background(), "OB-SEOUL-CLINIC-001")
	require.NoError(t, err)
	assert.Equal(t, "Seoul Obesity Clinic", clinic.Name)
	assert.Equal(t, domain.RegionSeoul, clinic.Region)
	assert.True(t, clinic.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClinicsRepo_GetByCode_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresClinicsRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM clinics WHERE clinic_code = \$1`).
		WithArgs("OB-SEOUL-CLINIC-999").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "OB-SEOUL-CLINIC-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresClinicsRepo_Create_Duplicate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresClinicsRepo(db)

	mock.ExpectQuery(`INSERT INTO clinics`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), &domain.Clinic{
		Code: "OB-SEOUL-CLINIC-001", Name: "Dup", Type: domain.ClinicTypeClinic,
		Region: domain.RegionSeoul, Active: true, CreatedBy: "admin-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestPostgresClinicsRepo_NextSequence(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresClinicsRepo(db)

	mock.ExpectQuery(`INSERT INTO clinic_code_sequences .+ ON CONFLICT .+ RETURNING next_seq`).
		WithArgs("SEOUL", "clinic").
		WillReturnRows(sqlmock.NewRows([]string{"next_seq"}).AddRow(42))

	seq, err := repo.NextSequence(context.Background(), domain.RegionSeoul, domain.ClinicTypeClinic)
	require.NoError(t, err)
	assert.Equal(t, 42, seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClinicsRepo_SetActive_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresClinicsRepo(db)

	mock.ExpectExec(`UPDATE clinics SET active = \$2 WHERE clinic_code = \$1`).
		WithArgs("OB-SEOUL-CLINIC-999", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), "OB-SEOUL-CLINIC-999", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresInviteCodesRepo_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	mock.ExpectQuery(`INSERT INTO invite_codes .+ RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("22222222-2222-2222-2222-222222222222"))

	id, err := repo.Create(context.Background(), &domain.InviteCode{
		CodeHash:   "hash",
		ClinicCode: "OB-SEOUL-CLINIC-001",
		Active:     true,
		CreatedBy:  "doc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", id)
}

func TestPostgresInviteCodesRepo_Create_HashCollision(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	mock.ExpectQuery(`INSERT INTO invite_codes`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), &domain.InviteCode{
		CodeHash: "hash", ClinicCode: "OB-SEOUL-CLINIC-001", Active: true, CreatedBy: "doc-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestPostgresInviteCodesRepo_GetByHash(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	created := time.Now()
	expires := created.Add(24 * time.Hour)
	mock.ExpectQuery(`SELECT .+ FROM invite_codes WHERE code_hash = \$1 AND clinic_code = \$2`).
		WithArgs("hash", "OB-SEOUL-CLINIC-001").
		WillReturnRows(sqlmock.NewRows(inviteCodeCols).AddRow(
			"22222222-2222-2222-2222-222222222222", "hash", "OB-SEOUL-CLINIC-001",
			"August cohort", int64(3), 1, true, created, expires, "doc-1",
		))

	code, err := repo.GetByHash(context.Background(), "hash", "OB-SEOUL-CLINIC-001")
	require.NoError(t, err)
	require.NotNil(t, code.MaxUses)
	assert.Equal(t, 3, *code.MaxUses)
	assert.Equal(t, 1, code.UsedCount)
	require.NotNil(t, code.ExpiresAt)
	assert.Equal(t, expires, *code.ExpiresAt)
}

func TestPostgresInviteCodesRepo_GetByHash_NullableColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM invite_codes`).
		WillReturnRows(sqlmock.NewRows(inviteCodeCols).AddRow(
			"22222222-2222-2222-2222-222222222222", "hash", "OB-SEOUL-CLINIC-001",
			"", nil, 0, true, time.Now(), nil, "doc-1",
		))

	code, err := repo.GetByHash(context.Background(), "hash", "OB-SEOUL-CLINIC-001")
	require.NoError(t, err)
	assert.Nil(t, code.MaxUses)
	assert.Nil(t, code.ExpiresAt)
}

func TestPostgresInviteCodesRepo_Consume(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	now := time.Now()
	mock.ExpectQuery(`UPDATE invite_codes\s+SET used_count = used_count \+ 1`).
		WithArgs("hash", "OB-SEOUL-CLINIC-001", now).
		WillReturnRows(sqlmock.NewRows(inviteCodeCols).AddRow(
			"22222222-2222-2222-2222-222222222222", "hash", "OB-SEOUL-CLINIC-001",
			"", int64(1), 1, true, now.Add(-time.Hour), nil, "doc-1",
		))

	code, err := repo.Consume(context.Background(), "hash", "OB-SEOUL-CLINIC-001", now)
	require.NoError(t, err)
	assert.Equal(t, 1, code.UsedCount)
	assert.True(t, code.Exhausted())
}

func TestPostgresInviteCodesRepo_Consume_NoQualifyingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	mock.ExpectQuery(`UPDATE invite_codes`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "hash", "OB-SEOUL-CLINIC-001", time.Now())
	assert.ErrorIs(t, err, ErrNotConsumable)
}

func TestPostgresInviteCodesRepo_Deactivate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	mock.ExpectExec(`UPDATE invite_codes SET active = false WHERE id = \$1`).
		WithArgs("22222222-2222-2222-2222-222222222222").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deactivate(context.Background(), "22222222-2222-2222-2222-222222222222")
	assert.NoError(t, err)
}

func TestPostgresInviteCodesRepo_List_StatusFilter(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresInviteCodesRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM invite_codes WHERE clinic_code = \$1 AND active`).
		WithArgs("OB-SEOUL-CLINIC-001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .+ FROM invite_codes WHERE clinic_code = \$1 AND active .+ ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("OB-SEOUL-CLINIC-001", 20, 0).
		WillReturnRows(sqlmock.NewRows(inviteCodeCols).AddRow(
			"22222222-2222-2222-2222-222222222222", "hash", "OB-SEOUL-CLINIC-001",
			"", nil, 0, true, time.Now(), nil, "doc-1",
		))

	codes, total, err := repo.List(context.Background(), InviteCodeFilters{
		ClinicCode: "OB-SEOUL-CLINIC-001",
		Status:     domain.InviteStatusActive,
	}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, codes, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAuditRepo_RecordAndQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresAuditRepo(db)

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordAttempt(context.Background(), &domain.AttemptRecord{
		Actor:    "anonymous",
		Action:   domain.ActionValidate,
		ClientIP: "10.0.0.1",
		Success:  false,
		Details:  domain.AttemptDetails{MaskedCode: "OB-****X4", Reason: "code missing or inactive"},
	})
	require.NoError(t, err)

	since := time.Now().Add(-5 * time.Minute)
	mock.ExpectQuery(`SELECT .+ FROM audit_logs\s+WHERE client_ip = \$1 AND ts >= \$2`).
		WithArgs("10.0.0.1", since, 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor", "action", "client_ip", "user_agent", "ts", "success", "details",
		}).AddRow(
			"33333333-3333-3333-3333-333333333333", "anonymous", domain.ActionValidate,
			"10.0.0.1", "curl/8.0", time.Now(), false,
			[]byte(`{"masked_code":"OB-****X4","format_valid":true,"reason":"code missing or inactive"}`),
		))

	attempts, err := repo.RecentByIP(context.Background(), "10.0.0.1", since, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "OB-****X4", attempts[0].Details.MaskedCode)
	assert.False(t, attempts[0].Success)
	require.NoError(t, mock.ExpectationsWereMet())
}
