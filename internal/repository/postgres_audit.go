package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// PostgresAuditRepo implements AuditRepo over the append-only audit_logs
// table. There is no update or delete path on purpose.
type PostgresAuditRepo struct {
	db *sql.DB
}

func NewPostgresAuditRepo(db *sql.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

var _ AuditRepo = (*PostgresAuditRepo)(nil)

func (r *PostgresAuditRepo) RecordAttempt(ctx context.Context, record *domain.AttemptRecord) error {
	if record == nil {
		return fmt.Errorf("attempt record is required")
	}
	if record.Action == "" {
		return fmt.Errorf("action is required")
	}

	id := record.ID
	if id == "" {
		id = uuid.New().String()
	}
	actor := record.Actor
	if actor == "" {
		actor = domain.AnonymousActor
	}
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor, action, client_ip, user_agent, ts, success, details)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8::jsonb)`,
		id,
		actor,
		record.Action,
		record.ClientIP,
		record.UserAgent,
		ts,
		record.Success,
		string(details),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

func (r *PostgresAuditRepo) RecentByIP(ctx context.Context, clientIP string, since time.Time, limit int) ([]domain.AttemptRecord, error) {
	if clientIP == "" {
		return nil, fmt.Errorf("client_ip is required")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id::text, actor, action, client_ip, COALESCE(user_agent, '') as user_agent, ts, success, details
		 FROM audit_logs
		 WHERE client_ip = $1 AND ts >= $2
		 ORDER BY ts DESC
		 LIMIT $3`,
		clientIP, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent attempts: %w", err)
	}
	defer rows.Close()

	records := []domain.AttemptRecord{}
	for rows.Next() {
		var record domain.AttemptRecord
		var detailsRaw json.RawMessage
		err := rows.Scan(
			&record.ID,
			&record.Actor,
			&record.Action,
			&record.ClientIP,
			&record.UserAgent,
			&record.Timestamp,
			&record.Success,
			&detailsRaw,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt record: %w", err)
		}
		if len(detailsRaw) > 0 {
			_ = json.Unmarshal(detailsRaw, &record.Details)
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempt records: %w", err)
	}

	return records, nil
}
