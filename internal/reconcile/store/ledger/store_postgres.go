package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"paydesk/internal/reconcile/models"
	dErrors "paydesk/pkg/domain-errors"
)

// uniqueViolation is the SQLSTATE Postgres raises when the event_id unique
// constraint rejects a second insert for the same event.
const uniqueViolation = "23505"

// PostgresStore is the durable ledger. The unique index on event_id is the
// authoritative guard against duplicate delivery; two racing inserts resolve
// to exactly one row and one ErrDuplicateEvent.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reconciliation_records WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeTransient, "check event existence")
	}
	return exists, nil
}

func (s *PostgresStore) Record(ctx context.Context, rec *models.ReconciliationRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal record metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_records
			(id, event_id, provider, event_type, status, error_message, metadata, project_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	`,
		rec.ID, rec.EventID, rec.Provider, rec.EventType, string(rec.Status),
		rec.ErrorMessage, metadata, rec.ProjectID, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEvent
		}
		return dErrors.Wrap(err, dErrors.CodeTransient, "insert reconciliation record")
	}
	return nil
}

func (s *PostgresStore) FindByEventID(ctx context.Context, eventID string) (*models.ReconciliationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, provider, event_type, status, error_message, metadata,
		       COALESCE(project_id, ''), created_at
		FROM reconciliation_records
		WHERE event_id = $1
	`, eventID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "find reconciliation record")
	}
	return rec, nil
}

func (s *PostgresStore) ListUnmatched(ctx context.Context, limit int) ([]*models.ReconciliationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, provider, event_type, status, error_message, metadata,
		       COALESCE(project_id, ''), created_at
		FROM reconciliation_records
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(models.RecordUnmatched), limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "list unmatched records")
	}
	defer rows.Close()

	var out []*models.ReconciliationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTransient, "scan unmatched record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "iterate unmatched records")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ReconciliationRecord, error) {
	var rec models.ReconciliationRecord
	var status string
	var metadata []byte
	if err := row.Scan(&rec.ID, &rec.EventID, &rec.Provider, &rec.EventType,
		&status, &rec.ErrorMessage, &metadata, &rec.ProjectID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Status = models.RecordStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal record metadata: %w", err)
		}
	}
	return &rec, nil
}
