package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paydesk/internal/reconcile/models"
	dErrors "paydesk/pkg/domain-errors"
)

// PostgresStore is the durable project store. All status changes go through
// conditional UPDATEs guarded by the current status, so concurrent deliveries
// never clobber each other.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, payment_status,
		       COALESCE(payment_intent_id, ''), COALESCE(checkout_session_id, ''),
		       created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id)
	return scanProject(row)
}

func (s *PostgresStore) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Project, error) {
	if paymentIntentID == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, payment_status,
		       COALESCE(payment_intent_id, ''), COALESCE(checkout_session_id, ''),
		       created_at, updated_at
		FROM projects
		WHERE payment_intent_id = $1
	`, paymentIntentID)
	return scanProject(row)
}

func (s *PostgresStore) MarkPaid(ctx context.Context, id, paymentIntentID, checkoutSessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET payment_status = $1,
		    payment_intent_id = NULLIF($2, ''),
		    checkout_session_id = NULLIF($3, ''),
		    updated_at = $4
		WHERE id = $5 AND payment_status = $6
	`,
		string(models.PaymentPaid), paymentIntentID, checkoutSessionID,
		time.Now().UTC(), id, string(models.PaymentUnpaid),
	)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeTransient, "mark project paid")
	}
	return changedRow(res)
}

func (s *PostgresStore) Transition(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	args := []any{string(to), time.Now().UTC(), id}
	placeholders := make([]string, 0, len(from))
	for _, status := range from {
		args = append(args, string(status))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE projects
		SET payment_status = $1, updated_at = $2
		WHERE id = $3 AND payment_status IN (%s)
	`, strings.Join(placeholders, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeTransient, "transition project status")
	}
	return changedRow(res)
}

func changedRow(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeTransient, "read rows affected")
	}
	return n > 0, nil
}

func scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var status string
	err := row.Scan(&p.ID, &p.Name, &status,
		&p.PaymentIntentID, &p.CheckoutSessionID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "find project")
	}
	p.PaymentStatus = models.PaymentStatus(status)
	return &p, nil
}
