package contact

import (
	"context"
	"database/sql"

	"paydesk/internal/intake/models"
	dErrors "paydesk/pkg/domain-errors"
)

// PostgresStore is the durable contact store. It stores whatever bytes it is
// given; encryption is the service's concern.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, email_hash, phone, company, message, budget, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.Name, c.Email, c.EmailHash, c.Phone, c.Company, c.Message, c.Budget, c.CreatedAt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "insert contact")
	}
	return nil
}

func (s *PostgresStore) FindByEmailHash(ctx context.Context, emailHash string) ([]*models.Contact, error) {
	if emailHash == "" {
		return nil, nil
	}
	return s.query(ctx, `
		SELECT id, name, email, email_hash, phone, company, message, budget, created_at
		FROM contacts
		WHERE email_hash = $1
		ORDER BY created_at DESC
	`, emailHash)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `
		SELECT id, name, email, email_hash, phone, company, message, budget, created_at
		FROM contacts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "query contacts")
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.EmailHash,
			&c.Phone, &c.Company, &c.Message, &c.Budget, &c.CreatedAt); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTransient, "scan contact")
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "iterate contacts")
	}
	return out, nil
}
