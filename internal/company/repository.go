package company

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists companies and their associations with accounts.
type Repository interface {
	Create(ctx context.Context, c Company) error
	Get(ctx context.Context, id string) (Company, error)
	ListByStatus(ctx context.Context, status string) ([]Company, error)
	Associate(ctx context.Context, accountID, companyID string) error
	ListForAccount(ctx context.Context, accountID string) ([]Company, error)
}

// PostgresRepository stores companies in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a company, ignoring duplicates by tax id so seeding is repeatable.
func (r *PostgresRepository) Create(ctx context.Context, c Company) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO companies (id, name, tax_id, email, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (tax_id) DO NOTHING`,
		id, c.Name, c.TaxID, c.Email, c.Status, c.CreatedAt.UTC())
	return err
}

// Get fetches a company by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Company, error) {
	companyID, err := uuid.Parse(id)
	if err != nil {
		return Company{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, name, tax_id, email, status, created_at FROM companies WHERE id = $1`, companyID)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

// ListByStatus returns the companies in the given status ordered by name.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status string) ([]Company, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, tax_id, email, status, created_at
        FROM companies WHERE status = $1 ORDER BY name`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Associate links an account with a company.
func (r *PostgresRepository) Associate(ctx context.Context, accountID, companyID string) error {
	aid, err := uuid.Parse(accountID)
	if err != nil {
		return err
	}
	cid, err := uuid.Parse(companyID)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `INSERT INTO account_companies (account_id, company_id, created_at) VALUES ($1, $2, $3)`,
		aid, cid, time.Now().UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyAssociated
	}
	return err
}

// ListForAccount returns the companies linked to an account ordered by name.
func (r *PostgresRepository) ListForAccount(ctx context.Context, accountID string) ([]Company, error) {
	aid, err := uuid.Parse(accountID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT c.id, c.name, c.tax_id, c.email, c.status, c.created_at
        FROM companies c INNER JOIN account_companies ac ON ac.company_id = c.id
        WHERE ac.account_id = $1 ORDER BY c.name`, aid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Company, error) {
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCompany(row pgx.Row) (Company, error) {
	var (
		c         Company
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &c.Name, &c.TaxID, &c.Email, &c.Status, &createdAt); err != nil {
		return Company{}, err
	}
	c.ID = id.String()
	c.CreatedAt = createdAt.UTC()
	return c, nil
}
