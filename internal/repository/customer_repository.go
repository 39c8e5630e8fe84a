package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/internal/service"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

// CustomerRepository provides data access for customers using pgx.
type CustomerRepository struct {
	pool database.TxQuerier
}

// NewCustomerRepository creates a new CustomerRepository with the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// NewCustomerRepositoryWithPool creates a new CustomerRepository with a custom pool interface.
// This is primarily used for testing.
func NewCustomerRepositoryWithPool(pool database.TxQuerier) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Ensure returns the customer with customer.ExternalID, inserting customer if none exists.
// created is true only when this call inserted the row.
func (r *CustomerRepository) Ensure(ctx context.Context, customer *model.Customer) (*model.Customer, bool, error) {
	query := `INSERT INTO customers (id, external_id, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $3)
		ON CONFLICT (external_id) DO UPDATE SET updated_at = customers.updated_at
		RETURNING id, external_id, last_active, created_at, updated_at, (xmax = 0)`

	var (
		c       model.Customer
		created bool
	)
	err := r.pool.QueryRow(ctx, query, customer.ID, customer.ExternalID, customer.LastActive).Scan(
		&c.ID, &c.ExternalID, &c.LastActive, &c.CreatedAt, &c.UpdatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("ensure customer %s: %w", customer.ExternalID, err)
	}
	return &c, created, nil
}

// GetByID retrieves a customer by id.
// Returns service.ErrCustomerNotFound if the customer doesn't exist.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	query := `SELECT id, external_id, last_active, created_at, updated_at FROM customers WHERE id = $1`

	var c model.Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.ExternalID, &c.LastActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return &c, nil
}

// TouchLastActive records activity for a customer inside a transaction.
func (r *CustomerRepository) TouchLastActive(ctx context.Context, q database.TxQuerier, id string, at time.Time) error {
	query := `UPDATE customers SET last_active = $2, updated_at = NOW() WHERE id = $1`

	tag, err := q.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("touch customer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCustomerNotFound
	}
	return nil
}
