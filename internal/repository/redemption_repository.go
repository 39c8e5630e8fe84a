package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/internal/service"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

// RedemptionRepository provides access to the redemption ledger using pgx.
type RedemptionRepository struct {
	pool database.TxQuerier
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithPool creates a new RedemptionRepository with a custom pool interface.
// This is primarily used for testing.
func NewRedemptionRepositoryWithPool(pool database.TxQuerier) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// HasRedeemed reports whether the customer already holds a redemption for the offer.
func (r *RedemptionRepository) HasRedeemed(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM redemptions WHERE offer_id = $1 AND customer_id = $2)`

	var exists bool
	if err := q.QueryRow(ctx, query, offerID, customerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check redemption for offer %s: %w", offerID, err)
	}
	return exists, nil
}

// Record appends a redemption to the ledger within a transaction.
// A duplicate (offer, customer) pair is absorbed by ON CONFLICT and yields
// service.ErrAlreadyRedeemed with the transaction still usable, so the caller can
// compensate before rolling back. Any other unique violation (an id collision)
// aborts the transaction and is returned as a store error.
func (r *RedemptionRepository) Record(ctx context.Context, q database.TxQuerier, redemption *model.Redemption) error {
	query := `INSERT INTO redemptions (id, offer_id, customer_id, redeemed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT redemptions_offer_customer_uq DO NOTHING`

	tag, err := q.Exec(ctx, query,
		redemption.ID, redemption.OfferID, redemption.CustomerID, redemption.RedeemedAt)
	if err != nil {
		if database.PgErrorCode(err) == database.CodeForeignKeyViolation {
			return service.ErrCustomerNotFound
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAlreadyRedeemed
	}
	return nil
}

// ListCustomersByOffer retrieves the ids of all customers who redeemed an offer.
// On success, returns an empty slice (not nil) when no redemptions exist.
func (r *RedemptionRepository) ListCustomersByOffer(ctx context.Context, offerID string) ([]string, error) {
	query := `SELECT customer_id FROM redemptions WHERE offer_id = $1 ORDER BY redeemed_at, id`

	rows, err := r.pool.Query(ctx, query, offerID)
	if err != nil {
		return nil, fmt.Errorf("get redemptions for offer %s: %w", offerID, err)
	}
	defer rows.Close()

	customers := []string{}
	for rows.Next() {
		var customerID string
		if err := rows.Scan(&customerID); err != nil {
			return nil, fmt.Errorf("scan redemption customer_id: %w", err)
		}
		customers = append(customers, customerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}
	return customers, nil
}

// ListByCustomer returns a customer's redemptions, newest first.
func (r *RedemptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.Redemption, error) {
	query := `SELECT rd.id, rd.offer_id, rd.customer_id, o.code, rd.redeemed_at
		FROM redemptions rd
		JOIN offers o ON o.id = rd.offer_id
		WHERE rd.customer_id = $1
		ORDER BY rd.redeemed_at DESC, rd.id`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("get redemptions for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	redemptions := []model.Redemption{}
	for rows.Next() {
		var rd model.Redemption
		if err := rows.Scan(&rd.ID, &rd.OfferID, &rd.CustomerID, &rd.OfferCode, &rd.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}
	return redemptions, nil
}
