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

// offerSelect selects an offer joined with its display context.
// Column order must match scanOffer.
const offerSelect = `SELECT o.id, o.branch_id, o.code, o.dish_name, o.dish_image, o.description,
	o.original_price, o.discount_price, o.currency, o.start_time, o.end_time,
	o.total_quantity, o.remaining_quantity, o.redeemed_count, o.is_active, o.created_at, o.updated_at,
	b.id, b.restaurant_id, b.address, b.description, b.latitude, b.longitude,
	r.id, r.name
FROM %s o
JOIN branches b ON b.id = o.branch_id
JOIN restaurants r ON r.id = b.restaurant_id`

// OfferRepository provides data access for offers using pgx.
type OfferRepository struct {
	pool database.TxQuerier
}

// NewOfferRepository creates a new OfferRepository with the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// NewOfferRepositoryWithPool creates a new OfferRepository with a custom pool interface.
// This is primarily used for testing.
func NewOfferRepositoryWithPool(pool database.TxQuerier) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	err := row.Scan(
		&o.ID, &o.BranchID, &o.Code, &o.DishName, &o.DishImage, &o.Description,
		&o.OriginalPrice, &o.DiscountPrice, &o.Currency, &o.StartTime, &o.EndTime,
		&o.TotalQuantity, &o.RemainingQuantity, &o.RedeemedCount, &o.Active, &o.CreatedAt, &o.UpdatedAt,
		&o.Branch.ID, &o.Branch.RestaurantID, &o.Branch.Address, &o.Branch.Description,
		&o.Branch.Latitude, &o.Branch.Longitude,
		&o.Restaurant.ID, &o.Restaurant.Name,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Insert inserts a new offer with remaining_quantity = total_quantity and no redemptions.
// Returns service.ErrOfferExists if the code is taken (case-insensitively) and
// service.ErrBranchNotFound if the branch does not exist.
func (r *OfferRepository) Insert(ctx context.Context, offer *model.Offer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO offers (id, branch_id, code, dish_name, dish_image, description,
			original_price, discount_price, currency, start_time, end_time,
			total_quantity, remaining_quantity, redeemed_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, 0, $13)`,
		offer.ID, offer.BranchID, offer.Code, offer.DishName, offer.DishImage, offer.Description,
		offer.OriginalPrice, offer.DiscountPrice, offer.Currency, offer.StartTime, offer.EndTime,
		offer.TotalQuantity, offer.Active)
	if err != nil {
		switch database.PgErrorCode(err) {
		case database.CodeUniqueViolation:
			return service.ErrOfferExists
		case database.CodeForeignKeyViolation:
			return service.ErrBranchNotFound
		case database.CodeCheckViolation:
			return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
		}
		return fmt.Errorf("insert offer: %w", err)
	}
	offer.RemainingQuantity = offer.TotalQuantity
	offer.RedeemedCount = 0
	return nil
}

// FindByCode looks up an offer outside of any transaction.
func (r *OfferRepository) FindByCode(ctx context.Context, code string) (*model.Offer, error) {
	return r.GetByCode(ctx, r.pool, code)
}

// GetByCode retrieves an offer by code, ignoring case.
// Returns service.ErrOfferNotFound if no offer matches.
func (r *OfferRepository) GetByCode(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error) {
	query := fmt.Sprintf(offerSelect, "offers") + ` WHERE lower(o.code) = lower($1)`

	offer, err := scanOffer(q.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrOfferNotFound
		}
		return nil, fmt.Errorf("get offer by code %s: %w", code, err)
	}
	return offer, nil
}

// ConditionalDecrement takes one unit of an offer if and only if one remains.
// The predicate is re-evaluated under the row lock, so concurrent callers on the
// same offer serialize and at most remaining_quantity of them succeed.
// Returns the post-decrement offer, or service.ErrQuantityExhausted.
func (r *OfferRepository) ConditionalDecrement(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error) {
	query := `WITH o AS (
		UPDATE offers
		SET remaining_quantity = remaining_quantity - 1,
			redeemed_count = redeemed_count + 1,
			updated_at = NOW()
		WHERE id = $1 AND remaining_quantity > 0
		RETURNING *
	) ` + fmt.Sprintf(offerSelect, "o")

	offer, err := scanOffer(q.QueryRow(ctx, query, offerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrQuantityExhausted
		}
		return nil, fmt.Errorf("decrement offer %s: %w", offerID, err)
	}
	return offer, nil
}

// RestoreUnit gives back a unit taken by ConditionalDecrement in the same transaction.
func (r *OfferRepository) RestoreUnit(ctx context.Context, q database.TxQuerier, offerID string) error {
	query := `UPDATE offers
		SET remaining_quantity = remaining_quantity + 1,
			redeemed_count = redeemed_count - 1,
			updated_at = NOW()
		WHERE id = $1 AND redeemed_count > 0`

	tag, err := q.Exec(ctx, query, offerID)
	if err != nil {
		return fmt.Errorf("restore unit for offer %s: %w", offerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: restore unit for offer %s with no redemptions",
			service.ErrInvariantViolation, offerID)
	}
	return nil
}

// ListActive returns offers redeemable at now, soonest-ending first.
// A nil candidateIDs means no restriction; an empty one matches nothing.
func (r *OfferRepository) ListActive(ctx context.Context, now time.Time, candidateIDs []string) ([]model.Offer, error) {
	if candidateIDs != nil && len(candidateIDs) == 0 {
		return []model.Offer{}, nil
	}

	query := fmt.Sprintf(offerSelect, "offers") + `
		WHERE o.is_active AND o.start_time <= $1 AND o.end_time > $1 AND o.remaining_quantity > 0`
	args := []any{now}
	if candidateIDs != nil {
		query += ` AND o.id = ANY($2)`
		args = append(args, candidateIDs)
	}
	query += ` ORDER BY o.end_time, o.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	defer rows.Close()

	offers := []model.Offer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, *offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer rows: %w", err)
	}
	return offers, nil
}

// ListAccountingViolations returns offers whose counters disagree with each other
// or with the number of ledger rows recorded against them.
func (r *OfferRepository) ListAccountingViolations(ctx context.Context) ([]model.AccountingViolation, error) {
	query := `SELECT o.id, o.code, o.total_quantity, o.remaining_quantity, o.redeemed_count,
			COALESCE(l.cnt, 0)
		FROM offers o
		LEFT JOIN (
			SELECT offer_id, COUNT(*) AS cnt FROM redemptions GROUP BY offer_id
		) l ON l.offer_id = o.id
		WHERE o.remaining_quantity < 0
			OR o.redeemed_count + o.remaining_quantity <> o.total_quantity
			OR COALESCE(l.cnt, 0) <> o.redeemed_count
		ORDER BY o.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounting violations: %w", err)
	}
	defer rows.Close()

	violations := []model.AccountingViolation{}
	for rows.Next() {
		var v model.AccountingViolation
		if err := rows.Scan(&v.OfferID, &v.Code, &v.TotalQuantity, &v.RemainingQuantity,
			&v.RedeemedCount, &v.LedgerCount); err != nil {
			return nil, fmt.Errorf("scan accounting violation: %w", err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violation rows: %w", err)
	}
	return violations, nil
}
