package service

import (
	"context"
	"time"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

// OfferRepositoryInterface defines the interface for offer data access.
type OfferRepositoryInterface interface {
	Insert(ctx context.Context, offer *model.Offer) error
	FindByCode(ctx context.Context, code string) (*model.Offer, error)
	GetByCode(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error)
	ConditionalDecrement(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error)
	RestoreUnit(ctx context.Context, q database.TxQuerier, offerID string) error
	ListActive(ctx context.Context, now time.Time, candidateIDs []string) ([]model.Offer, error)
	ListAccountingViolations(ctx context.Context) ([]model.AccountingViolation, error)
}

// RedemptionRepositoryInterface defines the interface for the redemption ledger.
type RedemptionRepositoryInterface interface {
	HasRedeemed(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error)
	Record(ctx context.Context, q database.TxQuerier, redemption *model.Redemption) error
	ListCustomersByOffer(ctx context.Context, offerID string) ([]string, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Redemption, error)
}

// CustomerRepositoryInterface defines the interface for customer data access.
type CustomerRepositoryInterface interface {
	Ensure(ctx context.Context, customer *model.Customer) (*model.Customer, bool, error)
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	TouchLastActive(ctx context.Context, q database.TxQuerier, id string, at time.Time) error
}

// Transactor runs fn atomically. Implemented by database.UnitOfWork.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(q database.TxQuerier) error) error
}

// SnapshotCache stores the list of redeemable offers for a short time.
type SnapshotCache interface {
	Get(ctx context.Context) ([]model.Offer, bool, error)
	Set(ctx context.Context, offers []model.Offer, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}
