package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

// mockOfferRepository is a mock implementation of OfferRepositoryInterface.
type mockOfferRepository struct {
	insertFn                   func(ctx context.Context, offer *model.Offer) error
	findByCodeFn               func(ctx context.Context, code string) (*model.Offer, error)
	getByCodeFn                func(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error)
	conditionalDecrementFn     func(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error)
	restoreUnitFn              func(ctx context.Context, q database.TxQuerier, offerID string) error
	listActiveFn               func(ctx context.Context, now time.Time, candidateIDs []string) ([]model.Offer, error)
	listAccountingViolationsFn func(ctx context.Context) ([]model.AccountingViolation, error)
}

func (m *mockOfferRepository) Insert(ctx context.Context, offer *model.Offer) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, offer)
	}
	return nil
}

func (m *mockOfferRepository) FindByCode(ctx context.Context, code string) (*model.Offer, error) {
	if m.findByCodeFn != nil {
		return m.findByCodeFn(ctx, code)
	}
	return nil, ErrOfferNotFound
}

func (m *mockOfferRepository) GetByCode(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, q, code)
	}
	return nil, ErrOfferNotFound
}

func (m *mockOfferRepository) ConditionalDecrement(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error) {
	if m.conditionalDecrementFn != nil {
		return m.conditionalDecrementFn(ctx, q, offerID)
	}
	return nil, ErrQuantityExhausted
}

func (m *mockOfferRepository) RestoreUnit(ctx context.Context, q database.TxQuerier, offerID string) error {
	if m.restoreUnitFn != nil {
		return m.restoreUnitFn(ctx, q, offerID)
	}
	return nil
}

func (m *mockOfferRepository) ListActive(ctx context.Context, now time.Time, candidateIDs []string) ([]model.Offer, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, now, candidateIDs)
	}
	return []model.Offer{}, nil
}

func (m *mockOfferRepository) ListAccountingViolations(ctx context.Context) ([]model.AccountingViolation, error) {
	if m.listAccountingViolationsFn != nil {
		return m.listAccountingViolationsFn(ctx)
	}
	return []model.AccountingViolation{}, nil
}

// mockRedemptionRepository is a mock implementation of RedemptionRepositoryInterface.
type mockRedemptionRepository struct {
	hasRedeemedFn          func(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error)
	recordFn               func(ctx context.Context, q database.TxQuerier, redemption *model.Redemption) error
	listCustomersByOfferFn func(ctx context.Context, offerID string) ([]string, error)
	listByCustomerFn       func(ctx context.Context, customerID string) ([]model.Redemption, error)
}

func (m *mockRedemptionRepository) HasRedeemed(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error) {
	if m.hasRedeemedFn != nil {
		return m.hasRedeemedFn(ctx, q, offerID, customerID)
	}
	return false, nil
}

func (m *mockRedemptionRepository) Record(ctx context.Context, q database.TxQuerier, redemption *model.Redemption) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, q, redemption)
	}
	return nil
}

func (m *mockRedemptionRepository) ListCustomersByOffer(ctx context.Context, offerID string) ([]string, error) {
	if m.listCustomersByOfferFn != nil {
		return m.listCustomersByOfferFn(ctx, offerID)
	}
	return []string{}, nil
}

func (m *mockRedemptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.Redemption, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, customerID)
	}
	return []model.Redemption{}, nil
}

// mockCustomerRepository is a mock implementation of CustomerRepositoryInterface.
type mockCustomerRepository struct {
	ensureFn          func(ctx context.Context, customer *model.Customer) (*model.Customer, bool, error)
	getByIDFn         func(ctx context.Context, id string) (*model.Customer, error)
	touchLastActiveFn func(ctx context.Context, q database.TxQuerier, id string, at time.Time) error
}

func (m *mockCustomerRepository) Ensure(ctx context.Context, customer *model.Customer) (*model.Customer, bool, error) {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, customer)
	}
	return customer, true, nil
}

func (m *mockCustomerRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Customer{ID: id}, nil
}

func (m *mockCustomerRepository) TouchLastActive(ctx context.Context, q database.TxQuerier, id string, at time.Time) error {
	if m.touchLastActiveFn != nil {
		return m.touchLastActiveFn(ctx, q, id, at)
	}
	return nil
}

// mockTransactor runs fn directly and records whether the unit of work
// would have committed or rolled back.
type mockTransactor struct {
	beginErr   error
	commitErr  error
	calls      int
	committed  bool
	rolledBack bool
}

func (m *mockTransactor) WithTransaction(ctx context.Context, fn func(q database.TxQuerier) error) error {
	m.calls++
	if m.beginErr != nil {
		return m.beginErr
	}
	if err := fn(nil); err != nil {
		m.rolledBack = true
		return err
	}
	if m.commitErr != nil {
		m.rolledBack = true
		return m.commitErr
	}
	m.committed = true
	return nil
}

// mockCache is an in-memory SnapshotCache that counts calls.
type mockCache struct {
	mu          sync.Mutex
	offers      []model.Offer
	hit         bool
	getErr      error
	setErr      error
	invalidErr  error
	gets        int
	sets        int
	invalidates int
}

func (m *mockCache) Get(ctx context.Context) ([]model.Offer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	return m.offers, m.hit, nil
}

func (m *mockCache) Set(ctx context.Context, offers []model.Offer, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.offers = offers
	m.hit = true
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidates++
	if m.invalidErr != nil {
		return m.invalidErr
	}
	m.offers = nil
	m.hit = false
	return nil
}

var errDB = errors.New("database connection failed")

func intPtr(i int) *int {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}
