package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

var (
	windowStart = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)
	midWindow   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func testOffer(remaining int) model.Offer {
	return model.Offer{
		ID:                "offer-1",
		Code:              "LUNCH50",
		StartTime:         windowStart,
		EndTime:           windowEnd,
		TotalQuantity:     10,
		RemainingQuantity: remaining,
		RedeemedCount:     10 - remaining,
		Active:            true,
		Restaurant:        model.Restaurant{Name: "Thai Corner"},
	}
}

// engineFixture wires a RedemptionService to mocks that behave like a healthy
// store and records which steps ran.
type engineFixture struct {
	offer     model.Offer
	steps     []string
	uow       *mockTransactor
	offers    *mockOfferRepository
	ledger    *mockRedemptionRepository
	customers *mockCustomerRepository
	cache     *mockCache
	svc       *RedemptionService
}

func newEngineFixture(offer model.Offer) *engineFixture {
	f := &engineFixture{offer: offer, uow: &mockTransactor{}, cache: &mockCache{}}

	f.offers = &mockOfferRepository{
		getByCodeFn: func(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error) {
			f.steps = append(f.steps, "lookup")
			if !strings.EqualFold(code, f.offer.Code) {
				return nil, ErrOfferNotFound
			}
			o := f.offer
			return &o, nil
		},
		conditionalDecrementFn: func(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error) {
			f.steps = append(f.steps, "decrement")
			if f.offer.RemainingQuantity <= 0 {
				return nil, ErrQuantityExhausted
			}
			o := f.offer
			o.RemainingQuantity--
			o.RedeemedCount++
			return &o, nil
		},
		restoreUnitFn: func(ctx context.Context, q database.TxQuerier, offerID string) error {
			f.steps = append(f.steps, "restore")
			return nil
		},
	}
	f.ledger = &mockRedemptionRepository{
		hasRedeemedFn: func(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error) {
			f.steps = append(f.steps, "dedup")
			return false, nil
		},
		recordFn: func(ctx context.Context, q database.TxQuerier, r *model.Redemption) error {
			f.steps = append(f.steps, "record")
			return nil
		},
	}
	f.customers = &mockCustomerRepository{
		touchLastActiveFn: func(ctx context.Context, q database.TxQuerier, id string, at time.Time) error {
			f.steps = append(f.steps, "touch")
			return nil
		},
	}
	f.svc = NewRedemptionService(f.uow, f.offers, f.ledger, f.customers, f.cache, 5*time.Second)
	return f
}

func TestRedemptionService_Redeem_Success(t *testing.T) {
	f := newEngineFixture(testOffer(3))

	var recorded *model.Redemption
	f.ledger.recordFn = func(ctx context.Context, q database.TxQuerier, r *model.Redemption) error {
		f.steps = append(f.steps, "record")
		recorded = r
		return nil
	}
	var touchedAt time.Time
	f.customers.touchLastActiveFn = func(ctx context.Context, q database.TxQuerier, id string, at time.Time) error {
		f.steps = append(f.steps, "touch")
		touchedAt = at
		return nil
	}

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.True(t, result.Succeeded())
	require.NotNil(t, result.Offer)
	assert.Equal(t, 2, result.Offer.RemainingQuantity)
	assert.Equal(t, 8, result.Offer.RedeemedCount)
	assert.Equal(t, "Thai Corner", result.Offer.Restaurant.Name)
	assert.Equal(t, midWindow, result.RedeemedAt)

	assert.Equal(t, []string{"lookup", "dedup", "decrement", "record", "touch"}, f.steps)
	require.NotNil(t, recorded)
	assert.NotEmpty(t, recorded.ID)
	assert.Equal(t, "offer-1", recorded.OfferID)
	assert.Equal(t, "cust-1", recorded.CustomerID)
	assert.Equal(t, midWindow, recorded.RedeemedAt)
	assert.Equal(t, midWindow, touchedAt)

	assert.True(t, f.uow.committed)
	assert.False(t, f.uow.rolledBack)
	assert.Equal(t, 1, f.cache.invalidates, "snapshot cache should be invalidated after commit")
}

func TestRedemptionService_Redeem_LastUnit(t *testing.T) {
	f := newEngineFixture(testOffer(1))

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, result.Offer.RemainingQuantity)
	assert.False(t, result.Offer.IsRedeemable(midWindow), "offer with no stock should drop out of availability")
}

func TestRedemptionService_Redeem_TrimsCodeAndIgnoresCase(t *testing.T) {
	f := newEngineFixture(testOffer(3))

	var lookedUp string
	f.offers.getByCodeFn = func(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error) {
		lookedUp = code
		o := f.offer
		return &o, nil
	}

	result, err := f.svc.Redeem(context.Background(), "  lunch50 \n", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "lunch50", lookedUp)
}

func TestRedemptionService_Redeem_BlankCode(t *testing.T) {
	f := newEngineFixture(testOffer(3))

	for _, code := range []string{"", "   ", "\t\n"} {
		result, err := f.svc.Redeem(context.Background(), code, "cust-1", midWindow)

		require.NoError(t, err)
		assert.Equal(t, model.OutcomeCodeNotFound, result.Outcome)
	}
	assert.Equal(t, 0, f.uow.calls, "blank codes should not open a transaction")
}

func TestRedemptionService_Redeem_CodeNotFound(t *testing.T) {
	f := newEngineFixture(testOffer(3))

	result, err := f.svc.Redeem(context.Background(), "NOPE", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCodeNotFound, result.Outcome)
	assert.Nil(t, result.Offer)
	assert.Equal(t, []string{"lookup"}, f.steps)
	assert.True(t, f.uow.rolledBack)
	assert.Equal(t, 0, f.cache.invalidates)
}

func TestRedemptionService_Redeem_AlreadyRedeemed(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.ledger.hasRedeemedFn = func(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error) {
		f.steps = append(f.steps, "dedup")
		return true, nil
	}

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyRedeemed, result.Outcome)
	assert.Equal(t, []string{"lookup", "dedup"}, f.steps, "no decrement after a duplicate")
	assert.True(t, f.uow.rolledBack)
}

func TestRedemptionService_Redeem_DuplicateTakesPrecedenceOverExpiry(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.ledger.hasRedeemedFn = func(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error) {
		return true, nil
	}

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", windowEnd.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyRedeemed, result.Outcome)
}

func TestRedemptionService_Redeem_OutsideWindow(t *testing.T) {
	inactive := testOffer(3)
	inactive.Active = false

	tests := []struct {
		name  string
		offer model.Offer
		now   time.Time
	}{
		{"before start", testOffer(3), windowStart.Add(-time.Nanosecond)},
		{"exactly at end", testOffer(3), windowEnd},
		{"after end", testOffer(3), windowEnd.Add(time.Hour)},
		{"inactive", inactive, midWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(tt.offer)

			result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", tt.now)

			require.NoError(t, err)
			assert.Equal(t, model.OutcomeCodeExpiredOrInactive, result.Outcome)
			assert.NotContains(t, f.steps, "decrement")
			assert.True(t, f.uow.rolledBack)
		})
	}
}

func TestRedemptionService_Redeem_AtStartIsRedeemable(t *testing.T) {
	f := newEngineFixture(testOffer(3))

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", windowStart)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
}

func TestRedemptionService_Redeem_QuantityExhausted(t *testing.T) {
	f := newEngineFixture(testOffer(0))

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeQuantityExhausted, result.Outcome)
	assert.Equal(t, []string{"lookup", "dedup", "decrement"}, f.steps)
	assert.True(t, f.uow.rolledBack)
	assert.Equal(t, 0, f.cache.invalidates)
}

func TestRedemptionService_Redeem_LedgerConflictCompensates(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.ledger.recordFn = func(ctx context.Context, q database.TxQuerier, r *model.Redemption) error {
		f.steps = append(f.steps, "record")
		return ErrAlreadyRedeemed
	}

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyRedeemed, result.Outcome)
	assert.Equal(t, []string{"lookup", "dedup", "decrement", "record", "restore"}, f.steps)
	assert.True(t, f.uow.rolledBack)
	assert.False(t, f.uow.committed)
}

func TestRedemptionService_Redeem_CompensationFailure(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.ledger.recordFn = func(ctx context.Context, q database.TxQuerier, r *model.Redemption) error {
		return ErrAlreadyRedeemed
	}
	f.offers.restoreUnitFn = func(ctx context.Context, q database.TxQuerier, offerID string) error {
		return errDB
	}

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeStoreUnavailable, result.Outcome)
	assert.True(t, f.uow.rolledBack)
}

func TestRedemptionService_Redeem_InvariantViolationOnSnapshot(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.offers.conditionalDecrementFn = func(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error) {
		o := f.offer
		o.RemainingQuantity = 2
		o.RedeemedCount = 5 // 2 + 5 != 10
		return &o, nil
	}

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, model.RedeemResult{}, result)
	assert.True(t, f.uow.rolledBack)
}

func TestRedemptionService_Redeem_CheckConstraintIsInvariantViolation(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.offers.conditionalDecrementFn = func(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error) {
		return nil, &pgconn.PgError{Code: database.CodeCheckViolation, ConstraintName: "offers_accounting_chk"}
	}

	_, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestRedemptionService_Redeem_UnknownCustomer(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *engineFixture)
	}{
		{"ledger foreign key", func(f *engineFixture) {
			f.ledger.recordFn = func(ctx context.Context, q database.TxQuerier, r *model.Redemption) error {
				return ErrCustomerNotFound
			}
		}},
		{"activity update", func(f *engineFixture) {
			f.customers.touchLastActiveFn = func(ctx context.Context, q database.TxQuerier, id string, at time.Time) error {
				return ErrCustomerNotFound
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(testOffer(3))
			tt.setup(f)

			_, err := f.svc.Redeem(context.Background(), "LUNCH50", "ghost", midWindow)

			assert.ErrorIs(t, err, ErrCustomerNotFound)
			assert.True(t, f.uow.rolledBack, "decrement must not survive a failed redemption")
			assert.False(t, f.uow.committed)
		})
	}
}

func TestRedemptionService_Redeem_StoreUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *engineFixture)
	}{
		{"begin fails", func(f *engineFixture) {
			f.uow.beginErr = errors.New("begin tx: dial tcp: connection refused")
		}},
		{"commit fails", func(f *engineFixture) {
			f.uow.commitErr = errors.New("commit tx: conn closed")
		}},
		{"lookup fails", func(f *engineFixture) {
			f.offers.getByCodeFn = func(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error) {
				return nil, errDB
			}
		}},
		{"dedup fails", func(f *engineFixture) {
			f.ledger.hasRedeemedFn = func(ctx context.Context, q database.TxQuerier, offerID, customerID string) (bool, error) {
				return false, context.DeadlineExceeded
			}
		}},
		{"decrement serialization failure", func(f *engineFixture) {
			f.offers.conditionalDecrementFn = func(ctx context.Context, q database.TxQuerier, offerID string) (*model.Offer, error) {
				return nil, &pgconn.PgError{Code: database.CodeSerializationFailure}
			}
		}},
		{"record fails", func(f *engineFixture) {
			f.ledger.recordFn = func(ctx context.Context, q database.TxQuerier, r *model.Redemption) error {
				return &pgconn.PgError{Code: database.CodeDeadlockDetected}
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(testOffer(3))
			tt.setup(f)

			result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

			require.NoError(t, err)
			assert.Equal(t, model.OutcomeStoreUnavailable, result.Outcome)
			assert.True(t, result.Outcome.Retryable())
			assert.Nil(t, result.Offer)
			assert.False(t, f.uow.committed)
			assert.Equal(t, 0, f.cache.invalidates)
		})
	}
}

func TestRedemptionService_Redeem_AppliesTimeout(t *testing.T) {
	f := newEngineFixture(testOffer(3))

	var deadline time.Time
	var hasDeadline bool
	f.offers.getByCodeFn = func(ctx context.Context, q database.TxQuerier, code string) (*model.Offer, error) {
		deadline, hasDeadline = ctx.Deadline()
		o := f.offer
		return &o, nil
	}

	before := time.Now()
	_, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	require.True(t, hasDeadline)
	assert.WithinDuration(t, before.Add(5*time.Second), deadline, time.Second)
}

func TestRedemptionService_Redeem_CacheFailureDoesNotFailRedemption(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	f.cache.invalidErr = errors.New("redis: connection refused")

	result, err := f.svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, f.cache.invalidates)
}

func TestRedemptionService_Redeem_NilCache(t *testing.T) {
	f := newEngineFixture(testOffer(3))
	svc := NewRedemptionService(f.uow, f.offers, f.ledger, f.customers, nil, 0)

	result, err := svc.Redeem(context.Background(), "LUNCH50", "cust-1", midWindow)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
}
