package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

const cacheInvalidateTimeout = time.Second

// RedemptionService redeems offer codes on behalf of customers.
type RedemptionService struct {
	uow            Transactor
	offerRepo      OfferRepositoryInterface
	redemptionRepo RedemptionRepositoryInterface
	customerRepo   CustomerRepositoryInterface
	cache          SnapshotCache
	timeout        time.Duration
}

// NewRedemptionService creates a new RedemptionService.
// cache may be nil; timeout <= 0 leaves the caller's deadline in charge.
func NewRedemptionService(
	uow Transactor,
	offerRepo OfferRepositoryInterface,
	redemptionRepo RedemptionRepositoryInterface,
	customerRepo CustomerRepositoryInterface,
	cache SnapshotCache,
	timeout time.Duration,
) *RedemptionService {
	return &RedemptionService{
		uow:            uow,
		offerRepo:      offerRepo,
		redemptionRepo: redemptionRepo,
		customerRepo:   customerRepo,
		cache:          cache,
		timeout:        timeout,
	}
}

// Redeem consumes one unit of the offer identified by code for customerID.
//
// All checks and writes run in one transaction: either the decrement, the ledger
// entry and the customer's activity update all commit, or nothing does.
// Expected outcomes (unknown code, duplicate, expired, exhausted, store trouble)
// are reported through RedeemResult.Outcome with a nil error. A non-nil error
// means the caller broke a precondition (ErrCustomerNotFound) or the store's
// accounting is corrupt (ErrInvariantViolation).
func (s *RedemptionService) Redeem(ctx context.Context, code, customerID string, now time.Time) (model.RedeemResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.RedeemResult{Outcome: model.OutcomeCodeNotFound}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var redeemed *model.Offer
	err := s.uow.WithTransaction(ctx, func(q database.TxQuerier) error {
		offer, err := s.offerRepo.GetByCode(ctx, q, code)
		if err != nil {
			return err
		}

		already, err := s.redemptionRepo.HasRedeemed(ctx, q, offer.ID, customerID)
		if err != nil {
			return err
		}
		if already {
			return ErrAlreadyRedeemed
		}

		if !offer.InWindow(now) {
			return ErrOfferNotRedeemable
		}

		updated, err := s.offerRepo.ConditionalDecrement(ctx, q, offer.ID)
		if err != nil {
			return err
		}
		if err := updated.CheckAccounting(); err != nil {
			return err
		}

		err = s.redemptionRepo.Record(ctx, q, &model.Redemption{
			ID:         uuid.NewString(),
			OfferID:    offer.ID,
			CustomerID: customerID,
			RedeemedAt: now,
		})
		if errors.Is(err, ErrAlreadyRedeemed) {
			// A concurrent request won the ledger slot after our dedup check.
			if rerr := s.offerRepo.RestoreUnit(ctx, q, offer.ID); rerr != nil {
				return fmt.Errorf("restore unit: %w", rerr)
			}
			return ErrAlreadyRedeemed
		}
		if err != nil {
			return err
		}

		if err := s.customerRepo.TouchLastActive(ctx, q, customerID, now); err != nil {
			return err
		}

		redeemed = updated
		return nil
	})

	logger := log.With().Str("code", code).Str("customer_id", customerID).Logger()

	switch {
	case err == nil:
		logger.Info().
			Str("offer_id", redeemed.ID).
			Int("remaining_quantity", redeemed.RemainingQuantity).
			Msg("offer redeemed")
		s.invalidateCache(ctx)
		return model.RedeemResult{Outcome: model.OutcomeSuccess, Offer: redeemed, RedeemedAt: now}, nil
	case errors.Is(err, ErrInvariantViolation):
		logger.Error().Err(err).Msg("offer accounting invariant violated during redemption")
		return model.RedeemResult{}, err
	case errors.Is(err, ErrCustomerNotFound):
		logger.Error().Err(err).Msg("redemption for unknown customer")
		return model.RedeemResult{}, err
	case errors.Is(err, ErrOfferNotFound):
		return s.outcome(logger, model.OutcomeCodeNotFound), nil
	case errors.Is(err, ErrAlreadyRedeemed):
		return s.outcome(logger, model.OutcomeAlreadyRedeemed), nil
	case errors.Is(err, ErrOfferNotRedeemable):
		return s.outcome(logger, model.OutcomeCodeExpiredOrInactive), nil
	case errors.Is(err, ErrQuantityExhausted):
		return s.outcome(logger, model.OutcomeQuantityExhausted), nil
	case database.PgErrorCode(err) == database.CodeCheckViolation:
		// The accounting CHECK constraints fired; the store refused a broken state.
		err = fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		logger.Error().Err(err).Msg("offer accounting invariant violated during redemption")
		return model.RedeemResult{}, err
	}

	retryable := IsRetryable(err)
	level := zerolog.ErrorLevel
	if retryable {
		level = zerolog.WarnLevel
	}
	logger.WithLevel(level).Err(err).Bool("retryable", retryable).Msg("redemption store unavailable")
	return model.RedeemResult{Outcome: model.OutcomeStoreUnavailable}, nil
}

func (s *RedemptionService) outcome(logger zerolog.Logger, o model.Outcome) model.RedeemResult {
	logger.Debug().Str("outcome", o.String()).Msg("redemption rejected")
	return model.RedeemResult{Outcome: o}
}

// invalidateCache drops the availability snapshot after a commit.
// The redemption already happened, so failures are only logged.
func (s *RedemptionService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheInvalidateTimeout)
	defer cancel()
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate offer snapshot cache")
	}
}
