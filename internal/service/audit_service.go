package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditService cross-checks offer counters against the redemption ledger.
type AuditService struct {
	offerRepo OfferRepositoryInterface
}

// NewAuditService creates a new AuditService.
func NewAuditService(offerRepo OfferRepositoryInterface) *AuditService {
	return &AuditService{offerRepo: offerRepo}
}

// Audit logs every offer whose accounting is broken and returns how many it found.
func (s *AuditService) Audit(ctx context.Context) (int, error) {
	violations, err := s.offerRepo.ListAccountingViolations(ctx)
	if err != nil {
		return 0, fmt.Errorf("audit offers: %w", err)
	}

	for _, v := range violations {
		log.Error().
			Err(ErrInvariantViolation).
			Str("offer_id", v.OfferID).
			Str("code", v.Code).
			Int("total_quantity", v.TotalQuantity).
			Int("remaining_quantity", v.RemainingQuantity).
			Int("redeemed_count", v.RedeemedCount).
			Int("ledger_count", v.LedgerCount).
			Msg("offer accounting mismatch")
	}
	if len(violations) == 0 {
		log.Debug().Msg("offer accounting audit clean")
	}
	return len(violations), nil
}
