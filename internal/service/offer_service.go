package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

// OfferService provides offer administration.
type OfferService struct {
	offerRepo      OfferRepositoryInterface
	redemptionRepo RedemptionRepositoryInterface
	cache          SnapshotCache
}

// NewOfferService creates a new OfferService. cache may be nil.
func NewOfferService(offerRepo OfferRepositoryInterface, redemptionRepo RedemptionRepositoryInterface, cache SnapshotCache) *OfferService {
	return &OfferService{
		offerRepo:      offerRepo,
		redemptionRepo: redemptionRepo,
		cache:          cache,
	}
}

// Create creates a new offer from the request with its full quantity available.
// Returns ErrOfferExists if the code is taken and ErrInvalidRequest if the
// request is incomplete or inconsistent.
func (s *OfferService) Create(ctx context.Context, req *model.CreateOfferRequest) (*model.Offer, error) {
	// Defense-in-depth: check for nil pointer even though handler validates
	if req == nil || req.Quantity == nil {
		return nil, ErrInvalidRequest
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidRequest)
	}
	if req.OriginalPrice.IsNegative() || req.DiscountPrice.IsNegative() {
		return nil, fmt.Errorf("%w: prices must not be negative", ErrInvalidRequest)
	}
	if req.DiscountPrice.GreaterThan(req.OriginalPrice) {
		return nil, fmt.Errorf("%w: discount_price exceeds original_price", ErrInvalidRequest)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	offer := &model.Offer{
		ID:                uuid.NewString(),
		BranchID:          strings.TrimSpace(req.BranchID),
		Code:              strings.TrimSpace(req.Code),
		DishName:          strings.TrimSpace(req.DishName),
		DishImage:         req.DishImage,
		Description:       req.Description,
		OriginalPrice:     req.OriginalPrice,
		DiscountPrice:     req.DiscountPrice,
		Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		TotalQuantity:     *req.Quantity,
		RemainingQuantity: *req.Quantity,
		Active:            active,
	}
	if err := s.offerRepo.Insert(ctx, offer); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Str("code", offer.Code).Msg("failed to invalidate offer snapshot cache")
		}
	}
	return offer, nil
}

// GetByCode retrieves an offer with the ids of the customers who redeemed it.
// Returns ErrOfferNotFound if the offer doesn't exist.
func (s *OfferService) GetByCode(ctx context.Context, code string) (*model.OfferDetailsResponse, error) {
	offer, err := s.offerRepo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}

	redeemedBy, err := s.redemptionRepo.ListCustomersByOffer(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("get redemptions: %w", err)
	}

	return &model.OfferDetailsResponse{
		OfferResponse: model.NewOfferResponse(offer),
		TotalQuantity: offer.TotalQuantity,
		RedeemedCount: offer.RedeemedCount,
		RedeemedBy:    redeemedBy,
	}, nil
}
