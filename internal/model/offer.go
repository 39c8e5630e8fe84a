package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvariantViolation is returned when an offer's quantity accounting is broken.
// It signals a defect in the store's atomic primitives, never a user error.
var ErrInvariantViolation = errors.New("offer accounting invariant violated")

// Restaurant is read-only display context for an offer.
type Restaurant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Branch is the venue an offer belongs to.
type Branch struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurant_id"`
	Address      string  `json:"address"`
	Description  string  `json:"description"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Offer is a quantity-limited, time-boxed discount identified by a unique code.
type Offer struct {
	ID                string          `json:"id"`
	BranchID          string          `json:"branch_id"`
	Code              string          `json:"code"`
	DishName          string          `json:"dish_name"`
	DishImage         string          `json:"dish_image"`
	Description       string          `json:"description"`
	OriginalPrice     decimal.Decimal `json:"original_price"`
	DiscountPrice     decimal.Decimal `json:"discount_price"`
	Currency          string          `json:"currency"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	TotalQuantity     int             `json:"total_quantity"`
	RemainingQuantity int             `json:"remaining_quantity"`
	RedeemedCount     int             `json:"redeemed_count"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Branch     Branch     `json:"branch"`
	Restaurant Restaurant `json:"restaurant"`
}

// InWindow reports whether the offer is active and now lies in [StartTime, EndTime).
func (o *Offer) InWindow(now time.Time) bool {
	return o.Active && !now.Before(o.StartTime) && now.Before(o.EndTime)
}

// IsRedeemable reports whether the offer is in its window and still has stock.
func (o *Offer) IsRedeemable(now time.Time) bool {
	return o.InWindow(now) && o.RemainingQuantity > 0
}

// CheckAccounting verifies remaining >= 0 and redeemed + remaining == total.
func (o *Offer) CheckAccounting() error {
	if o.RemainingQuantity < 0 || o.RedeemedCount < 0 {
		return fmt.Errorf("%w: offer %s remaining=%d redeemed=%d",
			ErrInvariantViolation, o.ID, o.RemainingQuantity, o.RedeemedCount)
	}
	if o.RedeemedCount+o.RemainingQuantity != o.TotalQuantity {
		return fmt.Errorf("%w: offer %s redeemed=%d + remaining=%d != total=%d",
			ErrInvariantViolation, o.ID, o.RedeemedCount, o.RemainingQuantity, o.TotalQuantity)
	}
	return nil
}

// OfferResponse is the API view of an offer, flattened with its display context.
type OfferResponse struct {
	ID                string          `json:"id"`
	RestaurantName    string          `json:"restaurant_name"`
	BranchAddress     string          `json:"branch_address"`
	BranchDescription string          `json:"branch_description"`
	DistanceKm        *float64        `json:"distance_km,omitempty"`
	DishName          string          `json:"dish_name"`
	DishImage         string          `json:"dish_image"`
	Description       string          `json:"description"`
	Code              string          `json:"code"`
	Currency          string          `json:"currency"`
	OriginalPrice     decimal.Decimal `json:"original_price"`
	DiscountPrice     decimal.Decimal `json:"discount_price"`
	RemainingQuantity int             `json:"remaining_quantity"`
	ValidFrom         time.Time       `json:"valid_from"`
	ValidUntil        time.Time       `json:"valid_until"`
	Active            bool            `json:"active"`
}

// NewOfferResponse builds the API view of an offer.
func NewOfferResponse(o *Offer) OfferResponse {
	return OfferResponse{
		ID:                o.ID,
		RestaurantName:    o.Restaurant.Name,
		BranchAddress:     o.Branch.Address,
		BranchDescription: o.Branch.Description,
		DishName:          o.DishName,
		DishImage:         o.DishImage,
		Description:       o.Description,
		Code:              o.Code,
		Currency:          o.Currency,
		OriginalPrice:     o.OriginalPrice,
		DiscountPrice:     o.DiscountPrice,
		RemainingQuantity: o.RemainingQuantity,
		ValidFrom:         o.StartTime,
		ValidUntil:        o.EndTime,
		Active:            o.Active,
	}
}

// OfferDetailsResponse is the API response DTO for GET /api/offers/:code
type OfferDetailsResponse struct {
	OfferResponse
	TotalQuantity int      `json:"total_quantity"`
	RedeemedCount int      `json:"redeemed_count"`
	RedeemedBy    []string `json:"redeemed_by"`
}

// CreateOfferRequest is the DTO for creating an offer
type CreateOfferRequest struct {
	BranchID      string          `json:"branch_id" validate:"required,notblank,max=255"`
	Code          string          `json:"code" validate:"required,offercode"`
	DishName      string          `json:"dish_name" validate:"required,notblank,max=255"`
	DishImage     string          `json:"dish_image" validate:"omitempty,max=1024"`
	Description   string          `json:"description" validate:"max=2000"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	Currency      string          `json:"currency" validate:"required,notblank,max=8"`
	StartTime     time.Time       `json:"start_time" validate:"required"`
	EndTime       time.Time       `json:"end_time" validate:"required"`
	Quantity      *int            `json:"quantity" validate:"required,gte=1"`
	Active        *bool           `json:"active"`
}

// NearbyRequest is the DTO for a location-based offer search
type NearbyRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// AccountingViolation describes an offer whose counters disagree with each other
// or with its redemption ledger.
type AccountingViolation struct {
	OfferID           string `json:"offer_id"`
	Code              string `json:"code"`
	TotalQuantity     int    `json:"total_quantity"`
	RemainingQuantity int    `json:"remaining_quantity"`
	RedeemedCount     int    `json:"redeemed_count"`
	LedgerCount       int    `json:"ledger_count"`
}
