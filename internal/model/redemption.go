package model

import "time"

// Redemption records that a customer consumed one unit of an offer.
// At most one exists per (OfferID, CustomerID).
type Redemption struct {
	ID         string    `json:"id"`
	OfferID    string    `json:"offer_id"`
	CustomerID string    `json:"customer_id"`
	OfferCode  string    `json:"offer_code,omitempty"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// Outcome is the discriminant of a redemption attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCodeNotFound
	OutcomeAlreadyRedeemed
	OutcomeCodeExpiredOrInactive
	OutcomeQuantityExhausted
	OutcomeStoreUnavailable
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:               "success",
	OutcomeCodeNotFound:          "code_not_found",
	OutcomeAlreadyRedeemed:       "already_redeemed",
	OutcomeCodeExpiredOrInactive: "code_expired_or_inactive",
	OutcomeQuantityExhausted:     "quantity_exhausted",
	OutcomeStoreUnavailable:      "store_unavailable",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether the caller may retry the attempt with backoff.
func (o Outcome) Retryable() bool {
	return o == OutcomeStoreUnavailable
}

// RedeemResult is the result of a redemption attempt.
// Offer and RedeemedAt are only set when Outcome is OutcomeSuccess.
type RedeemResult struct {
	Outcome    Outcome
	Offer      *Offer
	RedeemedAt time.Time
}

// Succeeded reports whether the redemption committed.
func (r RedeemResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// RedeemRequest is the DTO for redeeming a code
type RedeemRequest struct {
	CustomerID string `json:"customer_id" validate:"required,notblank,max=255"`
	Code       string `json:"code" validate:"required,offercode"`
}

// RedemptionResponse is the API response DTO for a successful redemption
type RedemptionResponse struct {
	OfferResponse
	RedemptionDate time.Time `json:"redemption_date"`
}
