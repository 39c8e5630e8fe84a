package service

import (
	"errors"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

var (
	// ErrOfferExists is returned when attempting to create an offer whose code is taken
	ErrOfferExists = errors.New("offer code already exists")

	// ErrOfferNotFound is returned when no offer matches a code
	ErrOfferNotFound = errors.New("offer not found")

	// ErrBranchNotFound is returned when an offer references an unknown branch
	ErrBranchNotFound = errors.New("branch not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyRedeemed is returned when the customer already holds a redemption for the offer
	ErrAlreadyRedeemed = errors.New("offer already redeemed by customer")

	// ErrOfferNotRedeemable is returned when the offer is inactive or outside its time window
	ErrOfferNotRedeemable = errors.New("offer expired or inactive")

	// ErrQuantityExhausted is returned when a conditional decrement finds no remaining units
	ErrQuantityExhausted = errors.New("offer quantity exhausted")

	// ErrCustomerNotFound is returned when a customer id is unknown
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvariantViolation marks broken quantity accounting
	ErrInvariantViolation = model.ErrInvariantViolation
)

// IsRetryable reports whether err is a transient store failure that a caller may
// retry with backoff. Business outcomes are never retryable.
func IsRetryable(err error) bool {
	return database.IsTransient(err)
}
