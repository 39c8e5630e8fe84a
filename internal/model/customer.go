package model

import "time"

// Customer is a chat user who can redeem offers.
type Customer struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EnsureCustomerRequest is the DTO for provisioning a customer on first contact
type EnsureCustomerRequest struct {
	ExternalID string `json:"external_id" validate:"required,notblank,max=255"`
}
