package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

// CustomerService provisions customers and reads their history.
type CustomerService struct {
	customerRepo   CustomerRepositoryInterface
	redemptionRepo RedemptionRepositoryInterface
	now            func() time.Time
}

// NewCustomerService creates a new CustomerService.
func NewCustomerService(customerRepo CustomerRepositoryInterface, redemptionRepo RedemptionRepositoryInterface) *CustomerService {
	return &CustomerService{
		customerRepo:   customerRepo,
		redemptionRepo: redemptionRepo,
		now:            time.Now,
	}
}

// EnsureCustomer returns the customer for externalID, creating it on first contact.
// created reports whether this call created it.
func (s *CustomerService) EnsureCustomer(ctx context.Context, externalID string) (*model.Customer, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, false, ErrInvalidRequest
	}

	customer, created, err := s.customerRepo.Ensure(ctx, &model.Customer{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		LastActive: s.now(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("ensure customer: %w", err)
	}
	return customer, created, nil
}

// History returns the customer's redemptions, newest first.
// Returns ErrCustomerNotFound if the customer doesn't exist.
func (s *CustomerService) History(ctx context.Context, customerID string) ([]model.Redemption, error) {
	if _, err := s.customerRepo.GetByID(ctx, customerID); err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	redemptions, err := s.redemptionRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get redemptions: %w", err)
	}
	return redemptions, nil
}
