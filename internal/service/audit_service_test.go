package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

func TestAuditService_Audit_Clean(t *testing.T) {
	svc := NewAuditService(&mockOfferRepository{})

	n, err := svc.Audit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAuditService_Audit_ReportsViolations(t *testing.T) {
	repo := &mockOfferRepository{
		listAccountingViolationsFn: func(ctx context.Context) ([]model.AccountingViolation, error) {
			return []model.AccountingViolation{
				{OfferID: "offer-1", Code: "A", TotalQuantity: 10, RemainingQuantity: 5, RedeemedCount: 4, LedgerCount: 4},
				{OfferID: "offer-2", Code: "B", TotalQuantity: 3, RemainingQuantity: 0, RedeemedCount: 3, LedgerCount: 2},
			}, nil
		},
	}
	svc := NewAuditService(repo)

	n, err := svc.Audit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAuditService_Audit_Error(t *testing.T) {
	repo := &mockOfferRepository{
		listAccountingViolationsFn: func(ctx context.Context) ([]model.AccountingViolation, error) {
			return nil, errDB
		},
	}

	n, err := NewAuditService(repo).Audit(context.Background())

	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, errDB)
}
