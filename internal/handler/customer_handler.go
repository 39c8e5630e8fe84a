package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/internal/service"
)

// CustomerServiceInterface defines the interface for customer operations.
type CustomerServiceInterface interface {
	EnsureCustomer(ctx context.Context, externalID string) (*model.Customer, bool, error)
	History(ctx context.Context, customerID string) ([]model.Redemption, error)
}

// CustomerHandler handles HTTP requests for customers.
type CustomerHandler struct {
	service   CustomerServiceInterface
	validator *validator.Validate
}

// NewCustomerHandler creates a new CustomerHandler with the given service and validator.
func NewCustomerHandler(svc CustomerServiceInterface, v *validator.Validate) *CustomerHandler {
	return &CustomerHandler{service: svc, validator: v}
}

// EnsureCustomer handles POST /api/customers. It answers 201 when the customer
// was created and 200 when it already existed.
func (h *CustomerHandler) EnsureCustomer(c *fiber.Ctx) error {
	var req model.EnsureCustomerRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	customer, created, err := h.service.EnsureCustomer(c.Context(), req.ExternalID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().Err(err).Str("external_id", req.ExternalID).Msg("failed to ensure customer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
		log.Info().Str("customer_id", customer.ID).Str("external_id", customer.ExternalID).Msg("customer created")
	}
	return c.Status(status).JSON(customer)
}

// History handles GET /api/customers/:id/redemptions.
func (h *CustomerHandler) History(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id is required"})
	}

	redemptions, err := h.service.History(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		}
		log.Error().Err(err).Str("customer_id", id).Msg("failed to get redemption history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(redemptions)
}
