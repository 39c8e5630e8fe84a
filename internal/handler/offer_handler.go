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

// OfferServiceInterface defines the interface for offer administration.
type OfferServiceInterface interface {
	Create(ctx context.Context, req *model.CreateOfferRequest) (*model.Offer, error)
	GetByCode(ctx context.Context, code string) (*model.OfferDetailsResponse, error)
}

// OfferHandler handles HTTP requests for offer administration.
type OfferHandler struct {
	service   OfferServiceInterface
	validator *validator.Validate
}

// NewOfferHandler creates a new OfferHandler with the given service and validator.
func NewOfferHandler(svc OfferServiceInterface, v *validator.Validate) *OfferHandler {
	return &OfferHandler{service: svc, validator: v}
}

// CreateOffer handles POST /api/offers requests to create a new offer.
func (h *OfferHandler) CreateOffer(c *fiber.Ctx) error {
	var req model.CreateOfferRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	offer, err := h.service.Create(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOfferExists):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "offer code already exists"})
		case errors.Is(err, service.ErrBranchNotFound):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "branch not found"})
		case errors.Is(err, service.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().Err(err).Str("code", req.Code).Msg("failed to create offer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("offer_id", offer.ID).
		Str("code", offer.Code).
		Int("total_quantity", offer.TotalQuantity).
		Msg("offer created")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":             offer.ID,
		"code":           offer.Code,
		"total_quantity": offer.TotalQuantity,
	})
}

// GetOffer handles GET /api/offers/:code requests to retrieve offer details.
func (h *OfferHandler) GetOffer(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: code is required",
		})
	}

	offer, err := h.service.GetByCode(c.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrOfferNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "offer not found",
			})
		}
		log.Error().Err(err).Str("code", code).Msg("failed to get offer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	log.Debug().
		Str("code", offer.Code).
		Int("remaining_quantity", offer.RemainingQuantity).
		Int("redemptions", len(offer.RedeemedBy)).
		Msg("offer retrieved")

	return c.JSON(offer)
}
