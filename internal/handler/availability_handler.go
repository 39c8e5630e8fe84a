package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

// AvailabilityServiceInterface defines the interface for availability queries.
type AvailabilityServiceInterface interface {
	ListActiveOffers(ctx context.Context, candidateIDs []string) ([]model.Offer, error)
	FindNearby(ctx context.Context, latitude, longitude float64) ([]model.OfferResponse, error)
}

// AvailabilityHandler handles HTTP requests for redeemable offers.
type AvailabilityHandler struct {
	service   AvailabilityServiceInterface
	validator *validator.Validate
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(svc AvailabilityServiceInterface, v *validator.Validate) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc, validator: v}
}

// ListActive handles GET /api/offers/active.
// The optional candidate_ids query parameter is a comma-separated id list; when
// present but empty no offer matches.
func (h *AvailabilityHandler) ListActive(c *fiber.Ctx) error {
	var candidateIDs []string
	if c.Context().QueryArgs().Has("candidate_ids") {
		candidateIDs = parseIDList(c.Query("candidate_ids"))
	}

	offers, err := h.service.ListActiveOffers(c.Context(), candidateIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to list active offers")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service temporarily unavailable"})
	}

	resp := make([]model.OfferResponse, 0, len(offers))
	for i := range offers {
		resp = append(resp, model.NewOfferResponse(&offers[i]))
	}
	return c.JSON(resp)
}

// FindNearby handles POST /api/offers/nearby.
func (h *AvailabilityHandler) FindNearby(c *fiber.Ctx) error {
	var req model.NearbyRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	offers, err := h.service.FindNearby(c.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		log.Error().Err(err).Msg("failed to find nearby offers")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service temporarily unavailable"})
	}
	return c.JSON(offers)
}

func parseIDList(raw string) []string {
	ids := []string{}
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
