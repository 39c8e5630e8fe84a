package handler

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/nearby-deals/internal/model"
	"github.com/fairyhunter13/nearby-deals/internal/service"
)

// RedemptionServiceInterface defines the interface for redeeming codes.
type RedemptionServiceInterface interface {
	Redeem(ctx context.Context, code, customerID string, now time.Time) (model.RedeemResult, error)
}

// RedemptionHandler handles HTTP requests for redemptions.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
	now       func() time.Time
}

// NewRedemptionHandler creates a new RedemptionHandler with the given service and validator.
func NewRedemptionHandler(svc RedemptionServiceInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, validator: v, now: time.Now}
}

// outcomeStatus maps rejected outcomes to HTTP status codes and messages.
var outcomeStatus = map[model.Outcome]struct {
	status  int
	message string
}{
	model.OutcomeCodeNotFound:          {fiber.StatusNotFound, "offer code not found"},
	model.OutcomeAlreadyRedeemed:       {fiber.StatusConflict, "offer already redeemed by customer"},
	model.OutcomeCodeExpiredOrInactive: {fiber.StatusUnprocessableEntity, "offer expired or inactive"},
	model.OutcomeQuantityExhausted:     {fiber.StatusBadRequest, "offer out of stock"},
	model.OutcomeStoreUnavailable:      {fiber.StatusServiceUnavailable, "service temporarily unavailable, please retry"},
}

// Redeem handles POST /api/redemptions requests.
func (h *RedemptionHandler) Redeem(c *fiber.Ctx) error {
	var req model.RedeemRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	result, err := h.service.Redeem(c.Context(), req.Code, req.CustomerID, h.now())
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("customer_id", req.CustomerID).
			Str("code", req.Code).
			Msg("failed to redeem offer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	if !result.Succeeded() {
		mapped, ok := outcomeStatus[result.Outcome]
		if !ok {
			mapped.status, mapped.message = fiber.StatusInternalServerError, "internal server error"
		}
		if result.Outcome.Retryable() {
			c.Set(fiber.HeaderRetryAfter, "1")
		}
		return c.Status(mapped.status).JSON(fiber.Map{
			"error":   mapped.message,
			"outcome": result.Outcome.String(),
		})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("customer_id", req.CustomerID).
		Str("code", req.Code).
		Str("offer_id", result.Offer.ID).
		Msg("offer redeemed successfully")

	return c.Status(fiber.StatusOK).JSON(model.RedemptionResponse{
		OfferResponse:  model.NewOfferResponse(result.Offer),
		RedemptionDate: result.RedeemedAt,
	})
}
