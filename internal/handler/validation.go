package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	customvalidator "github.com/fairyhunter13/nearby-deals/internal/validator"
)

// formatValidationError turns the first validator error into a client message.
// Field names are the JSON names registered by validator.New.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max":
		return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
	case "gte":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "lte":
		return "invalid request: " + field + " must be at most " + fe.Param()
	case "offercode":
		return fmt.Sprintf("invalid request: %s must be %d-%d characters",
			field, customvalidator.MinCodeLength, customvalidator.MaxCodeLength)
	}
	return "invalid request: " + field + " is invalid"
}
