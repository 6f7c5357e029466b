package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/internal/utils"
)

var kindStatus = map[service.ErrorKind]int{
	service.KindValidation:          fiber.StatusBadRequest,
	service.KindInsufficientBalance: fiber.StatusBadRequest,
	service.KindConflict:            fiber.StatusConflict,
	service.KindNotFound:            fiber.StatusNotFound,
	service.KindPrecondition:        fiber.StatusPreconditionFailed,
	service.KindUnauthorized:        fiber.StatusUnauthorized,
}

// handleError writes business errors with their stable code and hides everything else behind a 500.
func handleError(c *fiber.Ctx, logger *zerolog.Logger, err error, action string) error {
	var businessErr *service.Error
	if errors.As(err, &businessErr) {
		status, ok := kindStatus[businessErr.Kind]
		if !ok {
			status = fiber.StatusBadRequest
		}
		return utils.FailWithCode(c, status, businessErr.Code, businessErr.Message)
	}

	logger.Error().Err(err).Msg("failed to " + action)
	return utils.FailWithCode(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to "+action)
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.FailWithCode(c, fiber.StatusBadRequest, "INVALID_REQUEST", message)
}
