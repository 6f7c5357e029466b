package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/internal/utils"
)

// CreditHandler exposes the caller's wallet.
type CreditHandler struct {
	service service.CreditService
	logger  zerolog.Logger
}

// NewCreditHandler constructs the handler.
func NewCreditHandler(service service.CreditService, logger zerolog.Logger) *CreditHandler {
	return &CreditHandler{
		service: service,
		logger:  logger.With().Str("component", "credit_handler").Logger(),
	}
}

// Register wires routes below /me.
func (h *CreditHandler) Register(router fiber.Router, spendLimiter fiber.Handler) {
	router.Get("/credits", h.summary)
	router.Get("/rewards", h.rewards)
	if spendLimiter != nil {
		router.Post("/credits/spend", spendLimiter, h.spend)
		return
	}
	router.Post("/credits/spend", h.spend)
}

func (h *CreditHandler) summary(c *fiber.Ctx) error {
	resp, err := h.service.Summary(c.UserContext(), currentUserID(c))
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "load credits")
	}
	return utils.OK(c, resp, "credits retrieved", nil)
}

func (h *CreditHandler) rewards(c *fiber.Ctx) error {
	items, err := h.service.Rewards(c.UserContext(), currentUserID(c))
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "load rewards")
	}
	return utils.OK(c, items, "rewards retrieved", fiber.Map{"count": len(items)})
}

func (h *CreditHandler) spend(c *fiber.Ctx) error {
	var req dto.SpendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.service.Spend(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "spend credits")
	}
	return utils.OK(c, resp, "credits spent", nil)
}
