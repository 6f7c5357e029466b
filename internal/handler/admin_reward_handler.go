package handler

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/internal/utils"
)

// AdminRewardHandler exposes result publication and manual payouts.
type AdminRewardHandler struct {
	service   service.RewardService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminRewardHandler constructs the handler.
func NewAdminRewardHandler(service service.RewardService, validate *validator.Validate, logger zerolog.Logger) *AdminRewardHandler {
	return &AdminRewardHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "admin_reward_handler").Logger(),
	}
}

// Register wires routes below /admin/rewards.
func (h *AdminRewardHandler) Register(router fiber.Router) {
	router.Post("/:id/publish-results", h.publish)
	router.Post("/:id/publish-results/default", h.publishDefault)
	router.Post("/:id/custom", h.custom)
	router.Get("/:id/preview", h.preview)
	router.Get("/:id/payouts", h.payouts)
	router.Get("/:id/published", h.published)
}

func (h *AdminRewardHandler) publish(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	var req dto.RewardRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "top amounts must be positive and participant must not be negative")
	}

	resp, err := h.service.PublishResults(c.UserContext(), id, service.NewRewardRule(req), req.WeekRef)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "publish results")
	}
	return utils.OK(c, resp, "results published", nil)
}

func (h *AdminRewardHandler) publishDefault(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}

	resp, err := h.service.PublishResults(c.UserContext(), id, service.DefaultRewardRule(), "")
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "publish results")
	}
	return utils.OK(c, resp, "results published", fiber.Map{"default": true})
}

func (h *AdminRewardHandler) custom(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	var req dto.CustomPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = strings.TrimSpace(c.Get("Idempotency-Key"))
	}

	changed, err := h.service.PublishCustomPayout(c.UserContext(), id, req)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "publish custom payout")
	}
	return utils.OK(c, dto.PublishResponse{ChallengeID: id, Paid: changed}, "custom payout recorded", nil)
}

// preview accepts ?top=10000,5000&participant=500&week=2025-W10; without top or participant the default rule applies.
func (h *AdminRewardHandler) preview(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}

	rule := service.DefaultRewardRule()
	rawTop := strings.TrimSpace(c.Query("top"))
	rawParticipant := strings.TrimSpace(c.Query("participant"))
	if rawTop != "" || rawParticipant != "" {
		rule = service.RewardRule{}
		for _, part := range strings.Split(rawTop, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			amount, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return badRequest(c, "invalid top amounts")
			}
			rule.Top = append(rule.Top, amount)
		}
		if rawParticipant != "" {
			participant, err := strconv.ParseInt(rawParticipant, 10, 64)
			if err != nil {
				return badRequest(c, "invalid participant amount")
			}
			rule.Participant = participant
		}
	}

	resp, err := h.service.Preview(c.UserContext(), id, rule, c.Query("week"))
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "preview payouts")
	}
	return utils.OK(c, resp, "payout preview computed", nil)
}

func (h *AdminRewardHandler) payouts(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}

	items, err := h.service.ListPayouts(c.UserContext(), id)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "list payouts")
	}
	return utils.OK(c, items, "payouts retrieved", fiber.Map{"count": len(items)})
}

func (h *AdminRewardHandler) published(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}

	published, err := h.service.IsPublished(c.UserContext(), id)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "check publication")
	}
	return utils.OK(c, fiber.Map{"challenge_id": id, "published": published}, "publication status retrieved", nil)
}
