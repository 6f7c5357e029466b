package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/internal/utils"
)

// AdminChallengeHandler exposes challenge management and lifecycle controls.
type AdminChallengeHandler struct {
	admin     service.ChallengeAdminService
	lifecycle service.ChallengeLifecycleService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminChallengeHandler constructs the handler.
func NewAdminChallengeHandler(admin service.ChallengeAdminService, lifecycle service.ChallengeLifecycleService, validate *validator.Validate, logger zerolog.Logger) *AdminChallengeHandler {
	return &AdminChallengeHandler{
		admin:     admin,
		lifecycle: lifecycle,
		validator: validate,
		logger:    logger.With().Str("component", "admin_challenge_handler").Logger(),
	}
}

// Register wires routes below /admin/challenges.
func (h *AdminChallengeHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/sweep", h.sweep)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/status", h.setStatus)
	router.Post("/:id/leaderboard/rebuild", h.rebuild)
}

func (h *AdminChallengeHandler) create(c *fiber.Ctx) error {
	var req dto.ChallengeCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.admin.Create(c.UserContext(), req)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "create challenge")
	}
	return utils.Created(c, resp, "challenge created")
}

func (h *AdminChallengeHandler) get(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	resp, err := h.admin.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "load challenge")
	}
	return utils.OK(c, resp, "challenge retrieved", nil)
}

func (h *AdminChallengeHandler) delete(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	force := c.QueryBool("force", false)

	if err := h.admin.Delete(c.UserContext(), id, force); err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "delete challenge")
	}
	return utils.OK(c, fiber.Map{"id": id, "force": force}, "challenge deleted", nil)
}

func (h *AdminChallengeHandler) setStatus(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	var req dto.ChallengeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "status must be one of DRAFT, OPEN, VOTING, ENDED")
	}

	resp, err := h.lifecycle.SetStatus(c.UserContext(), id, models.ChallengeStatus(req.Status))
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "update challenge status")
	}
	return utils.OK(c, resp, "challenge status updated", nil)
}

func (h *AdminChallengeHandler) sweep(c *fiber.Ctx) error {
	resp, err := h.lifecycle.Sweep(c.UserContext())
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "run lifecycle sweep")
	}
	return utils.OK(c, resp, "lifecycle sweep completed", nil)
}

func (h *AdminChallengeHandler) rebuild(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	if err := h.admin.RebuildLeaderboard(c.UserContext(), id); err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "rebuild leaderboard")
	}
	return utils.OK(c, fiber.Map{"id": id}, "leaderboard rebuilt", nil)
}
