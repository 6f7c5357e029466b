package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/internal/utils"
)

// VoteHandler exposes portfolio voting.
type VoteHandler struct {
	service service.VoteService
	logger  zerolog.Logger
}

// NewVoteHandler constructs the handler.
func NewVoteHandler(service service.VoteService, logger zerolog.Logger) *VoteHandler {
	return &VoteHandler{
		service: service,
		logger:  logger.With().Str("component", "vote_handler").Logger(),
	}
}

// Register wires vote routes below /challenges/:id/votes. Every route needs an authenticated caller.
func (h *VoteHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Put("/me", h.updateMine)
	router.Get("/me", h.mine)
	router.Get("/summary", h.summary)
}

func (h *VoteHandler) create(c *fiber.Ctx) error {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	var req dto.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.service.Create(c.UserContext(), challengeID, currentUserID(c), req)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "record vote")
	}
	return utils.Created(c, resp, "vote recorded")
}

func (h *VoteHandler) updateMine(c *fiber.Ctx) error {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	var req dto.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.service.UpdateMine(c.UserContext(), challengeID, currentUserID(c), req)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "update vote")
	}
	return utils.OK(c, resp, "vote updated", nil)
}

func (h *VoteHandler) mine(c *fiber.Ctx) error {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}

	resp, err := h.service.MyVote(c.UserContext(), challengeID, currentUserID(c))
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "load vote")
	}
	return utils.OK(c, resp, "vote retrieved", nil)
}

func (h *VoteHandler) summary(c *fiber.Ctx) error {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}

	items, err := h.service.Summary(c.UserContext(), challengeID)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "summarise votes")
	}
	return utils.OK(c, items, "vote summary retrieved", fiber.Map{"count": len(items)})
}
