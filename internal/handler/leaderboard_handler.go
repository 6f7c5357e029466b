package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/internal/utils"
)

const maxLeaderboardLimit = 200

// LeaderboardHandler serves the cached challenge leaderboard.
type LeaderboardHandler struct {
	cache        service.LeaderboardCache
	defaultLimit int
	logger       zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(cache service.LeaderboardCache, defaultLimit int, logger zerolog.Logger) *LeaderboardHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &LeaderboardHandler{
		cache:        cache,
		defaultLimit: defaultLimit,
		logger:       logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register wires GET /challenges/:id/leaderboard.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

func (h *LeaderboardHandler) get(c *fiber.Ctx) error {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid challenge id")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return badRequest(c, "invalid limit")
	}
	if limit == 0 {
		limit = h.defaultLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	resp, err := h.cache.Get(c.UserContext(), challengeID, limit)
	if err != nil {
		return handleError(c, requestLogger(h.logger, c), err, "load leaderboard")
	}

	c.Set("X-Cache-Hit", strconv.FormatBool(resp.CacheHit))
	return utils.OK(c, resp, "leaderboard retrieved", nil)
}
