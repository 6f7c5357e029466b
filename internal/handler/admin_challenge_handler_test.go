package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/handler"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/service"
)

type stubLifecycleService struct {
	service.ChallengeLifecycleService

	calls     int
	requested models.ChallengeStatus
	err       error
}

func (s *stubLifecycleService) SetStatus(_ context.Context, id uint, next models.ChallengeStatus) (dto.ChallengeResponse, error) {
	s.calls++
	s.requested = next
	if s.err != nil {
		return dto.ChallengeResponse{}, s.err
	}
	return dto.ChallengeResponse{ID: id, Status: string(next)}, nil
}

type stubChallengeAdminService struct {
	service.ChallengeAdminService

	deletedID uint
	force     bool
	err       error
}

func (s *stubChallengeAdminService) Delete(_ context.Context, id uint, force bool) error {
	s.deletedID, s.force = id, force
	return s.err
}

func newAdminChallengeApp(admin service.ChallengeAdminService, lifecycle service.ChallengeLifecycleService) *fiber.App {
	app := fiber.New()
	handler.NewAdminChallengeHandler(admin, lifecycle, validator.New(), zerolog.New(io.Discard)).Register(app.Group("/admin/challenges"))
	return app
}

func TestAdminChallengeHandlerStatusOverride(t *testing.T) {
	lifecycle := &stubLifecycleService{}
	app := newAdminChallengeApp(&stubChallengeAdminService{}, lifecycle)

	resp, body := doJSON(t, app, http.MethodPatch, "/admin/challenges/5/status", dto.ChallengeStatusRequest{Status: "VOTING"}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.ChallengeStatusVoting, lifecycle.requested)

	var data dto.ChallengeResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Equal(t, uint(5), data.ID)
	require.Equal(t, "VOTING", data.Status)
}

func TestAdminChallengeHandlerStatusOverrideRejections(t *testing.T) {
	lifecycle := &stubLifecycleService{}
	app := newAdminChallengeApp(&stubChallengeAdminService{}, lifecycle)

	resp, body := doJSON(t, app, http.MethodPatch, "/admin/challenges/5/status", dto.ChallengeStatusRequest{Status: "ARCHIVED"}, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", body.Code)
	require.Zero(t, lifecycle.calls)

	lifecycle.err = service.ErrChallengeNotFound
	resp, body = doJSON(t, app, http.MethodPatch, "/admin/challenges/5/status", dto.ChallengeStatusRequest{Status: "ENDED"}, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "CHALLENGE_NOT_FOUND", body.Code)
	require.Equal(t, 1, lifecycle.calls)
}

func TestAdminChallengeHandlerDeleteForce(t *testing.T) {
	admin := &stubChallengeAdminService{}
	app := newAdminChallengeApp(admin, &stubLifecycleService{})

	resp, _ := doJSON(t, app, http.MethodDelete, "/admin/challenges/9?force=true", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(9), admin.deletedID)
	require.True(t, admin.force)

	admin.err = service.ErrHasDependencies
	resp, body := doJSON(t, app, http.MethodDelete, "/admin/challenges/9", nil, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "HAS_DEPENDENCIES", body.Code)
	require.False(t, admin.force)
}
