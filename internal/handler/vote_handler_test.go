package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/handler"
	"github.com/noah-isme/challenge-api/internal/service"
)

type stubVoteService struct {
	createErr   error
	challengeID uint
	voterID     uint
	request     dto.VoteRequest
}

func (s *stubVoteService) Create(_ context.Context, challengeID, voterID uint, req dto.VoteRequest) (dto.VoteResponse, error) {
	s.challengeID, s.voterID, s.request = challengeID, voterID, req
	if s.createErr != nil {
		return dto.VoteResponse{}, s.createErr
	}
	return dto.VoteResponse{ID: 1, ChallengeID: challengeID, SubmissionID: req.SubmissionID, VoterID: voterID}, nil
}

func (s *stubVoteService) UpdateMine(_ context.Context, challengeID, voterID uint, req dto.VoteRequest) (dto.VoteResponse, error) {
	return dto.VoteResponse{ChallengeID: challengeID, VoterID: voterID, SubmissionID: req.SubmissionID}, nil
}

func (s *stubVoteService) MyVote(context.Context, uint, uint) (dto.VoteResponse, error) {
	return dto.VoteResponse{}, service.ErrVoteNotFound
}

func (s *stubVoteService) Summary(context.Context, uint) ([]dto.RankingItem, error) {
	return []dto.RankingItem{}, nil
}

func newVoteApp(svc service.VoteService) *fiber.App {
	app := fiber.New()
	handler.NewVoteHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/challenges/:id/votes", asUser(7)))
	return app
}

func TestVoteHandlerCreatePassesCaller(t *testing.T) {
	svc := &stubVoteService{}
	app := newVoteApp(svc)

	payload := dto.VoteRequest{SubmissionID: 3, UiUx: 5, Creativity: 4, CodeQuality: 3, Difficulty: 2}
	resp, body := doJSON(t, app, http.MethodPost, "/challenges/11/votes", payload, nil)

	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, uint(11), svc.challengeID)
	require.Equal(t, uint(7), svc.voterID)
	require.Equal(t, payload, svc.request)
}

func TestVoteHandlerMapsBusinessErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", service.ErrDuplicateVote, fiber.StatusConflict, "DUPLICATE_VOTE"},
		{"self vote", service.ErrSelfVote, fiber.StatusBadRequest, "SELF_VOTE_NOT_ALLOWED"},
		{"closed", service.ErrVotingClosed, fiber.StatusBadRequest, "VOTING_CLOSED"},
		{"login", service.ErrLoginRequired, fiber.StatusUnauthorized, "LOGIN_REQUIRED"},
		{"unexpected", errors.New("connection reset"), fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newVoteApp(&stubVoteService{createErr: tc.err})
			resp, body := doJSON(t, app, http.MethodPost, "/challenges/1/votes", dto.VoteRequest{SubmissionID: 1}, nil)

			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
			require.Equal(t, tc.code, body.Code)
			require.NotContains(t, body.Message, "connection reset")
		})
	}
}

func TestVoteHandlerRejectsBadChallengeID(t *testing.T) {
	app := newVoteApp(&stubVoteService{})

	resp, body := doJSON(t, app, http.MethodGet, "/challenges/abc/votes/me", nil, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", body.Code)

	resp, body = doJSON(t, app, http.MethodGet, "/challenges/4/votes/me", nil, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "VOTE_NOT_FOUND", body.Code)
}
