package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/observability"
	"github.com/noah-isme/challenge-api/internal/repository"
)

// ChallengeAdminService manages challenge records on behalf of administrators.
type ChallengeAdminService interface {
	Create(ctx context.Context, req dto.ChallengeCreateRequest) (dto.ChallengeResponse, error)
	Get(ctx context.Context, id uint) (dto.ChallengeResponse, error)
	Delete(ctx context.Context, id uint, force bool) error
	RebuildLeaderboard(ctx context.Context, id uint) error
}

type challengeAdminService struct {
	challenges repository.ChallengeRepository
	rewards    repository.RewardRepository
	cache      LeaderboardCache
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewChallengeAdminService constructs the admin service.
func NewChallengeAdminService(challenges repository.ChallengeRepository, rewards repository.RewardRepository, cache LeaderboardCache, validate *validator.Validate, logger zerolog.Logger) ChallengeAdminService {
	if validate == nil {
		validate = validator.New()
	}
	return &challengeAdminService{
		challenges: challenges,
		rewards:    rewards,
		cache:      cache,
		validator:  validate,
		logger:     logger.With().Str("component", "challenge_admin_service").Logger(),
	}
}

func (s *challengeAdminService) Create(ctx context.Context, req dto.ChallengeCreateRequest) (dto.ChallengeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			field := validationErrors[0]
			if field.Field() == "Type" {
				return dto.ChallengeResponse{}, withDetail(ErrUnknownType, "%v", field.Value())
			}
			return dto.ChallengeResponse{}, withDetail(ErrInvalidRequest, "%s failed %s", field.Field(), field.Tag())
		}
		return dto.ChallengeResponse{}, ErrInvalidRequest
	}

	challenge := models.Challenge{
		Type:            models.ChallengeType(req.Type),
		Title:           strings.TrimSpace(req.Title),
		Summary:         strings.TrimSpace(req.Summary),
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt.UTC(),
		VoteStartAt:     utcPtr(req.VoteStartAt),
		VoteEndAt:       utcPtr(req.VoteEndAt),
		Status:          models.ChallengeStatusDraft,
		ExternalWeekRef: strings.TrimSpace(req.ExternalWeekRef),
	}

	switch challenge.Type {
	case models.ChallengeTypePortfolio:
		if challenge.VoteStartAt == nil || challenge.VoteEndAt == nil {
			return dto.ChallengeResponse{}, withDetail(ErrTimeWindowInvalid, "portfolio challenges need a vote window")
		}
	case models.ChallengeTypeCode:
		if challenge.VoteStartAt != nil || challenge.VoteEndAt != nil {
			return dto.ChallengeResponse{}, withDetail(ErrTimeWindowInvalid, "code challenges have no vote window")
		}
	default:
		return dto.ChallengeResponse{}, withDetail(ErrUnknownType, "%s", challenge.Type)
	}
	if err := challenge.ValidateWindow(); err != nil {
		return dto.ChallengeResponse{}, ErrTimeWindowInvalid
	}

	if err := s.challenges.Create(ctx, &challenge); err != nil {
		return dto.ChallengeResponse{}, fmt.Errorf("create challenge: %w", err)
	}

	s.logger.Info().Uint("challenge_id", challenge.ID).Str("type", string(challenge.Type)).Msg("challenge created")
	return dto.NewChallengeResponse(challenge), nil
}

func (s *challengeAdminService) Get(ctx context.Context, id uint) (dto.ChallengeResponse, error) {
	challenge, err := s.getChallenge(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	return dto.NewChallengeResponse(challenge), nil
}

// Delete removes a challenge. Published challenges are never deleted; challenges with submissions
// or votes are deleted only with force, which removes those too.
func (s *challengeAdminService) Delete(ctx context.Context, id uint, force bool) error {
	if _, err := s.getChallenge(ctx, id); err != nil {
		return err
	}

	published, err := s.rewards.HasPayouts(ctx, id)
	if err != nil {
		return err
	}
	if published {
		return ErrCannotDelete
	}

	submissions, votes, err := s.challenges.CountDependencies(ctx, id)
	if err != nil {
		return err
	}
	if (submissions > 0 || votes > 0) && !force {
		return withDetail(ErrHasDependencies, "%d submissions, %d votes", submissions, votes)
	}

	if err := s.challenges.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("delete challenge: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}

	s.logger.Info().
		Uint("challenge_id", id).
		Bool("force", force).
		Int64("submissions", submissions).
		Int64("votes", votes).
		Msg("challenge deleted")
	return nil
}

func (s *challengeAdminService) RebuildLeaderboard(ctx context.Context, id uint) error {
	if _, err := s.getChallenge(ctx, id); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	observability.LeaderboardRebuilds().WithLabelValues("manual").Inc()
	return s.cache.Rebuild(ctx, id)
}

func (s *challengeAdminService) getChallenge(ctx context.Context, id uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	return challenge, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
