package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/events"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/observability"
	"github.com/noah-isme/challenge-api/internal/repository"
)

// EventDispatcher receives lifecycle events once the transition that produced them has committed.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event events.LifecycleEvent)
}

// ChallengeLifecycleService advances challenges through DRAFT, OPEN, VOTING and ENDED.
type ChallengeLifecycleService interface {
	AdvanceStatus(ctx context.Context, id uint, expected, next models.ChallengeStatus) (int64, error)
	SetStatus(ctx context.Context, id uint, next models.ChallengeStatus) (dto.ChallengeResponse, error)
	Sweep(ctx context.Context) (dto.SweepResponse, error)
}

type challengeLifecycleService struct {
	challenges repository.ChallengeRepository
	dispatcher EventDispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewChallengeLifecycleService constructs the lifecycle service.
func NewChallengeLifecycleService(challenges repository.ChallengeRepository, dispatcher EventDispatcher, logger zerolog.Logger) ChallengeLifecycleService {
	return &challengeLifecycleService{
		challenges: challenges,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "challenge_lifecycle_service").Logger(),
		now:        time.Now,
	}
}

// AdvanceStatus is the compare-and-set transition. A zero result means another caller won and is not an error.
func (s *challengeLifecycleService) AdvanceStatus(ctx context.Context, id uint, expected, next models.ChallengeStatus) (int64, error) {
	challenge, err := s.getChallenge(ctx, id)
	if err != nil {
		return 0, err
	}
	if !models.CanTransition(challenge.Type, expected, next) {
		return 0, withDetail(ErrInvalidTransition, "%s cannot move from %s to %s", challenge.Type, expected, next)
	}
	return s.advance(ctx, challenge, expected, next)
}

// SetStatus is the administrative override. Any target status is accepted; the write still
// compares against the currently stored status and raises the same lifecycle event.
func (s *challengeLifecycleService) SetStatus(ctx context.Context, id uint, next models.ChallengeStatus) (dto.ChallengeResponse, error) {
	challenge, err := s.getChallenge(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	if !next.Valid() {
		return dto.ChallengeResponse{}, withDetail(ErrInvalidTransition, "unknown status %s", next)
	}
	if challenge.Status == next {
		return dto.NewChallengeResponse(challenge), nil
	}

	changed, err := s.advance(ctx, challenge, challenge.Status, next)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	if changed == 0 {
		s.logger.Info().Uint("challenge_id", id).Msg("status changed concurrently, override skipped")
	}

	updated, err := s.getChallenge(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	return dto.NewChallengeResponse(updated), nil
}

// Sweep evaluates every unfinished challenge against the clock and walks it through all due transitions.
func (s *challengeLifecycleService) Sweep(ctx context.Context) (dto.SweepResponse, error) {
	challenges, err := s.challenges.ListUnfinished(ctx)
	if err != nil {
		return dto.SweepResponse{}, fmt.Errorf("list unfinished challenges: %w", err)
	}

	result := dto.SweepResponse{Examined: len(challenges)}
	now := s.now()
	for _, challenge := range challenges {
		for {
			next, due := challenge.DueTransition(now)
			if !due {
				break
			}
			changed, err := s.advance(ctx, challenge, challenge.Status, next)
			if err != nil {
				s.logger.Error().Err(err).Uint("challenge_id", challenge.ID).Msg("lifecycle transition failed")
				break
			}
			if changed == 0 {
				result.Lost++
				break
			}
			result.Advanced++
			challenge.Status = next
		}
	}

	if result.Advanced > 0 || result.Lost > 0 {
		s.logger.Info().
			Int("examined", result.Examined).
			Int("advanced", result.Advanced).
			Int("lost", result.Lost).
			Msg("lifecycle sweep completed")
	}
	return result, nil
}

func (s *challengeLifecycleService) advance(ctx context.Context, challenge models.Challenge, expected, next models.ChallengeStatus) (int64, error) {
	tracer := otel.Tracer("github.com/noah-isme/challenge-api/internal/service/challenge_lifecycle")
	ctx, span := tracer.Start(ctx, "challenge.advance_status")
	span.SetAttributes(
		attribute.Int64("challenge.id", int64(challenge.ID)),
		attribute.String("challenge.from", string(expected)),
		attribute.String("challenge.to", string(next)),
	)
	defer span.End()

	switch challenge.Type {
	case models.ChallengeTypePortfolio, models.ChallengeTypeCode:
	default:
		return 0, withDetail(ErrUnknownType, "%s", challenge.Type)
	}
	var changed int64
	var raised []events.LifecycleEvent
	err := s.challenges.Transaction(ctx, func(tx repository.ChallengeRepository) error {
		rows, err := tx.AdvanceStatus(ctx, challenge.ID, expected, next, s.now())
		if err != nil {
			return err
		}
		changed = rows
		if rows == 1 {
			raised = append(raised, events.NewLifecycleEvent(challenge.ID, challenge.Type, expected, next, s.now()))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return 0, fmt.Errorf("advance challenge %d: %w", challenge.ID, err)
	}

	outcome := "won"
	if changed == 0 {
		outcome = "lost"
	}
	observability.LifecycleTransitions().WithLabelValues(string(expected), string(next), outcome).Inc()
	span.SetAttributes(attribute.Int64("challenge.rows_changed", changed))

	for _, event := range raised {
		s.logger.Info().
			Uint("challenge_id", event.ChallengeID).
			Str("previous", string(event.Previous)).
			Str("next", string(event.Next)).
			Msg("challenge status advanced")
		if s.dispatcher != nil {
			s.dispatcher.Dispatch(ctx, event)
		}
	}
	return changed, nil
}

func (s *challengeLifecycleService) getChallenge(ctx context.Context, id uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	return challenge, nil
}
