package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/events"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/repository"
)

// AutoPublishConfig controls automatic result publication when a challenge ends.
type AutoPublishConfig struct {
	Enabled bool
	DryRun  bool
	Delay   time.Duration
	Rule    RewardRule
}

// RewardAutoPublisher publishes results for challenges that have just ended. It runs after the
// transition has committed and never reports failures back to the lifecycle.
type RewardAutoPublisher struct {
	rewards    RewardService
	challenges repository.ChallengeRepository
	config     AutoPublishConfig
	logger     zerolog.Logger
	pending    sync.WaitGroup
}

// NewRewardAutoPublisher constructs the bridge.
func NewRewardAutoPublisher(rewards RewardService, challenges repository.ChallengeRepository, cfg AutoPublishConfig, logger zerolog.Logger) *RewardAutoPublisher {
	return &RewardAutoPublisher{
		rewards:    rewards,
		challenges: challenges,
		config:     cfg,
		logger:     logger.With().Str("component", "reward_auto_publisher").Logger(),
	}
}

// HandleLifecycle matches events.Handler. It always returns nil.
func (p *RewardAutoPublisher) HandleLifecycle(ctx context.Context, event events.LifecycleEvent) error {
	if !p.config.Enabled || event.Next != models.ChallengeStatusEnded {
		return nil
	}

	jobCtx := context.WithoutCancel(ctx)
	p.pending.Add(1)
	if p.config.Delay > 0 {
		time.AfterFunc(p.config.Delay, func() {
			defer p.pending.Done()
			p.run(jobCtx, event)
		})
		p.logger.Info().Uint("challenge_id", event.ChallengeID).Dur("delay", p.config.Delay).Msg("reward publication scheduled")
		return nil
	}

	defer p.pending.Done()
	p.run(jobCtx, event)
	return nil
}

// Wait blocks until scheduled publications have finished.
func (p *RewardAutoPublisher) Wait() {
	p.pending.Wait()
}

func (p *RewardAutoPublisher) run(ctx context.Context, event events.LifecycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Uint("challenge_id", event.ChallengeID).Str("panic", fmt.Sprint(r)).Msg("reward auto publish panicked")
		}
	}()

	if err := p.publish(ctx, event); err != nil {
		p.logger.Warn().Err(err).Uint("challenge_id", event.ChallengeID).Str("type", string(event.Type)).Msg("reward auto publish failed")
	}
}

func (p *RewardAutoPublisher) publish(ctx context.Context, event events.LifecycleEvent) error {
	challenge, err := p.challenges.GetByID(ctx, event.ChallengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChallengeNotFound
		}
		return err
	}

	var weekRef string
	switch challenge.Type {
	case models.ChallengeTypePortfolio:
	case models.ChallengeTypeCode:
		weekRef = strings.TrimSpace(challenge.ExternalWeekRef)
		if weekRef == "" {
			p.logger.Info().Uint("challenge_id", challenge.ID).Msg("code challenge has no week reference, auto publish skipped")
			return nil
		}
	default:
		return withDetail(ErrUnknownType, "%s", challenge.Type)
	}

	rule := p.config.Rule
	if p.config.DryRun {
		preview, err := p.rewards.Preview(ctx, challenge.ID, rule, weekRef)
		if err != nil {
			return err
		}
		p.logger.Info().
			Uint("challenge_id", challenge.ID).
			Str("type", string(challenge.Type)).
			Interface("top", rule.Top).
			Int64("participant", rule.Participant).
			Int("ranking_size", preview.RankingSize).
			Int("planned", len(preview.Payouts)).
			Msg("reward auto publish dry run")
		return nil
	}

	var inserted int64
	switch challenge.Type {
	case models.ChallengeTypePortfolio:
		inserted, err = p.rewards.PublishPortfolioResults(ctx, challenge.ID, rule)
	case models.ChallengeTypeCode:
		inserted, err = p.rewards.PublishCodeResults(ctx, challenge.ID, rule, weekRef)
	}
	if err != nil {
		return err
	}

	p.logger.Info().
		Uint("challenge_id", challenge.ID).
		Str("type", string(challenge.Type)).
		Int64("inserted", inserted).
		Msg("reward auto publish completed")
	return nil
}
