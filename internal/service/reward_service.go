package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/observability"
	"github.com/noah-isme/challenge-api/internal/ranking"
	"github.com/noah-isme/challenge-api/internal/repository"
	"github.com/noah-isme/challenge-api/pkg/judge"
)

// RewardRule pays Top[i] to rank i+1 and, when Participant is positive, a flat amount to everyone else who took part.
type RewardRule struct {
	Top         []int64
	Participant int64
}

// DefaultRewardRule is the standard payout table.
func DefaultRewardRule() RewardRule {
	return RewardRule{Top: []int64{10000, 5000, 3000}, Participant: 500}
}

// NewRewardRule copies an admin-supplied rule.
func NewRewardRule(req dto.RewardRuleRequest) RewardRule {
	top := make([]int64, len(req.Top))
	copy(top, req.Top)
	return RewardRule{Top: top, Participant: req.Participant}
}

func (r RewardRule) validate() error {
	for i, amount := range r.Top {
		if amount <= 0 {
			return withDetail(ErrInvalidAmount, "top[%d]=%d", i, amount)
		}
	}
	if r.Participant < 0 {
		return withDetail(ErrInvalidAmount, "participant=%d", r.Participant)
	}
	return nil
}

// WeeklyLeaderboardSource supplies the external ranking for CODE challenges.
type WeeklyLeaderboardSource interface {
	WeeklyLeaderboard(ctx context.Context, weekRef string) (judge.Leaderboard, error)
}

// RewardConfig toggles the credit side effects of payouts.
type RewardConfig struct {
	ApplyCredits   bool
	IdempotencyTTL time.Duration
}

// RewardService publishes challenge results as payouts and credits.
type RewardService interface {
	PublishPortfolioResults(ctx context.Context, challengeID uint, rule RewardRule) (int64, error)
	PublishCodeResults(ctx context.Context, challengeID uint, rule RewardRule, weekRef string) (int64, error)
	PublishCustomPayout(ctx context.Context, challengeID uint, req dto.CustomPayoutRequest) (int64, error)
	PublishResults(ctx context.Context, challengeID uint, rule RewardRule, weekRef string) (dto.PublishResponse, error)
	Preview(ctx context.Context, challengeID uint, rule RewardRule, weekRef string) (dto.RewardPreview, error)
	IsPublished(ctx context.Context, challengeID uint) (bool, error)
	ListPayouts(ctx context.Context, challengeID uint) ([]dto.PayoutResponse, error)
}

type rewardService struct {
	challenges  repository.ChallengeRepository
	submissions repository.SubmissionRepository
	votes       repository.VoteRepository
	users       repository.UserRepository
	rewards     repository.RewardRepository
	judge       WeeklyLeaderboardSource
	locks       *redis.Client
	config      RewardConfig
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRewardService wires the reward service. judgeSource and locks may be nil; CODE publication and
// custom payout replay protection are then unavailable.
func NewRewardService(
	challenges repository.ChallengeRepository,
	submissions repository.SubmissionRepository,
	votes repository.VoteRepository,
	users repository.UserRepository,
	rewards repository.RewardRepository,
	judgeSource WeeklyLeaderboardSource,
	locks *redis.Client,
	cfg RewardConfig,
	validate *validator.Validate,
	logger zerolog.Logger,
) RewardService {
	if validate == nil {
		validate = validator.New()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 10 * time.Second
	}
	return &rewardService{
		challenges:  challenges,
		submissions: submissions,
		votes:       votes,
		users:       users,
		rewards:     rewards,
		judge:       judgeSource,
		locks:       locks,
		config:      cfg,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/challenge-api/internal/service/reward"),
		logger:      logger.With().Str("component", "reward_service").Logger(),
		now:         time.Now,
	}
}

type payoutPlan struct {
	payouts     []dto.PlannedPayout
	rankingSize int
	skipped     int
}

func (s *rewardService) PublishPortfolioResults(ctx context.Context, challengeID uint, rule RewardRule) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "reward.publish_portfolio")
	defer span.End()
	span.SetAttributes(attribute.Int64("challenge.id", int64(challengeID)))

	if err := rule.validate(); err != nil {
		return 0, err
	}
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return 0, err
	}

	switch challenge.Type {
	case models.ChallengeTypePortfolio:
	case models.ChallengeTypeCode:
		return 0, withDetail(ErrInvalidRequest, "code challenges are published from the judging service")
	default:
		return 0, withDetail(ErrUnknownType, "%s", challenge.Type)
	}
	if !challenge.VotingFinishedAt(s.now()) {
		return 0, ErrVotingNotFinished
	}

	plan, err := s.planPortfolio(ctx, challenge, rule)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return s.publish(ctx, span, challenge, plan)
}

func (s *rewardService) PublishCodeResults(ctx context.Context, challengeID uint, rule RewardRule, weekRef string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "reward.publish_code")
	defer span.End()
	span.SetAttributes(attribute.Int64("challenge.id", int64(challengeID)))

	if err := rule.validate(); err != nil {
		return 0, err
	}
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return 0, err
	}

	switch challenge.Type {
	case models.ChallengeTypeCode:
	case models.ChallengeTypePortfolio:
		return 0, withDetail(ErrInvalidRequest, "portfolio challenges are published from votes")
	default:
		return 0, withDetail(ErrUnknownType, "%s", challenge.Type)
	}

	week, err := resolveWeekRef(challenge, weekRef)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.String("judge.week", week))

	plan, err := s.planCode(ctx, rule, week)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan_failed")
		return 0, err
	}
	return s.publish(ctx, span, challenge, plan)
}

// PublishResults publishes with the policy matching the challenge type.
func (s *rewardService) PublishResults(ctx context.Context, challengeID uint, rule RewardRule, weekRef string) (dto.PublishResponse, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return dto.PublishResponse{}, err
	}

	var inserted int64
	switch challenge.Type {
	case models.ChallengeTypePortfolio:
		inserted, err = s.PublishPortfolioResults(ctx, challengeID, rule)
	case models.ChallengeTypeCode:
		inserted, err = s.PublishCodeResults(ctx, challengeID, rule, weekRef)
	default:
		err = withDetail(ErrUnknownType, "%s", challenge.Type)
	}
	if err != nil {
		return dto.PublishResponse{}, err
	}
	return dto.PublishResponse{ChallengeID: challengeID, Paid: inserted}, nil
}

// PublishCustomPayout adds req.Amount to the user's payout for the challenge, creating it when absent.
func (s *rewardService) PublishCustomPayout(ctx context.Context, challengeID uint, req dto.CustomPayoutRequest) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "reward.publish_custom")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("challenge.id", int64(challengeID)),
		attribute.Int64("user.id", int64(req.UserID)),
	)

	if err := s.validateCustom(req); err != nil {
		return 0, err
	}
	if _, err := s.getChallenge(ctx, challengeID); err != nil {
		return 0, err
	}
	if _, err := s.users.FindActiveByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	var lockKey string
	if key != "" && s.locks != nil {
		lockKey = fmt.Sprintf("reward:custom:%d:%s", challengeID, key)
		ok, err := s.locks.SetNX(ctx, lockKey, 1, s.config.IdempotencyTTL).Result()
		if err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("acquire payout lock: %w", err)
		}
		if !ok {
			span.SetStatus(codes.Error, "duplicate request")
			return 0, ErrDuplicatePayout
		}
	}

	reason := s.sanitizer.Sanitize(strings.TrimSpace(req.Reason))
	if reason == "" {
		reason = models.RewardReasonCustom
	}
	memo := s.sanitizer.Sanitize(strings.TrimSpace(req.Memo))
	at := s.now()

	payout := models.RewardPayout{
		ChallengeID: challengeID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Rank:        req.Rank,
		Reason:      reason,
		Memo:        memo,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	err := s.rewards.Transaction(ctx, func(tx repository.RewardRepository) error {
		if err := tx.AccumulatePayout(ctx, &payout); err != nil {
			return fmt.Errorf("accumulate payout: %w", err)
		}
		if !s.config.ApplyCredits {
			return nil
		}
		meta := map[string]interface{}{"policy": "accumulate", "challenge_id": challengeID}
		if req.Rank != nil {
			meta["rank"] = *req.Rank
		}
		if memo != "" {
			meta["memo"] = memo
		}
		if key != "" {
			meta["idempotency_key"] = key
		}
		ref := challengeID
		return postLedger(ctx, tx, ledgerEntry{UserID: req.UserID, Amount: req.Amount, Reason: reason, RefID: &ref, Metadata: meta}, at)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "custom_payout_failed")
		s.releaseLock(ctx, lockKey)
		return 0, err
	}

	observability.RewardPayouts().WithLabelValues(models.RewardReasonCustom).Inc()
	s.logger.Info().
		Uint("challenge_id", challengeID).
		Uint("user_id", req.UserID).
		Int64("amount", req.Amount).
		Str("reason", reason).
		Msg("custom payout accumulated")
	return 1, nil
}

// releaseLock frees an idempotency key whose payout never committed so the request can be retried.
func (s *rewardService) releaseLock(ctx context.Context, lockKey string) {
	if lockKey == "" {
		return
	}
	if err := s.locks.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
		s.logger.Warn().Err(err).Str("lock", lockKey).Msg("failed to release payout lock")
	}
}

// Preview computes the payouts a publication would attempt without writing anything.
func (s *rewardService) Preview(ctx context.Context, challengeID uint, rule RewardRule, weekRef string) (dto.RewardPreview, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return dto.RewardPreview{}, err
	}

	var plan payoutPlan
	switch challenge.Type {
	case models.ChallengeTypePortfolio:
		plan, err = s.planPortfolio(ctx, challenge, rule)
	case models.ChallengeTypeCode:
		var week string
		week, err = resolveWeekRef(challenge, weekRef)
		if err == nil {
			plan, err = s.planCode(ctx, rule, week)
		}
	default:
		err = withDetail(ErrUnknownType, "%s", challenge.Type)
	}
	if err != nil {
		return dto.RewardPreview{}, err
	}

	published, err := s.rewards.HasPayouts(ctx, challengeID)
	if err != nil {
		return dto.RewardPreview{}, err
	}

	return dto.RewardPreview{
		ChallengeID: challengeID,
		Type:        string(challenge.Type),
		RankingSize: plan.rankingSize,
		Skipped:     plan.skipped,
		Published:   published,
		Payouts:     plan.payouts,
	}, nil
}

func (s *rewardService) IsPublished(ctx context.Context, challengeID uint) (bool, error) {
	return s.rewards.HasPayouts(ctx, challengeID)
}

func (s *rewardService) ListPayouts(ctx context.Context, challengeID uint) ([]dto.PayoutResponse, error) {
	if _, err := s.getChallenge(ctx, challengeID); err != nil {
		return nil, err
	}
	payouts, err := s.rewards.ListPayouts(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		items = append(items, dto.NewPayoutResponse(p))
	}
	return items, nil
}

func (s *rewardService) planPortfolio(ctx context.Context, challenge models.Challenge, rule RewardRule) (payoutPlan, error) {
	stats, err := s.votes.AggregateBySubmission(ctx, challenge.ID)
	if err != nil {
		return payoutPlan{}, fmt.Errorf("aggregate votes: %w", err)
	}
	ranked := ranking.ByOwner(ranking.Compute(stats))

	owners, err := s.submissions.ListOwnerIDs(ctx, challenge.ID)
	if err != nil {
		return payoutPlan{}, fmt.Errorf("list participants: %w", err)
	}

	winners := make([]uint, 0, len(ranked))
	for _, entry := range ranked {
		winners = append(winners, entry.OwnerID)
	}

	return payoutPlan{
		payouts:     planPayouts(rule, winners, owners, models.RewardReasonPortfolioRank),
		rankingSize: len(ranked),
	}, nil
}

// planCode ranks the judging service entries by their reported rank (unranked last), resolves each
// reference to an active user and drops the ones that cannot be resolved.
func (s *rewardService) planCode(ctx context.Context, rule RewardRule, weekRef string) (payoutPlan, error) {
	if s.judge == nil {
		return payoutPlan{}, errors.New("judging service is not configured")
	}
	board, err := s.judge.WeeklyLeaderboard(ctx, weekRef)
	if err != nil {
		return payoutPlan{}, fmt.Errorf("fetch weekly leaderboard: %w", err)
	}

	entries := make([]judge.Entry, len(board.Entries))
	copy(entries, board.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Rank, entries[j].Rank
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a < *b
	})

	var plan payoutPlan
	ranked := make([]uint, 0, len(entries))
	seen := make(map[uint]struct{}, len(entries))
	for _, entry := range entries {
		userID, ok, err := s.resolveUserRef(ctx, entry.UserRef)
		if err != nil {
			return payoutPlan{}, err
		}
		if !ok {
			plan.skipped++
			observability.RewardSkippedRefs().Inc()
			s.logger.Warn().Str("week", weekRef).Str("user_ref", entry.UserRef).Msg("leaderboard entry skipped, no matching user")
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		ranked = append(ranked, userID)
	}

	plan.rankingSize = len(ranked)
	plan.payouts = planPayouts(rule, ranked, ranked, models.RewardReasonCodeRank)
	return plan, nil
}

// resolveUserRef treats numeric references as user ids and everything else as a username.
func (s *rewardService) resolveUserRef(ctx context.Context, ref string) (uint, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, false, nil
	}

	var (
		user models.User
		err  error
	)
	if id, parseErr := strconv.ParseUint(ref, 10, 64); parseErr == nil {
		user, err = s.users.FindActiveByID(ctx, uint(id))
	} else {
		user, err = s.users.FindActiveByUsername(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve user %q: %w", ref, err)
	}
	return user.ID, true, nil
}

// planPayouts pays rule.Top to the leading ranked users, then the participant amount to every
// participant not already paid.
func planPayouts(rule RewardRule, ranked, participants []uint, rankReason string) []dto.PlannedPayout {
	winners := len(rule.Top)
	if len(ranked) < winners {
		winners = len(ranked)
	}

	payouts := make([]dto.PlannedPayout, 0, winners+len(participants))
	paid := make(map[uint]struct{}, len(participants))
	for i := 0; i < winners; i++ {
		rank := i + 1
		payouts = append(payouts, dto.PlannedPayout{UserID: ranked[i], Amount: rule.Top[i], Rank: &rank, Reason: rankReason})
		paid[ranked[i]] = struct{}{}
	}

	if rule.Participant > 0 {
		for _, userID := range participants {
			if _, ok := paid[userID]; ok {
				continue
			}
			paid[userID] = struct{}{}
			payouts = append(payouts, dto.PlannedPayout{UserID: userID, Amount: rule.Participant, Reason: models.RewardReasonParticipation})
		}
	}
	return payouts
}

// publish writes the plan with the insert-once policy in one transaction. Only rows that were
// actually inserted reach the ledger, so a replay changes nothing.
func (s *rewardService) publish(ctx context.Context, span trace.Span, challenge models.Challenge, plan payoutPlan) (int64, error) {
	at := s.now()
	var inserted int64
	var byReason map[string]int

	err := s.rewards.Transaction(ctx, func(tx repository.RewardRepository) error {
		inserted = 0
		byReason = make(map[string]int)
		for _, planned := range plan.payouts {
			payout := models.RewardPayout{
				ChallengeID: challenge.ID,
				UserID:      planned.UserID,
				Amount:      planned.Amount,
				Rank:        planned.Rank,
				Reason:      planned.Reason,
				CreatedAt:   at,
				UpdatedAt:   at,
			}
			ok, err := tx.InsertPayoutOnce(ctx, &payout)
			if err != nil {
				return fmt.Errorf("insert payout for user %d: %w", planned.UserID, err)
			}
			if !ok {
				continue
			}
			inserted++
			byReason[planned.Reason]++

			if !s.config.ApplyCredits {
				continue
			}
			meta := map[string]interface{}{"policy": "insert_once", "challenge_id": challenge.ID}
			if planned.Rank != nil {
				meta["rank"] = *planned.Rank
			}
			ref := challenge.ID
			entry := ledgerEntry{UserID: planned.UserID, Amount: planned.Amount, Reason: planned.Reason, RefID: &ref, Metadata: meta}
			if err := postLedger(ctx, tx, entry, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish_failed")
		return 0, err
	}

	for reason, count := range byReason {
		observability.RewardPayouts().WithLabelValues(reason).Add(float64(count))
	}
	span.SetAttributes(attribute.Int64("reward.inserted", inserted))
	s.logger.Info().
		Uint("challenge_id", challenge.ID).
		Str("type", string(challenge.Type)).
		Int("ranking_size", plan.rankingSize).
		Int("skipped", plan.skipped).
		Int64("inserted", inserted).
		Bool("credits", s.config.ApplyCredits).
		Msg("challenge results published")
	return inserted, nil
}

func (s *rewardService) validateCustom(req dto.CustomPayoutRequest) error {
	if err := s.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			field := validationErrors[0]
			if field.Field() == "Amount" {
				return withDetail(ErrInvalidAmount, "%v", field.Value())
			}
			return withDetail(ErrInvalidRequest, "%s failed %s", field.Field(), field.Tag())
		}
		return ErrInvalidRequest
	}
	return nil
}

func (s *rewardService) getChallenge(ctx context.Context, id uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	return challenge, nil
}

// resolveWeekRef prefers the explicit reference and falls back to the one stored on the challenge.
func resolveWeekRef(challenge models.Challenge, weekRef string) (string, error) {
	week := strings.TrimSpace(weekRef)
	if week == "" {
		week = strings.TrimSpace(challenge.ExternalWeekRef)
	}
	if week == "" {
		return "", ErrWeekRefRequired
	}
	return week, nil
}
