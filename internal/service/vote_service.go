package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/ranking"
	"github.com/noah-isme/challenge-api/internal/repository"
)

// VoteService records portfolio votes and keeps the leaderboard cache in step.
type VoteService interface {
	Create(ctx context.Context, challengeID, voterID uint, req dto.VoteRequest) (dto.VoteResponse, error)
	UpdateMine(ctx context.Context, challengeID, voterID uint, req dto.VoteRequest) (dto.VoteResponse, error)
	MyVote(ctx context.Context, challengeID, voterID uint) (dto.VoteResponse, error)
	Summary(ctx context.Context, challengeID uint) ([]dto.RankingItem, error)
}

type voteService struct {
	challenges   repository.ChallengeRepository
	submissions  repository.SubmissionRepository
	votes        repository.VoteRepository
	cache        LeaderboardCache
	cacheTimeout time.Duration
	validator    *validator.Validate
	logger       zerolog.Logger
	now          func() time.Time
}

// NewVoteService constructs the vote service. cacheTimeout bounds every cache call made on the write path.
func NewVoteService(challenges repository.ChallengeRepository, submissions repository.SubmissionRepository, votes repository.VoteRepository, cache LeaderboardCache, cacheTimeout time.Duration, validate *validator.Validate, logger zerolog.Logger) VoteService {
	if validate == nil {
		validate = validator.New()
	}
	if cacheTimeout <= 0 {
		cacheTimeout = 300 * time.Millisecond
	}
	return &voteService{
		challenges:   challenges,
		submissions:  submissions,
		votes:        votes,
		cache:        cache,
		cacheTimeout: cacheTimeout,
		validator:    validate,
		logger:       logger.With().Str("component", "vote_service").Logger(),
		now:          time.Now,
	}
}

func (s *voteService) Create(ctx context.Context, challengeID, voterID uint, req dto.VoteRequest) (dto.VoteResponse, error) {
	if voterID == 0 {
		return dto.VoteResponse{}, ErrLoginRequired
	}
	if err := s.validateScores(req); err != nil {
		return dto.VoteResponse{}, err
	}

	_, submission, err := s.loadVotable(ctx, challengeID, req.SubmissionID)
	if err != nil {
		return dto.VoteResponse{}, err
	}

	exists, err := s.votes.ExistsByChallengeAndVoter(ctx, challengeID, voterID)
	if err != nil {
		return dto.VoteResponse{}, err
	}
	if exists {
		return dto.VoteResponse{}, ErrDuplicateVote
	}
	if submission.OwnerID == voterID {
		return dto.VoteResponse{}, ErrSelfVote
	}

	vote := models.PortfolioVote{
		ChallengeID:  challengeID,
		VoterID:      voterID,
		SubmissionID: submission.ID,
		UiUx:         req.UiUx,
		Creativity:   req.Creativity,
		CodeQuality:  req.CodeQuality,
		Difficulty:   req.Difficulty,
	}
	if err := s.votes.Create(ctx, &vote); err != nil {
		if repository.IsUniqueViolation(err) {
			return dto.VoteResponse{}, ErrDuplicateVote
		}
		return dto.VoteResponse{}, fmt.Errorf("create vote: %w", err)
	}

	s.applyDelta(ctx, challengeID, vote.SubmissionID, ScoreDelta{Scores: vote.Scores(), Count: 1})

	s.logger.Info().
		Uint("challenge_id", challengeID).
		Uint("submission_id", vote.SubmissionID).
		Uint("voter_id", voterID).
		Msg("vote recorded")

	return dto.NewVoteResponse(vote), nil
}

func (s *voteService) UpdateMine(ctx context.Context, challengeID, voterID uint, req dto.VoteRequest) (dto.VoteResponse, error) {
	if voterID == 0 {
		return dto.VoteResponse{}, ErrLoginRequired
	}
	if err := s.validateScores(req); err != nil {
		return dto.VoteResponse{}, err
	}

	_, submission, err := s.loadVotable(ctx, challengeID, req.SubmissionID)
	if err != nil {
		return dto.VoteResponse{}, err
	}

	vote, err := s.votes.FindByChallengeAndVoter(ctx, challengeID, voterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VoteResponse{}, ErrVoteNotFound
		}
		return dto.VoteResponse{}, err
	}
	if submission.OwnerID == voterID {
		return dto.VoteResponse{}, ErrSelfVote
	}

	previousSubmission := vote.SubmissionID
	previousScores := vote.Scores()

	vote.SubmissionID = submission.ID
	vote.UiUx = req.UiUx
	vote.Creativity = req.Creativity
	vote.CodeQuality = req.CodeQuality
	vote.Difficulty = req.Difficulty
	if err := s.votes.Update(ctx, &vote); err != nil {
		return dto.VoteResponse{}, fmt.Errorf("update vote: %w", err)
	}

	current := vote.Scores()
	if previousSubmission == vote.SubmissionID {
		var diff ScoreDelta
		for i := range current {
			diff.Scores[i] = current[i] - previousScores[i]
		}
		s.applyDelta(ctx, challengeID, vote.SubmissionID, diff)
	} else {
		var removal ScoreDelta
		for i := range previousScores {
			removal.Scores[i] = -previousScores[i]
		}
		removal.Count = -1
		s.applyDelta(ctx, challengeID, previousSubmission, removal)
		s.applyDelta(ctx, challengeID, vote.SubmissionID, ScoreDelta{Scores: current, Count: 1})
	}

	return dto.NewVoteResponse(vote), nil
}

func (s *voteService) MyVote(ctx context.Context, challengeID, voterID uint) (dto.VoteResponse, error) {
	if voterID == 0 {
		return dto.VoteResponse{}, ErrLoginRequired
	}
	vote, err := s.votes.FindByChallengeAndVoter(ctx, challengeID, voterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VoteResponse{}, ErrVoteNotFound
		}
		return dto.VoteResponse{}, err
	}
	return dto.NewVoteResponse(vote), nil
}

// Summary ranks submissions straight from the vote store, bypassing the cache.
func (s *voteService) Summary(ctx context.Context, challengeID uint) ([]dto.RankingItem, error) {
	if _, err := s.getChallenge(ctx, challengeID); err != nil {
		return nil, err
	}

	stats, err := s.votes.AggregateBySubmission(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	entries := ranking.Compute(stats)
	items := make([]dto.RankingItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewRankingItem(e))
	}
	return items, nil
}

// loadVotable checks challenge type, vote window and submission membership, in that order.
func (s *voteService) loadVotable(ctx context.Context, challengeID, submissionID uint) (models.Challenge, models.Submission, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return models.Challenge{}, models.Submission{}, err
	}

	switch challenge.Type {
	case models.ChallengeTypePortfolio:
	case models.ChallengeTypeCode:
		return models.Challenge{}, models.Submission{}, ErrOnlyPortfolio
	default:
		return models.Challenge{}, models.Submission{}, withDetail(ErrUnknownType, "%s", challenge.Type)
	}

	if !challenge.VotingOpenAt(s.now()) {
		return models.Challenge{}, models.Submission{}, ErrVotingClosed
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, models.Submission{}, ErrSubmissionNotFound
		}
		return models.Challenge{}, models.Submission{}, err
	}
	if submission.ChallengeID != challenge.ID {
		return models.Challenge{}, models.Submission{}, ErrSubmissionMismatch
	}

	return challenge, submission, nil
}

func (s *voteService) getChallenge(ctx context.Context, id uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (s *voteService) validateScores(req dto.VoteRequest) error {
	if err := s.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			field := validationErrors[0]
			if field.Field() == "SubmissionID" {
				return withDetail(ErrInvalidRequest, "submission_id is required")
			}
			return withDetail(ErrInvalidScore, "%s=%v", field.Field(), field.Value())
		}
		return ErrInvalidRequest
	}
	return nil
}

func (s *voteService) applyDelta(ctx context.Context, challengeID, submissionID uint, delta ScoreDelta) {
	if s.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	s.cache.ApplyDelta(cacheCtx, challengeID, submissionID, delta)
}
