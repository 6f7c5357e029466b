package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/ranking"
)

// VoteRepository is the durable vote store. It is the source of truth for every ranking.
type VoteRepository interface {
	Create(ctx context.Context, vote *models.PortfolioVote) error
	Update(ctx context.Context, vote *models.PortfolioVote) error
	FindByChallengeAndVoter(ctx context.Context, challengeID, voterID uint) (models.PortfolioVote, error)
	ExistsByChallengeAndVoter(ctx context.Context, challengeID, voterID uint) (bool, error)
	AggregateBySubmission(ctx context.Context, challengeID uint) ([]ranking.Stats, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository instantiates the repository.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) Create(ctx context.Context, vote *models.PortfolioVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *voteRepository) Update(ctx context.Context, vote *models.PortfolioVote) error {
	return r.db.WithContext(ctx).Save(vote).Error
}

func (r *voteRepository) FindByChallengeAndVoter(ctx context.Context, challengeID, voterID uint) (models.PortfolioVote, error) {
	var vote models.PortfolioVote
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Where("voter_id = ?", voterID).
		First(&vote).Error
	if err != nil {
		return models.PortfolioVote{}, err
	}
	return vote, nil
}

func (r *voteRepository) ExistsByChallengeAndVoter(ctx context.Context, challengeID, voterID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PortfolioVote{}).
		Where("challenge_id = ?", challengeID).
		Where("voter_id = ?", voterID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type submissionAggregateRow struct {
	SubmissionID   uint
	OwnerID        uint
	SumUiUx        int64
	SumCreativity  int64
	SumCodeQuality int64
	SumDifficulty  int64
	VoteCount      int64
}

// AggregateBySubmission returns criterion sums and vote counts for every submission with at least one vote.
func (r *voteRepository) AggregateBySubmission(ctx context.Context, challengeID uint) ([]ranking.Stats, error) {
	var rows []submissionAggregateRow
	err := r.db.WithContext(ctx).
		Table("portfolio_votes AS v").
		Select(`v.submission_id AS submission_id,
			s.owner_id AS owner_id,
			SUM(v.ui_ux) AS sum_ui_ux,
			SUM(v.creativity) AS sum_creativity,
			SUM(v.code_quality) AS sum_code_quality,
			SUM(v.difficulty) AS sum_difficulty,
			COUNT(*) AS vote_count`).
		Joins("JOIN submissions AS s ON s.id = v.submission_id").
		Where("v.challenge_id = ?", challengeID).
		Group("v.submission_id, s.owner_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]ranking.Stats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, ranking.Stats{
			SubmissionID: row.SubmissionID,
			OwnerID:      row.OwnerID,
			Sums:         [ranking.Criteria]int64{row.SumUiUx, row.SumCreativity, row.SumCodeQuality, row.SumDifficulty},
			Count:        row.VoteCount,
		})
	}
	return stats, nil
}
