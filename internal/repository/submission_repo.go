package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/models"
)

// SubmissionCard is the display data joined onto leaderboard entries.
type SubmissionCard struct {
	SubmissionID     uint
	OwnerID          uint
	Title            string
	RepoURL          string
	DemoURL          string
	OwnerUsername    string
	OwnerDisplayName string
}

// SubmissionRepository defines data operations for challenge submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	ListOwnerIDs(ctx context.Context, challengeID uint) ([]uint, error)
	ListCards(ctx context.Context, ids []uint) ([]SubmissionCard, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// ListOwnerIDs returns the distinct owners of submissions in the challenge, ascending.
func (r *submissionRepository) ListOwnerIDs(ctx context.Context, challengeID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("challenge_id = ?", challengeID).
		Distinct("owner_id").
		Order("owner_id ASC").
		Pluck("owner_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListCards loads submission and owner display data for the given ids in one query.
func (r *submissionRepository) ListCards(ctx context.Context, ids []uint) ([]SubmissionCard, error) {
	if len(ids) == 0 {
		return []SubmissionCard{}, nil
	}

	var cards []SubmissionCard
	err := r.db.WithContext(ctx).
		Table("submissions AS s").
		Select("s.id AS submission_id, s.owner_id, s.title, s.repo_url, s.demo_url, u.username AS owner_username, u.display_name AS owner_display_name").
		Joins("LEFT JOIN users AS u ON u.id = s.owner_id").
		Where("s.id IN ?", ids).
		Scan(&cards).Error
	if err != nil {
		return nil, err
	}
	return cards, nil
}
