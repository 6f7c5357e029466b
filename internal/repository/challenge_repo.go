package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/models"
)

// ChallengeRepository persists challenges and performs compare-and-set status transitions.
type ChallengeRepository interface {
	GetByID(ctx context.Context, id uint) (models.Challenge, error)
	Create(ctx context.Context, challenge *models.Challenge) error
	ListUnfinished(ctx context.Context) ([]models.Challenge, error)
	AdvanceStatus(ctx context.Context, id uint, expected, next models.ChallengeStatus, at time.Time) (int64, error)
	CountDependencies(ctx context.Context, id uint) (submissions int64, votes int64, err error)
	DeleteCascade(ctx context.Context, id uint) error
	Transaction(ctx context.Context, fn func(repo ChallengeRepository) error) error
}

type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository instantiates the repository.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) GetByID(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// ListUnfinished returns every challenge that still has a lifecycle step ahead of it.
func (r *challengeRepository) ListUnfinished(ctx context.Context) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.ChallengeStatus{models.ChallengeStatusDraft, models.ChallengeStatusOpen, models.ChallengeStatusVoting}).
		Order("id ASC").
		Find(&challenges).Error
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

// AdvanceStatus moves the challenge to next only if it is still in expected. It returns the rows changed (0 or 1).
func (r *challengeRepository) AdvanceStatus(ctx context.Context, id uint, expected, next models.ChallengeStatus, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id = ?", id).
		Where("status = ?", expected).
		Updates(map[string]interface{}{"status": next, "updated_at": at})
	return result.RowsAffected, result.Error
}

func (r *challengeRepository) CountDependencies(ctx context.Context, id uint) (int64, int64, error) {
	var submissions, votes int64
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).Where("challenge_id = ?", id).Count(&submissions).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.PortfolioVote{}).Where("challenge_id = ?", id).Count(&votes).Error; err != nil {
		return 0, 0, err
	}
	return submissions, votes, nil
}

// DeleteCascade removes the challenge together with its votes and submissions.
func (r *challengeRepository) DeleteCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("challenge_id = ?", id).Delete(&models.PortfolioVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Challenge{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *challengeRepository) Transaction(ctx context.Context, fn func(repo ChallengeRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&challengeRepository{db: tx})
	})
}
