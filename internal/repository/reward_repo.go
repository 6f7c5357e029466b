package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/challenge-api/internal/models"
)

// RewardRepository owns payouts, the credit ledger and wallets. Writes that must commit together
// run inside Transaction.
type RewardRepository interface {
	Transaction(ctx context.Context, fn func(repo RewardRepository) error) error
	InsertPayoutOnce(ctx context.Context, payout *models.RewardPayout) (bool, error)
	AccumulatePayout(ctx context.Context, payout *models.RewardPayout) error
	AppendTransaction(ctx context.Context, entry *models.CreditTransaction) error
	AddToWallet(ctx context.Context, userID uint, delta int64, at time.Time) error
	LockBalance(ctx context.Context, userID uint) (int64, error)
	HasPayouts(ctx context.Context, challengeID uint) (bool, error)
	ListPayouts(ctx context.Context, challengeID uint) ([]models.RewardPayout, error)
	ListPayoutsByUser(ctx context.Context, userID uint) ([]models.RewardPayout, error)
	GetBalance(ctx context.Context, userID uint) (int64, error)
	ListTransactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error)
}

type rewardRepository struct {
	db *gorm.DB
}

// NewRewardRepository instantiates the repository.
func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) Transaction(ctx context.Context, fn func(repo RewardRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&rewardRepository{db: tx})
	})
}

// InsertPayoutOnce writes the payout unless (challenge, user) already exists. It reports whether a row was written.
func (r *rewardRepository) InsertPayoutOnce(ctx context.Context, payout *models.RewardPayout) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(payout)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AccumulatePayout adds the amount to an existing (challenge, user) payout, keeping the better (lower) rank.
func (r *rewardRepository) AccumulatePayout(ctx context.Context, payout *models.RewardPayout) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount": gorm.Expr("reward_payouts.amount + excluded.amount"),
				"rank_no": gorm.Expr(`CASE
					WHEN reward_payouts.rank_no IS NULL THEN excluded.rank_no
					WHEN excluded.rank_no IS NOT NULL AND excluded.rank_no < reward_payouts.rank_no THEN excluded.rank_no
					ELSE reward_payouts.rank_no END`),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(payout).Error
}

func (r *rewardRepository) AppendTransaction(ctx context.Context, entry *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// AddToWallet applies an additive balance delta, creating the wallet when absent.
func (r *rewardRepository) AddToWallet(ctx context.Context, userID uint, delta int64, at time.Time) error {
	wallet := models.CreditWallet{UserID: userID, Balance: delta, CreatedAt: at, UpdatedAt: at}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":    gorm.Expr("credit_wallets.balance + excluded.balance"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&wallet).Error
}

// LockBalance reads the wallet balance with a row lock. A missing wallet reads as zero.
func (r *rewardRepository) LockBalance(ctx context.Context, userID uint) (int64, error) {
	var wallets []models.CreditWallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&wallets).Error
	if err != nil {
		return 0, err
	}
	if len(wallets) == 0 {
		return 0, nil
	}
	return wallets[0].Balance, nil
}

func (r *rewardRepository) HasPayouts(ctx context.Context, challengeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RewardPayout{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *rewardRepository) ListPayouts(ctx context.Context, challengeID uint) ([]models.RewardPayout, error) {
	var payouts []models.RewardPayout
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("rank_no IS NULL, rank_no ASC, user_id ASC").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *rewardRepository) ListPayoutsByUser(ctx context.Context, userID uint) ([]models.RewardPayout, error) {
	var payouts []models.RewardPayout
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *rewardRepository) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var wallets []models.CreditWallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&wallets).Error; err != nil {
		return 0, err
	}
	if len(wallets) == 0 {
		return 0, nil
	}
	return wallets[0].Balance, nil
}

func (r *rewardRepository) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.CreditTransaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
