package models

import (
	"time"

	"gorm.io/datatypes"
)

// Reward reasons recorded on payouts and ledger entries.
const (
	RewardReasonPortfolioRank = "PORTFOLIO_RANK"
	RewardReasonParticipation = "PARTICIPATION"
	RewardReasonCodeRank      = "CODE_RANK"
	RewardReasonCustom        = "CUSTOM"
	SpendReasonDefault        = "SPEND"
)

// RewardPayout is the durable fact that a user was paid for a challenge. Unique per (challenge, user).
type RewardPayout struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"not null;uniqueIndex:idx_payout_user" json:"challenge_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_payout_user;index" json:"user_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Rank        *int      `gorm:"column:rank_no" json:"rank"`
	Reason      string    `gorm:"size:64;not null" json:"reason"`
	Memo        string    `gorm:"type:text" json:"memo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreditTransaction is an append-only ledger entry. Positive amounts credit, negative amounts debit.
type CreditTransaction struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index" json:"user_id"`
	Amount    int64             `gorm:"not null" json:"amount"`
	Reason    string            `gorm:"size:64;not null" json:"reason"`
	RefID     *uint             `gorm:"index" json:"ref_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// CreditWallet is the derived balance per user, kept equal to the ledger sum.
type CreditWallet struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Balance   int64     `gorm:"not null" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
