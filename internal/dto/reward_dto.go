package dto

import (
	"time"

	"github.com/noah-isme/challenge-api/internal/models"
)

// RewardRuleRequest is an admin-supplied payout rule. Top holds amounts for ranks 1..N.
type RewardRuleRequest struct {
	Top         []int64 `json:"top" validate:"dive,gt=0"`
	Participant int64   `json:"participant" validate:"gte=0"`
	WeekRef     string  `json:"week_ref" validate:"omitempty,max=64"`
}

// CustomPayoutRequest grants an arbitrary amount to one user for a challenge.
type CustomPayoutRequest struct {
	UserID         uint   `json:"user_id" validate:"required,gt=0"`
	Amount         int64  `json:"amount" validate:"gt=0"`
	Rank           *int   `json:"rank" validate:"omitempty,gt=0"`
	Reason         string `json:"reason" validate:"omitempty,max=64"`
	Memo           string `json:"memo" validate:"max=500"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

// PublishResponse reports how many payout rows a publication wrote.
type PublishResponse struct {
	ChallengeID uint  `json:"challenge_id"`
	Paid        int64 `json:"paid"`
}

// PlannedPayout is one line of a payout preview.
type PlannedPayout struct {
	UserID uint   `json:"user_id"`
	Amount int64  `json:"amount"`
	Rank   *int   `json:"rank,omitempty"`
	Reason string `json:"reason"`
}

// RewardPreview lists payouts a publication would attempt, without writing.
type RewardPreview struct {
	ChallengeID uint            `json:"challenge_id"`
	Type        string          `json:"type"`
	RankingSize int             `json:"ranking_size"`
	Skipped     int             `json:"skipped"`
	Published   bool            `json:"published"`
	Payouts     []PlannedPayout `json:"payouts"`
}

// PayoutResponse serialises a stored payout.
type PayoutResponse struct {
	ChallengeID uint      `json:"challenge_id"`
	UserID      uint      `json:"user_id"`
	Amount      int64     `json:"amount"`
	Rank        *int      `json:"rank"`
	Reason      string    `json:"reason"`
	Memo        string    `json:"memo,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPayoutResponse maps a stored payout.
func NewPayoutResponse(p models.RewardPayout) PayoutResponse {
	return PayoutResponse{
		ChallengeID: p.ChallengeID,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Rank:        p.Rank,
		Reason:      p.Reason,
		Memo:        p.Memo,
		CreatedAt:   p.CreatedAt,
	}
}
