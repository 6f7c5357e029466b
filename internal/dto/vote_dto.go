package dto

import (
	"time"

	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/ranking"
)

// VoteRequest carries one voter's scores for a submission.
type VoteRequest struct {
	SubmissionID uint `json:"submission_id" validate:"required,gt=0"`
	UiUx         int  `json:"ui_ux" validate:"min=1,max=5"`
	Creativity   int  `json:"creativity" validate:"min=1,max=5"`
	CodeQuality  int  `json:"code_quality" validate:"min=1,max=5"`
	Difficulty   int  `json:"difficulty" validate:"min=1,max=5"`
}

// VoteResponse is returned after creating, updating or reading a vote.
type VoteResponse struct {
	ID           uint      `json:"id"`
	ChallengeID  uint      `json:"challenge_id"`
	SubmissionID uint      `json:"submission_id"`
	VoterID      uint      `json:"voter_id"`
	UiUx         int       `json:"ui_ux"`
	Creativity   int       `json:"creativity"`
	CodeQuality  int       `json:"code_quality"`
	Difficulty   int       `json:"difficulty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewVoteResponse maps a stored vote.
func NewVoteResponse(vote models.PortfolioVote) VoteResponse {
	return VoteResponse{
		ID:           vote.ID,
		ChallengeID:  vote.ChallengeID,
		SubmissionID: vote.SubmissionID,
		VoterID:      vote.VoterID,
		UiUx:         vote.UiUx,
		Creativity:   vote.Creativity,
		CodeQuality:  vote.CodeQuality,
		Difficulty:   vote.Difficulty,
		CreatedAt:    vote.CreatedAt,
		UpdatedAt:    vote.UpdatedAt,
	}
}

// RankingItem is one row of the authoritative vote summary.
type RankingItem struct {
	Rank           int     `json:"rank"`
	SubmissionID   uint    `json:"submission_id"`
	OwnerID        uint    `json:"owner_id"`
	VoteCount      int64   `json:"vote_count"`
	UiUxAvg        float64 `json:"ui_ux_avg"`
	CreativityAvg  float64 `json:"creativity_avg"`
	CodeQualityAvg float64 `json:"code_quality_avg"`
	DifficultyAvg  float64 `json:"difficulty_avg"`
	TotalScore     float64 `json:"total_score"`
}

// NewRankingItem maps a ranked entry.
func NewRankingItem(entry ranking.Entry) RankingItem {
	return RankingItem{
		Rank:           entry.Rank,
		SubmissionID:   entry.SubmissionID,
		OwnerID:        entry.OwnerID,
		VoteCount:      entry.Count,
		UiUxAvg:        entry.Averages[0],
		CreativityAvg:  entry.Averages[1],
		CodeQualityAvg: entry.Averages[2],
		DifficultyAvg:  entry.Averages[3],
		TotalScore:     entry.Composite,
	}
}
