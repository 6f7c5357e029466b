package models

import "time"

// PortfolioVote holds one voter's four criterion scores for a submission.
type PortfolioVote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ChallengeID  uint      `gorm:"not null;uniqueIndex:idx_vote_voter" json:"challenge_id"`
	VoterID      uint      `gorm:"not null;uniqueIndex:idx_vote_voter" json:"voter_id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	UiUx         int       `gorm:"not null" json:"ui_ux"`
	Creativity   int       `gorm:"not null" json:"creativity"`
	CodeQuality  int       `gorm:"not null" json:"code_quality"`
	Difficulty   int       `gorm:"not null" json:"difficulty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Scores returns the criterion scores in canonical order.
func (v PortfolioVote) Scores() [4]int64 {
	return [4]int64{int64(v.UiUx), int64(v.Creativity), int64(v.CodeQuality), int64(v.Difficulty)}
}
