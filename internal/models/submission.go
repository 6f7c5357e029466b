package models

import "time"

// Submission is a participant's entry into a challenge. A user owns at most one per challenge.
type Submission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"not null;uniqueIndex:idx_submission_owner" json:"challenge_id"`
	OwnerID     uint      `gorm:"not null;uniqueIndex:idx_submission_owner;index" json:"owner_id"`
	Title       string    `gorm:"size:255" json:"title"`
	RepoURL     string    `gorm:"size:512" json:"repo_url"`
	DemoURL     string    `gorm:"size:512" json:"demo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
