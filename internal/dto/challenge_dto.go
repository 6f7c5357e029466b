package dto

import (
	"time"

	"github.com/noah-isme/challenge-api/internal/models"
)

// ChallengeCreateRequest is used by admins to register a challenge.
type ChallengeCreateRequest struct {
	Type            string     `json:"type" validate:"required,oneof=PORTFOLIO CODE"`
	Title           string     `json:"title" validate:"required,max=255"`
	Summary         string     `json:"summary"`
	StartAt         time.Time  `json:"start_at" validate:"required"`
	EndAt           time.Time  `json:"end_at" validate:"required"`
	VoteStartAt     *time.Time `json:"vote_start_at"`
	VoteEndAt       *time.Time `json:"vote_end_at"`
	ExternalWeekRef string     `json:"external_week_ref" validate:"max=64"`
}

// ChallengeStatusRequest sets a challenge status directly.
type ChallengeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT OPEN VOTING ENDED"`
}

// ChallengeResponse serialises a challenge.
type ChallengeResponse struct {
	ID              uint       `json:"id"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	Status          string     `json:"status"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	VoteStartAt     *time.Time `json:"vote_start_at"`
	VoteEndAt       *time.Time `json:"vote_end_at"`
	ExternalWeekRef string     `json:"external_week_ref,omitempty"`
}

// NewChallengeResponse maps a stored challenge.
func NewChallengeResponse(c models.Challenge) ChallengeResponse {
	return ChallengeResponse{
		ID:              c.ID,
		Type:            string(c.Type),
		Title:           c.Title,
		Summary:         c.Summary,
		Status:          string(c.Status),
		StartAt:         c.StartAt,
		EndAt:           c.EndAt,
		VoteStartAt:     c.VoteStartAt,
		VoteEndAt:       c.VoteEndAt,
		ExternalWeekRef: c.ExternalWeekRef,
	}
}

// SweepResponse reports the outcome of a lifecycle sweep.
type SweepResponse struct {
	Examined int `json:"examined"`
	Advanced int `json:"advanced"`
	Lost     int `json:"lost"`
}
