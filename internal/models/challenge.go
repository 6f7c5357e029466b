package models

import (
	"errors"
	"time"
)

// ChallengeType distinguishes community-voted portfolio challenges from externally judged code challenges.
type ChallengeType string

const (
	// ChallengeTypePortfolio challenges are ranked by peer votes.
	ChallengeTypePortfolio ChallengeType = "PORTFOLIO"
	// ChallengeTypeCode challenges are ranked by the external judging service.
	ChallengeTypeCode ChallengeType = "CODE"
)

// ChallengeStatus tracks the lifecycle position of a challenge.
type ChallengeStatus string

const (
	ChallengeStatusDraft  ChallengeStatus = "DRAFT"
	ChallengeStatusOpen   ChallengeStatus = "OPEN"
	ChallengeStatusVoting ChallengeStatus = "VOTING"
	ChallengeStatusEnded  ChallengeStatus = "ENDED"
)

// ErrInvalidWindow is returned when the challenge time bounds are inconsistent.
var ErrInvalidWindow = errors.New("challenge time window is invalid")

// Challenge is a time-boxed competition.
type Challenge struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Type            ChallengeType   `gorm:"size:16;not null;index" json:"type"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Summary         string          `gorm:"type:text" json:"summary"`
	StartAt         time.Time       `gorm:"not null" json:"start_at"`
	EndAt           time.Time       `gorm:"not null" json:"end_at"`
	VoteStartAt     *time.Time      `json:"vote_start_at"`
	VoteEndAt       *time.Time      `json:"vote_end_at"`
	Status          ChallengeStatus `gorm:"size:16;not null;index" json:"status"`
	ExternalWeekRef string          `gorm:"size:64" json:"external_week_ref"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValidateWindow enforces startAt < endAt and, when a vote window is present, endAt <= voteStartAt < voteEndAt.
func (c Challenge) ValidateWindow() error {
	if !c.StartAt.Before(c.EndAt) {
		return ErrInvalidWindow
	}
	if c.VoteStartAt == nil && c.VoteEndAt == nil {
		return nil
	}
	if c.VoteStartAt == nil || c.VoteEndAt == nil {
		return ErrInvalidWindow
	}
	if c.VoteStartAt.Before(c.EndAt) || !c.VoteStartAt.Before(*c.VoteEndAt) {
		return ErrInvalidWindow
	}
	return nil
}

// VotingOpenAt reports whether now falls within the inclusive vote window.
func (c Challenge) VotingOpenAt(now time.Time) bool {
	if c.VoteStartAt == nil || c.VoteEndAt == nil {
		return false
	}
	return !now.Before(*c.VoteStartAt) && !now.After(*c.VoteEndAt)
}

// VotingFinishedAt reports whether the vote window has closed.
func (c Challenge) VotingFinishedAt(now time.Time) bool {
	return c.VoteEndAt != nil && !now.Before(*c.VoteEndAt)
}

// DueTransition returns the status the scheduler should move the challenge to at now, if any.
// Opening and voting are considered before ending so that a late sweep still walks every step.
func (c Challenge) DueTransition(now time.Time) (ChallengeStatus, bool) {
	switch c.Status {
	case ChallengeStatusDraft:
		if !now.Before(c.StartAt) {
			return ChallengeStatusOpen, true
		}
	case ChallengeStatusOpen:
		if c.Type == ChallengeTypePortfolio && c.VoteStartAt != nil && !now.Before(*c.VoteStartAt) {
			return ChallengeStatusVoting, true
		}
	case ChallengeStatusEnded:
		return "", false
	}

	if c.endDue(now) {
		return ChallengeStatusEnded, true
	}
	return "", false
}

func (c Challenge) endDue(now time.Time) bool {
	switch c.Type {
	case ChallengeTypePortfolio:
		return c.VoteEndAt != nil && !now.Before(*c.VoteEndAt)
	case ChallengeTypeCode:
		return !now.Before(c.EndAt)
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a lifecycle edge for the given challenge type.
// Any unfinished challenge may end; only portfolio challenges have a voting phase.
func CanTransition(challengeType ChallengeType, from, to ChallengeStatus) bool {
	if !challengeType.Valid() || !from.Valid() {
		return false
	}
	switch {
	case to == ChallengeStatusEnded:
		return from != ChallengeStatusEnded
	case from == ChallengeStatusDraft && to == ChallengeStatusOpen:
		return true
	case from == ChallengeStatusOpen && to == ChallengeStatusVoting:
		return challengeType == ChallengeTypePortfolio
	default:
		return false
	}
}

// Valid reports whether the type is one of the known challenge types.
func (t ChallengeType) Valid() bool {
	return t == ChallengeTypePortfolio || t == ChallengeTypeCode
}

// Valid reports whether the status is one of the known lifecycle states.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengeStatusDraft, ChallengeStatusOpen, ChallengeStatusVoting, ChallengeStatusEnded:
		return true
	default:
		return false
	}
}
