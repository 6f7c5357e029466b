// Package events carries challenge lifecycle transitions to in-process handlers and external streams.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/challenge-api/internal/models"
)

// Notification kinds derived from lifecycle transitions.
const (
	KindChallengeOpened = "CHALLENGE_OPENED"
	KindVoteOpened      = "VOTE_OPENED"
	KindChallengeEnded  = "CHALLENGE_ENDED"
)

// LifecycleEvent is raised once per successful status transition, after the change is committed.
type LifecycleEvent struct {
	ID          string                 `json:"id"`
	ChallengeID uint                   `json:"challengeId"`
	Type        models.ChallengeType   `json:"type"`
	Previous    models.ChallengeStatus `json:"previous"`
	Next        models.ChallengeStatus `json:"next"`
	OccurredAt  time.Time              `json:"occurredAt"`
}

// NewLifecycleEvent stamps a new event with a fresh id.
func NewLifecycleEvent(challengeID uint, challengeType models.ChallengeType, previous, next models.ChallengeStatus, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		Type:        challengeType,
		Previous:    previous,
		Next:        next,
		OccurredAt:  at.UTC(),
	}
}

// NotificationKind maps the transition to a user-facing notification kind. Transitions without one return "".
func (e LifecycleEvent) NotificationKind() string {
	switch e.Next {
	case models.ChallengeStatusOpen:
		return KindChallengeOpened
	case models.ChallengeStatusVoting:
		if e.Type == models.ChallengeTypePortfolio {
			return KindVoteOpened
		}
	case models.ChallengeStatusEnded:
		return KindChallengeEnded
	}
	return ""
}
