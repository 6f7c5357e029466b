package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/challenge-api/internal/models"
)

func TestChallengeRepositoryAdvanceStatusIsCompareAndSet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	challenge := models.Challenge{Type: models.ChallengeTypeCode, Title: "Week 1", StartAt: now, EndAt: now.Add(time.Hour), Status: models.ChallengeStatusOpen}
	require.NoError(t, repo.Create(ctx, &challenge))

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := repo.AdvanceStatus(ctx, challenge.ID, models.ChallengeStatusOpen, models.ChallengeStatusEnded, now)
			if err != nil {
				t.Error(err)
				return
			}
			atomic.AddInt64(&wins, changed)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), wins)

	stored, err := repo.GetByID(ctx, challenge.ID)
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusEnded, stored.Status)

	changed, err := repo.AdvanceStatus(ctx, challenge.ID, models.ChallengeStatusOpen, models.ChallengeStatusEnded, now)
	require.NoError(t, err)
	require.Zero(t, changed)
}

func TestChallengeRepositoryListUnfinishedSkipsEnded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, status := range []models.ChallengeStatus{models.ChallengeStatusDraft, models.ChallengeStatusEnded, models.ChallengeStatusVoting} {
		c := models.Challenge{Type: models.ChallengeTypePortfolio, Title: string(status), StartAt: now, EndAt: now.Add(time.Hour), Status: status}
		require.NoError(t, repo.Create(ctx, &c))
	}

	items, err := repo.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, models.ChallengeStatusDraft, items[0].Status)
	require.Equal(t, models.ChallengeStatusVoting, items[1].Status)
}

func TestChallengeRepositoryDeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	challenge := models.Challenge{Type: models.ChallengeTypePortfolio, Title: "Gallery", StartAt: now, EndAt: now.Add(time.Hour), Status: models.ChallengeStatusOpen}
	require.NoError(t, repo.Create(ctx, &challenge))
	submission := models.Submission{ChallengeID: challenge.ID, OwnerID: 1}
	require.NoError(t, db.Create(&submission).Error)
	require.NoError(t, db.Create(&models.PortfolioVote{ChallengeID: challenge.ID, VoterID: 2, SubmissionID: submission.ID, UiUx: 3, Creativity: 3, CodeQuality: 3, Difficulty: 3}).Error)

	subs, votes, err := repo.CountDependencies(ctx, challenge.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), subs)
	require.Equal(t, int64(1), votes)

	require.NoError(t, repo.DeleteCascade(ctx, challenge.ID))

	subs, votes, err = repo.CountDependencies(ctx, challenge.ID)
	require.NoError(t, err)
	require.Zero(t, subs)
	require.Zero(t, votes)
}
