package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mini, client
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

type fixture struct {
	t   *testing.T
	db  *gorm.DB
	now time.Time
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	return &fixture{t: t, db: db, now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (f *fixture) user(username string) models.User {
	f.t.Helper()
	u := models.User{Username: username, DisplayName: strings.ToUpper(username), Active: true}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u
}

// votingChallenge is a portfolio challenge whose vote window contains f.now.
func (f *fixture) votingChallenge() models.Challenge {
	f.t.Helper()
	voteStart := f.now.Add(-time.Hour)
	voteEnd := f.now.Add(time.Hour)
	c := models.Challenge{
		Type:        models.ChallengeTypePortfolio,
		Title:       "Portfolio",
		StartAt:     f.now.Add(-72 * time.Hour),
		EndAt:       voteStart,
		VoteStartAt: &voteStart,
		VoteEndAt:   &voteEnd,
		Status:      models.ChallengeStatusVoting,
	}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c
}

// endedChallenge is a portfolio challenge whose vote window closed before f.now.
func (f *fixture) endedChallenge() models.Challenge {
	f.t.Helper()
	voteStart := f.now.Add(-48 * time.Hour)
	voteEnd := f.now.Add(-time.Hour)
	c := models.Challenge{
		Type:        models.ChallengeTypePortfolio,
		Title:       "Finished",
		StartAt:     f.now.Add(-96 * time.Hour),
		EndAt:       voteStart,
		VoteStartAt: &voteStart,
		VoteEndAt:   &voteEnd,
		Status:      models.ChallengeStatusEnded,
	}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) codeChallenge(weekRef string) models.Challenge {
	f.t.Helper()
	c := models.Challenge{
		Type:            models.ChallengeTypeCode,
		Title:           "Code",
		StartAt:         f.now.Add(-72 * time.Hour),
		EndAt:           f.now.Add(-time.Hour),
		Status:          models.ChallengeStatusEnded,
		ExternalWeekRef: weekRef,
	}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) submission(challenge models.Challenge, owner models.User) models.Submission {
	f.t.Helper()
	s := models.Submission{ChallengeID: challenge.ID, OwnerID: owner.ID, Title: owner.Username + " entry"}
	require.NoError(f.t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) vote(challenge models.Challenge, voter models.User, submission models.Submission, score int) models.PortfolioVote {
	f.t.Helper()
	v := models.PortfolioVote{
		ChallengeID:  challenge.ID,
		VoterID:      voter.ID,
		SubmissionID: submission.ID,
		UiUx:         score,
		Creativity:   score,
		CodeQuality:  score,
		Difficulty:   score,
	}
	require.NoError(f.t, f.db.Create(&v).Error)
	return v
}

func (f *fixture) balance(userID uint) int64 {
	f.t.Helper()
	var wallet models.CreditWallet
	err := f.db.Where("user_id = ?", userID).Limit(1).Find(&wallet).Error
	require.NoError(f.t, err)
	return wallet.Balance
}

func (f *fixture) ledgerCount(userID uint) int64 {
	f.t.Helper()
	var count int64
	require.NoError(f.t, f.db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func newValidator() *validator.Validate {
	return validator.New()
}

var bg = context.Background()

func mustSubmission(t *testing.T, db *gorm.DB, id uint) models.Submission {
	t.Helper()
	var s models.Submission
	require.NoError(t, db.First(&s, id).Error)
	return s
}
