package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/repository"
	"github.com/noah-isme/challenge-api/pkg/judge"
)

type stubLeaderboardSource struct {
	board judge.Leaderboard
	err   error
	weeks []string
}

func (s *stubLeaderboardSource) WeeklyLeaderboard(_ context.Context, weekRef string) (judge.Leaderboard, error) {
	s.weeks = append(s.weeks, weekRef)
	return s.board, s.err
}

func newRewardServiceForTest(t *testing.T, db *gorm.DB, f *fixture, source WeeklyLeaderboardSource, locks *redis.Client, applyCredits bool) *rewardService {
	t.Helper()
	svc := NewRewardService(
		repository.NewChallengeRepository(db),
		repository.NewSubmissionRepository(db),
		repository.NewVoteRepository(db),
		repository.NewUserRepository(db),
		repository.NewRewardRepository(db),
		source,
		locks,
		RewardConfig{ApplyCredits: applyCredits},
		newValidator(),
		zerolog.Nop(),
	).(*rewardService)
	svc.now = fixedClock(f.now)
	return svc
}

// rankedPortfolio builds an ended challenge where alice > bob > carol and dave only submitted.
func rankedPortfolio(f *fixture) (models.Challenge, map[string]models.User) {
	challenge := f.endedChallenge()
	users := map[string]models.User{}
	for _, name := range []string{"alice", "bob", "carol", "dave", "v1", "v2", "v3"} {
		users[name] = f.user(name)
	}
	subA := f.submission(challenge, users["alice"])
	subB := f.submission(challenge, users["bob"])
	subC := f.submission(challenge, users["carol"])
	f.submission(challenge, users["dave"])
	f.vote(challenge, users["v1"], subA, 5)
	f.vote(challenge, users["v2"], subB, 4)
	f.vote(challenge, users["v3"], subC, 3)
	return challenge, users
}

func TestPublishPortfolioResultsIsReplaySafe(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newRewardServiceForTest(t, db, f, nil, nil, true)
	challenge, users := rankedPortfolio(f)

	rule := RewardRule{Top: []int64{100, 50}, Participant: 10}
	inserted, err := svc.PublishPortfolioResults(bg, challenge.ID, rule)
	require.NoError(t, err)
	require.Equal(t, int64(4), inserted)

	require.Equal(t, int64(100), f.balance(users["alice"].ID))
	require.Equal(t, int64(50), f.balance(users["bob"].ID))
	require.Equal(t, int64(10), f.balance(users["carol"].ID))
	require.Equal(t, int64(10), f.balance(users["dave"].ID))
	require.Zero(t, f.balance(users["v1"].ID), "voters without a submission are not participants")

	payouts, err := svc.ListPayouts(bg, challenge.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 4)
	require.Equal(t, users["alice"].ID, payouts[0].UserID)
	require.Equal(t, 1, *payouts[0].Rank)
	require.Equal(t, models.RewardReasonPortfolioRank, payouts[0].Reason)
	require.Equal(t, 2, *payouts[1].Rank)
	require.Nil(t, payouts[2].Rank)
	require.Equal(t, models.RewardReasonParticipation, payouts[2].Reason)

	again, err := svc.PublishPortfolioResults(bg, challenge.ID, rule)
	require.NoError(t, err)
	require.Zero(t, again)
	require.Equal(t, int64(100), f.balance(users["alice"].ID))
	require.Equal(t, int64(1), f.ledgerCount(users["alice"].ID))

	published, err := svc.IsPublished(bg, challenge.ID)
	require.NoError(t, err)
	require.True(t, published)
}

func TestPublishPortfolioResultsRequiresFinishedVoting(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newRewardServiceForTest(t, db, f, nil, nil, true)

	_, err := svc.PublishPortfolioResults(bg, f.votingChallenge().ID, DefaultRewardRule())
	require.ErrorIs(t, err, ErrVotingNotFinished)

	_, err = svc.PublishPortfolioResults(bg, f.codeChallenge("2025-W10").ID, DefaultRewardRule())
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.PublishPortfolioResults(bg, 999, DefaultRewardRule())
	require.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = svc.PublishPortfolioResults(bg, f.endedChallenge().ID, RewardRule{Top: []int64{100, 0}})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPublishWithoutCreditsLeavesWalletsUntouched(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newRewardServiceForTest(t, db, f, nil, nil, false)
	challenge, users := rankedPortfolio(f)

	inserted, err := svc.PublishPortfolioResults(bg, challenge.ID, DefaultRewardRule())
	require.NoError(t, err)
	require.Equal(t, int64(4), inserted)
	require.Zero(t, f.balance(users["alice"].ID))
	require.Zero(t, f.ledgerCount(users["alice"].ID))
}

func TestPublishCodeResultsResolvesReferences(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)

	alice := f.user("alice")
	bob := f.user("bob")
	carol := f.user("carol")
	retired := f.user("retired")
	require.NoError(t, db.Model(&retired).Update("active", false).Error)

	one, two, three, four := 1, 2, 3, 4
	source := &stubLeaderboardSource{board: judge.Leaderboard{WeekRef: "2025-W10", Entries: []judge.Entry{
		{UserRef: "bob"},
		{UserRef: fmt.Sprint(carol.ID), Rank: &two},
		{UserRef: "ghost", Rank: &three},
		{UserRef: "alice", Rank: &one},
		{UserRef: "retired", Rank: &four},
		{UserRef: "alice", Rank: &four},
	}}}
	svc := newRewardServiceForTest(t, db, f, source, nil, true)
	challenge := f.codeChallenge("2025-W10")

	preview, err := svc.Preview(bg, challenge.ID, RewardRule{Top: []int64{100, 50}, Participant: 10}, "")
	require.NoError(t, err)
	require.Equal(t, 3, preview.RankingSize)
	require.Equal(t, 2, preview.Skipped)
	require.False(t, preview.Published)
	require.Len(t, preview.Payouts, 3)
	require.Zero(t, f.balance(alice.ID), "preview must not write")

	inserted, err := svc.PublishCodeResults(bg, challenge.ID, RewardRule{Top: []int64{100, 50}, Participant: 10}, "")
	require.NoError(t, err)
	require.Equal(t, int64(3), inserted)
	require.Equal(t, []string{"2025-W10", "2025-W10"}, source.weeks)

	require.Equal(t, int64(100), f.balance(alice.ID))
	require.Equal(t, int64(50), f.balance(carol.ID))
	require.Equal(t, int64(10), f.balance(bob.ID))
	require.Zero(t, f.balance(retired.ID))
}

func TestPublishCodeResultsNeedsWeekReference(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	source := &stubLeaderboardSource{}
	svc := newRewardServiceForTest(t, db, f, source, nil, true)

	_, err := svc.PublishCodeResults(bg, f.codeChallenge("  ").ID, DefaultRewardRule(), "")
	require.ErrorIs(t, err, ErrWeekRefRequired)
	require.Empty(t, source.weeks)

	_, err = svc.PublishCodeResults(bg, f.codeChallenge("").ID, DefaultRewardRule(), "2025-W11")
	require.NoError(t, err)
	require.Equal(t, []string{"2025-W11"}, source.weeks)
}

func TestPublishCustomPayoutAccumulates(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newRewardServiceForTest(t, db, f, nil, nil, true)
	challenge := f.endedChallenge()
	user := f.user("alice")

	three, one := 3, 1
	req := dto.CustomPayoutRequest{UserID: user.ID, Amount: 700, Rank: &three, Memo: "<b>bonus</b>"}
	changed, err := svc.PublishCustomPayout(bg, challenge.ID, req)
	require.NoError(t, err)
	require.Equal(t, int64(1), changed)

	req.Rank = &one
	_, err = svc.PublishCustomPayout(bg, challenge.ID, req)
	require.NoError(t, err)

	payouts, err := svc.ListPayouts(bg, challenge.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	require.Equal(t, int64(1400), payouts[0].Amount)
	require.Equal(t, 1, *payouts[0].Rank)
	require.Equal(t, "bonus", payouts[0].Memo)
	require.Equal(t, models.RewardReasonCustom, payouts[0].Reason)

	require.Equal(t, int64(1400), f.balance(user.ID))
	require.Equal(t, int64(2), f.ledgerCount(user.ID))
}

func TestPublishCustomPayoutRejectsReplayedKey(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	_, client := newTestRedis(t)
	svc := newRewardServiceForTest(t, db, f, nil, client, true)
	challenge := f.endedChallenge()
	user := f.user("alice")

	req := dto.CustomPayoutRequest{UserID: user.ID, Amount: 300, IdempotencyKey: "grant-1"}
	_, err := svc.PublishCustomPayout(bg, challenge.ID, req)
	require.NoError(t, err)

	_, err = svc.PublishCustomPayout(bg, challenge.ID, req)
	require.ErrorIs(t, err, ErrDuplicatePayout)
	require.Equal(t, int64(300), f.balance(user.ID))
}

type flakyRewardRepository struct {
	repository.RewardRepository
	failures int
}

func (r *flakyRewardRepository) Transaction(ctx context.Context, fn func(tx repository.RewardRepository) error) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.RewardRepository.Transaction(ctx, fn)
}

func TestPublishCustomPayoutReleasesKeyWhenWriteFails(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	mini, client := newTestRedis(t)
	svc := newRewardServiceForTest(t, db, f, nil, client, true)
	svc.rewards = &flakyRewardRepository{RewardRepository: svc.rewards, failures: 1}
	challenge := f.endedChallenge()
	user := f.user("alice")

	req := dto.CustomPayoutRequest{UserID: user.ID, Amount: 250, IdempotencyKey: "grant-7"}
	_, err := svc.PublishCustomPayout(bg, challenge.ID, req)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicatePayout)
	require.False(t, mini.Exists(fmt.Sprintf("reward:custom:%d:grant-7", challenge.ID)))

	changed, err := svc.PublishCustomPayout(bg, challenge.ID, req)
	require.NoError(t, err)
	require.Equal(t, int64(1), changed)
	require.Equal(t, int64(250), f.balance(user.ID))

	_, err = svc.PublishCustomPayout(bg, challenge.ID, req)
	require.ErrorIs(t, err, ErrDuplicatePayout)
	require.Equal(t, int64(250), f.balance(user.ID))
}

func TestPublishCustomPayoutValidation(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newRewardServiceForTest(t, db, f, nil, nil, true)
	challenge := f.endedChallenge()
	user := f.user("alice")

	_, err := svc.PublishCustomPayout(bg, challenge.ID, dto.CustomPayoutRequest{UserID: user.ID, Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.PublishCustomPayout(bg, challenge.ID, dto.CustomPayoutRequest{UserID: 4040, Amount: 10})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.PublishCustomPayout(bg, 4040, dto.CustomPayoutRequest{UserID: user.ID, Amount: 10})
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestPublishResultsRoutesByType(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	source := &stubLeaderboardSource{}
	svc := newRewardServiceForTest(t, db, f, source, nil, true)
	portfolio, _ := rankedPortfolio(f)

	resp, err := svc.PublishResults(bg, portfolio.ID, DefaultRewardRule(), "ignored")
	require.NoError(t, err)
	require.Equal(t, int64(4), resp.Paid)
	require.Empty(t, source.weeks)

	code := f.codeChallenge("2025-W12")
	_, err = svc.PublishResults(bg, code.ID, DefaultRewardRule(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"2025-W12"}, source.weeks)
}
