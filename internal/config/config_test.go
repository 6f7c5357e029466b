package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHALLENGE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 300*time.Millisecond, cfg.LeaderboardCacheTimeout)
	require.Equal(t, 50, cfg.LeaderboardDefaultLimit)
	require.True(t, cfg.SchedulerEnabled)
	require.Equal(t, "@every 15s", cfg.SchedulerSpec)
	require.True(t, cfg.RewardApplyCredits)
	require.Equal(t, 10*time.Second, cfg.RewardIdempotencyTTL)
	require.Equal(t, []int64{10000, 5000, 3000}, cfg.RewardAuto.Top)
	require.Equal(t, int64(500), cfg.RewardAuto.Participant)
	require.Zero(t, cfg.RewardAuto.Delay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHALLENGE_JWT_SECRET", "secret")
	t.Setenv("CHALLENGE_APP_PORT", ":9000")
	t.Setenv("CHALLENGE_REWARD_AUTO_TOP", "700, 300")
	t.Setenv("CHALLENGE_REWARD_AUTO_DELAY", "30s")
	t.Setenv("CHALLENGE_REWARD_APPLY_CREDITS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, []int64{700, 300}, cfg.RewardAuto.Top)
	require.Equal(t, 30*time.Second, cfg.RewardAuto.Delay)
	require.False(t, cfg.RewardApplyCredits)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CHALLENGE_JWT_SECRET", "secret")
	t.Setenv("CHALLENGE_REWARD_AUTO_TOP", "100,-5")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CHALLENGE_REWARD_AUTO_TOP", "100")
	t.Setenv("CHALLENGE_LEADERBOARD_CACHE_TIMEOUT", "soon")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("CHALLENGE_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}
