package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the challenge service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	LeaderboardCacheTimeout time.Duration
	LeaderboardDefaultLimit int

	SchedulerEnabled  bool
	SchedulerSpec     string
	SchedulerTimezone string

	RewardApplyCredits   bool
	RewardIdempotencyTTL time.Duration
	RewardAuto           RewardAutoConfig

	JudgeBaseURL string
	JudgeAPIKey  string
	JudgeTimeout time.Duration

	EventsChannelBase string
}

// RewardAutoConfig drives result publication when a challenge ends.
type RewardAutoConfig struct {
	Enabled     bool
	DryRun      bool
	Delay       time.Duration
	Top         []int64
	Participant int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHALLENGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Challenge API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("leaderboard.cache_timeout", "300ms")
	v.SetDefault("leaderboard.default_limit", 50)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 15s")
	v.SetDefault("scheduler.timezone", "Asia/Seoul")
	v.SetDefault("reward.apply_credits", true)
	v.SetDefault("reward.idempotency_ttl", "10s")
	v.SetDefault("reward.auto.enabled", true)
	v.SetDefault("reward.auto.dry_run", false)
	v.SetDefault("reward.auto.delay", "0s")
	v.SetDefault("reward.auto.top", "10000,5000,3000")
	v.SetDefault("reward.auto.participant", 500)
	v.SetDefault("judge.timeout", "5s")
	v.SetDefault("events.channel_base", "challenge")

	durations := map[string]time.Duration{}
	for _, key := range []string{"leaderboard.cache_timeout", "reward.idempotency_ttl", "reward.auto.delay", "judge.timeout"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = d
	}

	top, err := parseAmounts(v.GetString("reward.auto.top"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid reward.auto.top: %w", err)
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		DatabaseURL:             v.GetString("database.url"),
		RedisURL:                v.GetString("redis.url"),
		NATSURL:                 v.GetString("nats.url"),
		JWTSecret:               v.GetString("jwt.secret"),
		LeaderboardCacheTimeout: durations["leaderboard.cache_timeout"],
		LeaderboardDefaultLimit: v.GetInt("leaderboard.default_limit"),
		SchedulerEnabled:        v.GetBool("scheduler.enabled"),
		SchedulerSpec:           v.GetString("scheduler.spec"),
		SchedulerTimezone:       v.GetString("scheduler.timezone"),
		RewardApplyCredits:      v.GetBool("reward.apply_credits"),
		RewardIdempotencyTTL:    durations["reward.idempotency_ttl"],
		RewardAuto: RewardAutoConfig{
			Enabled:     v.GetBool("reward.auto.enabled"),
			DryRun:      v.GetBool("reward.auto.dry_run"),
			Delay:       durations["reward.auto.delay"],
			Top:         top,
			Participant: v.GetInt64("reward.auto.participant"),
		},
		JudgeBaseURL:      v.GetString("judge.base_url"),
		JudgeAPIKey:       v.GetString("judge.api_key"),
		JudgeTimeout:      durations["judge.timeout"],
		EventsChannelBase: v.GetString("events.channel_base"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.LeaderboardDefaultLimit <= 0 {
		cfg.LeaderboardDefaultLimit = 50
	}

	if cfg.RewardAuto.Participant < 0 {
		return Config{}, fmt.Errorf("invalid reward.auto.participant: must not be negative")
	}

	return cfg, nil
}

// parseAmounts reads a comma separated list of positive amounts, e.g. "10000,5000,3000".
func parseAmounts(raw string) ([]int64, error) {
	var amounts []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		amount, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		if amount <= 0 {
			return nil, fmt.Errorf("amount %d must be positive", amount)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}
