package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/observability"
	"github.com/noah-isme/challenge-api/internal/ranking"
	"github.com/noah-isme/challenge-api/internal/repository"
)

// ScoreDelta is a signed change to one submission's criterion sums and vote count.
type ScoreDelta struct {
	Scores [ranking.Criteria]int64
	Count  int64
}

// LeaderboardCache mirrors per-submission vote aggregates in Redis.
// Every fault is absorbed here; callers never see cache errors from ApplyDelta.
type LeaderboardCache interface {
	ApplyDelta(ctx context.Context, challengeID, submissionID uint, delta ScoreDelta)
	Rebuild(ctx context.Context, challengeID uint) error
	Get(ctx context.Context, challengeID uint, limit int) (dto.LeaderboardResponse, error)
	Invalidate(ctx context.Context, challengeID uint)
}

var errMalformedEntry = errors.New("malformed leaderboard cache entry")

const (
	// readyTTL bounds how long a rebuilt cache is trusted when a failed delta could not be reported.
	readyTTL          = 15 * time.Minute
	invalidateTimeout = time.Second
)

// KEYS: stats hash, active set, ready marker. ARGV: field, d0..d3, dCount.
// Deltas are dropped until a rebuild has marked the challenge ready.
var applyDeltaScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 0 then
  return -1
end
local v = {0, 0, 0, 0, 0}
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur then
  local i = 1
  for part in string.gmatch(cur, '([^:]+)') do
    local n = tonumber(part)
    if n == nil or i > 5 then
      return redis.error_reply('MALFORMED')
    end
    v[i] = n
    i = i + 1
  end
  if i ~= 6 then
    return redis.error_reply('MALFORMED')
  end
end
for j = 1, 5 do
  v[j] = v[j] + tonumber(ARGV[j + 1])
end
if v[5] <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  redis.call('SREM', KEYS[2], ARGV[1])
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], v[1] .. ':' .. v[2] .. ':' .. v[3] .. ':' .. v[4] .. ':' .. v[5])
redis.call('SADD', KEYS[2], ARGV[1])
return v[5]
`)

type leaderboardCache struct {
	redis       *redis.Client
	votes       repository.VoteRepository
	submissions repository.SubmissionRepository
	rebuilds    singleflight.Group
	stale       sync.Map
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLeaderboardCache builds the cache over an injected Redis client. A nil client disables caching
// and every read is served from the vote store.
func NewLeaderboardCache(client *redis.Client, votes repository.VoteRepository, submissions repository.SubmissionRepository, logger zerolog.Logger) LeaderboardCache {
	return &leaderboardCache{
		redis:       client,
		votes:       votes,
		submissions: submissions,
		logger:      logger.With().Str("component", "leaderboard_cache").Logger(),
		now:         time.Now,
	}
}

func statsKey(challengeID uint) string { return fmt.Sprintf("challenge:%d:lb:stats", challengeID) }
func subsKey(challengeID uint) string  { return fmt.Sprintf("challenge:%d:lb:subs", challengeID) }
func readyKey(challengeID uint) string { return fmt.Sprintf("challenge:%d:lb:ready", challengeID) }

func (c *leaderboardCache) ApplyDelta(ctx context.Context, challengeID, submissionID uint, delta ScoreDelta) {
	if c.redis == nil {
		return
	}

	keys := []string{statsKey(challengeID), subsKey(challengeID), readyKey(challengeID)}
	args := []interface{}{
		strconv.FormatUint(uint64(submissionID), 10),
		delta.Scores[0], delta.Scores[1], delta.Scores[2], delta.Scores[3],
		delta.Count,
	}

	if err := applyDeltaScript.Run(ctx, c.redis, keys, args...).Err(); err != nil {
		observability.LeaderboardCache().WithLabelValues("fault").Inc()
		c.logger.Warn().
			Err(err).
			Uint("challenge_id", challengeID).
			Uint("submission_id", submissionID).
			Msg("failed to apply leaderboard delta")
		c.markStale(ctx, challengeID)
	}
}

// markStale drops the cached aggregates after a lost delta. When Redis cannot take the delete
// either, the challenge is remembered so the next Get rebuilds instead of trusting the marker.
func (c *leaderboardCache) markStale(ctx context.Context, challengeID uint) {
	c.stale.Store(challengeID, struct{}{})

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := c.invalidate(delCtx, challengeID); err != nil {
		c.logger.Warn().Err(err).Uint("challenge_id", challengeID).Msg("failed to invalidate leaderboard cache after lost delta")
	}
}

// Rebuild replaces the cached aggregates for the challenge with the vote store's raw sums and counts.
func (c *leaderboardCache) Rebuild(ctx context.Context, challengeID uint) error {
	if c.redis == nil {
		return nil
	}

	// Cleared before aggregating so a delta lost during the rebuild marks the challenge again.
	c.stale.Delete(challengeID)

	stats, err := c.votes.AggregateBySubmission(ctx, challengeID)
	if err != nil {
		c.stale.Store(challengeID, struct{}{})
		return fmt.Errorf("aggregate votes: %w", err)
	}

	_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, statsKey(challengeID), subsKey(challengeID), readyKey(challengeID))
		for _, s := range stats {
			if s.Count <= 0 {
				continue
			}
			field := strconv.FormatUint(uint64(s.SubmissionID), 10)
			pipe.HSet(ctx, statsKey(challengeID), field, encodeEntry(s))
			pipe.SAdd(ctx, subsKey(challengeID), field)
		}
		pipe.Set(ctx, readyKey(challengeID), "1", readyTTL)
		return nil
	})
	if err != nil {
		c.stale.Store(challengeID, struct{}{})
		return fmt.Errorf("write leaderboard cache: %w", err)
	}

	c.logger.Debug().Uint("challenge_id", challengeID).Int("entries", len(stats)).Msg("leaderboard cache rebuilt")
	return nil
}

func (c *leaderboardCache) Invalidate(ctx context.Context, challengeID uint) {
	if c.redis == nil {
		return
	}
	if err := c.invalidate(ctx, challengeID); err != nil {
		c.logger.Warn().Err(err).Uint("challenge_id", challengeID).Msg("failed to invalidate leaderboard cache")
	}
}

func (c *leaderboardCache) invalidate(ctx context.Context, challengeID uint) error {
	return c.redis.Del(ctx, statsKey(challengeID), subsKey(challengeID), readyKey(challengeID)).Err()
}

func (c *leaderboardCache) Get(ctx context.Context, challengeID uint, limit int) (dto.LeaderboardResponse, error) {
	stats, hit, err := c.load(ctx, challengeID)
	if err != nil {
		observability.LeaderboardCache().WithLabelValues("fault").Inc()
		c.logger.Warn().Err(err).Uint("challenge_id", challengeID).Msg("leaderboard cache unavailable, reading vote store")

		stats, err = c.votes.AggregateBySubmission(ctx, challengeID)
		if err != nil {
			return dto.LeaderboardResponse{}, err
		}
		hit = false
	}

	entries := ranking.Compute(stats)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items, err := c.enrich(ctx, entries)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	return dto.LeaderboardResponse{
		ChallengeID: challengeID,
		Items:       items,
		CacheHit:    hit,
		GeneratedAt: c.now().UTC(),
	}, nil
}

func (c *leaderboardCache) load(ctx context.Context, challengeID uint) ([]ranking.Stats, bool, error) {
	if c.redis == nil {
		return nil, false, errors.New("leaderboard cache disabled")
	}

	if _, stale := c.stale.Load(challengeID); !stale {
		stats, ready, err := c.read(ctx, challengeID)
		if err != nil {
			return nil, false, err
		}
		if ready {
			observability.LeaderboardCache().WithLabelValues("hit").Inc()
			return stats, true, nil
		}
	}

	observability.LeaderboardCache().WithLabelValues("miss").Inc()
	observability.LeaderboardRebuilds().WithLabelValues("miss").Inc()
	key := strconv.FormatUint(uint64(challengeID), 10)
	if _, err, _ := c.rebuilds.Do(key, func() (interface{}, error) {
		return nil, c.Rebuild(context.WithoutCancel(ctx), challengeID)
	}); err != nil {
		return nil, false, err
	}

	stats, ready, err := c.read(ctx, challengeID)
	if err != nil {
		return nil, false, err
	}
	if !ready {
		return nil, false, errors.New("leaderboard cache not ready after rebuild")
	}
	return stats, false, nil
}

func (c *leaderboardCache) read(ctx context.Context, challengeID uint) ([]ranking.Stats, bool, error) {
	exists, err := c.redis.Exists(ctx, readyKey(challengeID)).Result()
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}

	members, err := c.redis.SMembers(ctx, subsKey(challengeID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		return []ranking.Stats{}, true, nil
	}

	values, err := c.redis.HMGet(ctx, statsKey(challengeID), members...).Result()
	if err != nil {
		return nil, false, err
	}

	stats := make([]ranking.Stats, 0, len(members))
	for i, member := range members {
		raw, ok := values[i].(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			c.Invalidate(ctx, challengeID)
			return nil, false, fmt.Errorf("%w: member %q", errMalformedEntry, member)
		}
		entry, err := decodeEntry(uint(id), raw)
		if err != nil {
			c.Invalidate(ctx, challengeID)
			return nil, false, err
		}
		stats = append(stats, entry)
	}
	return stats, true, nil
}

func (c *leaderboardCache) enrich(ctx context.Context, entries []ranking.Entry) ([]dto.LeaderboardItem, error) {
	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.SubmissionID)
	}

	cards, err := c.submissions.ListCards(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]repository.SubmissionCard, len(cards))
	for _, card := range cards {
		byID[card.SubmissionID] = card
	}

	items := make([]dto.LeaderboardItem, 0, len(entries))
	for _, e := range entries {
		card := byID[e.SubmissionID]
		if e.OwnerID == 0 {
			e.OwnerID = card.OwnerID
		}
		items = append(items, dto.LeaderboardItem{
			RankingItem:      dto.NewRankingItem(e),
			Title:            card.Title,
			RepoURL:          card.RepoURL,
			DemoURL:          card.DemoURL,
			OwnerUsername:    card.OwnerUsername,
			OwnerDisplayName: card.OwnerDisplayName,
		})
	}
	return items, nil
}

func encodeEntry(s ranking.Stats) string {
	return fmt.Sprintf("%d:%d:%d:%d:%d", s.Sums[0], s.Sums[1], s.Sums[2], s.Sums[3], s.Count)
}

func decodeEntry(submissionID uint, raw string) (ranking.Stats, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != ranking.Criteria+1 {
		return ranking.Stats{}, fmt.Errorf("%w: %q", errMalformedEntry, raw)
	}

	var values [ranking.Criteria + 1]int64
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return ranking.Stats{}, fmt.Errorf("%w: %q", errMalformedEntry, raw)
		}
		values[i] = v
	}

	return ranking.Stats{
		SubmissionID: submissionID,
		Sums:         [ranking.Criteria]int64{values[0], values[1], values[2], values[3]},
		Count:        values[ranking.Criteria],
	}, nil
}
