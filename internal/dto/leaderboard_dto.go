package dto

import "time"

// LeaderboardItem is a ranked submission enriched with display data.
type LeaderboardItem struct {
	RankingItem
	Title            string `json:"title"`
	RepoURL          string `json:"repo_url,omitempty"`
	DemoURL          string `json:"demo_url,omitempty"`
	OwnerUsername    string `json:"owner_username"`
	OwnerDisplayName string `json:"owner_display_name"`
}

// LeaderboardResponse is the cached live leaderboard view.
type LeaderboardResponse struct {
	ChallengeID uint              `json:"challenge_id"`
	Items       []LeaderboardItem `json:"items"`
	CacheHit    bool              `json:"cache_hit"`
	GeneratedAt time.Time         `json:"generated_at"`
}
