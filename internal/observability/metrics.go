package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
	adminErrorsTotal    *prometheus.CounterVec

	leaderboardCacheTotal    *prometheus.CounterVec
	leaderboardRebuildsTotal *prometheus.CounterVec
	lifecycleTransitions     *prometheus.CounterVec
	lifecycleEventsTotal     *prometheus.CounterVec
	rewardPayoutsTotal       *prometheus.CounterVec
	rewardSkippedRefsTotal   prometheus.Counter
	creditSpendsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_cache_total",
			Help: "Leaderboard cache outcomes (hit, miss, fault).",
		}, []string{"result"})

		leaderboardRebuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_rebuilds_total",
			Help: "Leaderboard cache rebuilds by trigger.",
		}, []string{"trigger"})

		lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "challenge_transitions_total",
			Help: "Challenge status transition attempts by outcome.",
		}, []string{"from", "to", "outcome"})

		lifecycleEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "challenge_lifecycle_events_total",
			Help: "Lifecycle event deliveries by target and outcome.",
		}, []string{"target", "outcome"})

		rewardPayoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_payouts_total",
			Help: "Payout rows written by reason.",
		}, []string{"reason"})

		rewardSkippedRefsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reward_skipped_refs_total",
			Help: "External leaderboard entries that could not be resolved to an active user.",
		})

		creditSpendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_spends_total",
			Help: "Credit spend attempts by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			adminRequestsTotal, adminLatencySeconds, adminErrorsTotal,
			leaderboardCacheTotal, leaderboardRebuildsTotal,
			lifecycleTransitions, lifecycleEventsTotal,
			rewardPayoutsTotal, rewardSkippedRefsTotal, creditSpendsTotal,
		)
	})
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// LeaderboardCache counts cache outcomes.
func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}

// LeaderboardRebuilds counts cache rebuilds.
func LeaderboardRebuilds() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardRebuildsTotal
}

// LifecycleTransitions counts won and lost status transitions.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitions
}

// LifecycleEvents counts event deliveries to handlers and publishers.
func LifecycleEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleEventsTotal
}

// RewardPayouts counts payout rows written.
func RewardPayouts() *prometheus.CounterVec {
	RegisterMetrics()
	return rewardPayoutsTotal
}

// RewardSkippedRefs counts unresolvable external leaderboard references.
func RewardSkippedRefs() prometheus.Counter {
	RegisterMetrics()
	return rewardSkippedRefsTotal
}

// CreditSpends counts spend attempts.
func CreditSpends() *prometheus.CounterVec {
	RegisterMetrics()
	return creditSpendsTotal
}
