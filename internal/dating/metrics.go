package dating

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	interactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butterfly_interactions_total",
			Help: "Total number of interactions processed",
		},
		[]string{"trigger"},
	)

	rewardsLanded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butterfly_rewards_landed_total",
			Help: "Total number of butterfly rewards landed",
		},
		[]string{"trigger", "tier"},
	)

	rewardsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butterfly_rewards_collected_total",
			Help: "Total number of butterflies collected by members",
		},
		[]string{"tier"},
	)

	rewardProbability = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "butterfly_reward_probability",
			Help:    "Distribution of computed reward probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"trigger"},
	)

	heartSyncSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "butterfly_heart_sync_sessions_total",
			Help: "Total number of heart sync sessions folded",
		},
	)

	heartSyncPercentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "butterfly_heart_sync_percentage",
			Help:    "Distribution of session sync percentages",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	matchesActivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "butterfly_matches_activated_total",
			Help: "Total number of matches promoted to active by a mutual like",
		},
	)

	ghostingWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "butterfly_ghosting_warnings_total",
			Help: "Total number of ghosting warnings sent",
		},
	)

	commitConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "butterfly_commit_conflicts_total",
			Help: "Optimistic version conflicts hit while committing",
		},
	)

	idempotentReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butterfly_idempotent_replays_total",
			Help: "Events answered from a stored outcome",
		},
		[]string{"source"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "butterfly_operation_duration_seconds",
			Help: "Latency of engine operations including persistence",
		},
		[]string{"operation"},
	)
)
