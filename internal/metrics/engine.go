package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine metrics, registered explicitly from main (no init()).
var (
	// ListingsEvaluated counts listings that completed evaluation, by outcome
	// (matched, no_match, malformed).
	ListingsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plundrr",
			Name:      "listings_evaluated_total",
			Help:      "Listings evaluated by the matcher, by outcome",
		},
		[]string{"outcome"},
	)

	// MatchEvents counts candidate match events before the dedup gate.
	MatchEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plundrr",
			Name:      "match_events_total",
			Help:      "Match events produced by the matcher",
		},
	)

	// NotificationsPublished counts first-time matches handed to the sink.
	NotificationsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plundrr",
			Name:      "notifications_published_total",
			Help:      "First-time match events published to the notification sink",
		},
	)

	// NotificationsSuppressed counts matches the dedup ledger rejected.
	NotificationsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plundrr",
			Name:      "notifications_suppressed_total",
			Help:      "Match events suppressed as duplicates by the ledger",
		},
	)

	// CriteriaEvents counts change feed applications, by result
	// (applied, stale, invalid, error).
	CriteriaEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plundrr",
			Name:      "criteria_events_total",
			Help:      "Criteria change feed events, by application result",
		},
		[]string{"result"},
	)

	// IndexedSearches tracks the rule index population.
	IndexedSearches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plundrr",
			Name:      "indexed_searches",
			Help:      "Searches currently present in the rule index",
		},
	)

	// BlockedPairs tracks the blocklist population.
	BlockedPairs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plundrr",
			Name:      "blocked_pairs",
			Help:      "Blocked (user, seller) pairs currently indexed",
		},
	)

	// QueueDepth tracks the listing evaluation queue. Sustained growth is
	// the signal for the ingestion source to throttle.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plundrr",
			Name:      "queue_depth",
			Help:      "Listings waiting in the evaluation queue",
		},
	)
)

// RegisterEngineMetrics registers all engine collectors.
func RegisterEngineMetrics() {
	prometheus.MustRegister(
		ListingsEvaluated,
		MatchEvents,
		NotificationsPublished,
		NotificationsSuppressed,
		CriteriaEvents,
		IndexedSearches,
		BlockedPairs,
		QueueDepth,
	)
}
