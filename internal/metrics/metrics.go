package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentops"

var (
	once sync.Once

	syncOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Platform sheet writes by platform, action and result.",
		},
		[]string{"platform", "action", "result"},
	)

	duplicateRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_duplicate_rows_total",
			Help:      "Lookups that found more than one row for the same key.",
		},
		[]string{"sheet"},
	)

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_polls_total",
			Help:      "Task map polls by outcome.",
		},
		[]string{"outcome"},
	)

	intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_intents_total",
			Help:      "Scheduler intents by platform and final status.",
		},
		[]string{"platform", "status"},
	)

	serverReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_reachable",
			Help:      "1 while the task endpoint answers, 0 once the unreachable threshold is crossed.",
		},
	)

	trackerFailovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_failovers_total",
			Help:      "Times the task tracker fell back from redis to memory.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncOps, duplicateRows, intents, polls, serverReachable, trackerFailovers)
		serverReachable.Set(1)
	})
}

// IncSync counts one synchronizer outcome.
func IncSync(platform, action, result string) {
	syncOps.WithLabelValues(platform, action, result).Inc()
}

func IncDuplicate(sheet string) {
	duplicateRows.WithLabelValues(sheet).Inc()
}

// IncIntent counts a scheduler intent reaching committed or failed.
func IncIntent(platform, status string) {
	intents.WithLabelValues(platform, status).Inc()
}

// IncPoll counts one poll tick (ok, error, idle).
func IncPoll(outcome string) {
	polls.WithLabelValues(outcome).Inc()
}

func SetReachable(ok bool) {
	if ok {
		serverReachable.Set(1)
		return
	}
	serverReachable.Set(0)
}

func IncTrackerFailover() {
	trackerFailovers.Inc()
}
