package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Detector ────────────────────────────────────────────────────────────────

	DetectorOverdueFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "detector",
		Name:      "overdue_found_total",
		Help:      "Overdue schedule entries found, labelled by scope (plan|free).",
	}, []string{"scope"})

	DetectorMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "detector",
		Name:      "recurring_materialized_total",
		Help:      "Schedule rows synthesized for indefinite recurring tasks.",
	})

	// ─── Slot finder ─────────────────────────────────────────────────────────────

	SlotSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "doer",
		Subsystem: "slots",
		Name:      "search_duration_seconds",
		Help:      "Slot search time per overdue task, labelled by outcome (found|none).",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"outcome"})

	// ─── Proposals ───────────────────────────────────────────────────────────────

	ProposalsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "proposals",
		Name:      "created_total",
		Help:      "Reschedule proposals created.",
	})

	ProposalsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "proposals",
		Name:      "decided_total",
		Help:      "Proposals resolved by user decision, labelled accepted|rejected.",
	}, []string{"decision"})

	ProposalsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "proposals",
		Name:      "filtered_completed_total",
		Help:      "Pending proposals hidden because the task was completed elsewhere.",
	})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "proposals",
		Name:      "event_publish_failures_total",
		Help:      "Proposal lifecycle events that failed to publish after retries.",
	})

	// ─── Orchestrator / sweeper ──────────────────────────────────────────────────

	OrchestratorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Orchestrator passes, labelled by result (completed|disabled|locked|error).",
	}, []string{"result"})

	OrchestratorTaskErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "orchestrator",
		Name:      "task_errors_total",
		Help:      "Per-task failures during a pass (task reset to overdue).",
	})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "sweep",
		Name:      "runs_total",
		Help:      "Background sweep passes executed by this instance.",
	})

	SweepUsersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doer",
		Subsystem: "sweep",
		Name:      "users_processed_total",
		Help:      "Users processed across all sweep passes.",
	})
)
