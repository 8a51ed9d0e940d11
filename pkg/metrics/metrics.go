// Package metrics exposes the Bot Lifecycle Manager's Prometheus
// collectors, promauto-registered against the default registry and served
// from GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blm_admissions_total",
		Help: "Bot admission attempts by outcome",
	}, []string{"outcome"}) // outcome=admitted|limit_exceeded|rejected

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blm_callbacks_total",
		Help: "Worker callbacks received by kind and outcome",
	}, []string{"kind", "outcome"})

	ReaperSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blm_reaper_sweeps_total",
		Help: "Total number of reaper sweep cycles completed",
	})

	ReaperRecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blm_reaper_recovered_total",
		Help: "Meetings marked failed by the reaper, by phase",
	}, []string{"phase"})

	ActiveMeetings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blm_active_meetings",
		Help: "Non-terminal meetings by status",
	}, []string{"status"})

	OrchestratorOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blm_orchestrator_operation_duration_seconds",
		Help:    "Container Orchestrator Adapter call latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
