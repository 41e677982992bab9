// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_commands_total",
			Help: "Total number of commands processed by the workflow engine",
		},
		[]string{"command"},
	)

	EngineCommandFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_command_failures_total",
			Help: "Total number of commands refused or failed, by error code",
		},
		[]string{"command", "error_code"},
	)

	EngineCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_command_duration_seconds",
			Help: "Duration of command processing in seconds",
		},
		[]string{"command"},
	)

	ProjectsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_projects_active",
			Help: "Number of project aggregates currently held in memory",
		},
	)

	DelayNoticesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_delay_notices_sent_total",
			Help: "Automated delay notices sent for overdue projects",
		},
	)
)
