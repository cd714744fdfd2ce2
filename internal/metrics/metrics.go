// Package metrics holds the Prometheus instruments used across formlab.  All
// collectors are registered with the global registry, so importing this
// package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formlab_validations_total",
			Help: "Validator runs partitioned by form and outcome (accepted|rejected).",
		}, []string{"form", "outcome"})

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formlab_submissions_total",
			Help: "Completed submissions partitioned by form and final state.",
		}, []string{"form", "state"})

	SubmissionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "formlab_submissions_in_flight",
			Help: "Controllers currently in the Submitting state.",
		})

	BusyRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "formlab_busy_rejections_total",
			Help: "Submit calls refused because a submission was already in flight.",
		})

	SchemaReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formlab_schema_reloads_total",
			Help: "Schema override reloads partitioned by result (ok|error).",
		}, []string{"result"})

	ControllersEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "formlab_controllers_evicted_total",
			Help: "Per-visitor form controllers evicted from the session cache.",
		})
)

func init() {
	prometheus.MustRegister(
		ValidationsTotal,
		SubmissionsTotal,
		SubmissionsInFlight,
		BusyRejectionsTotal,
		SchemaReloadsTotal,
		ControllersEvictedTotal,
	)
}
