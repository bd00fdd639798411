package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accelerator_applications_submitted_total",
			Help: "Applications accepted by the intake flow, by sector",
		},
		[]string{"sector"},
	)

	SubmissionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accelerator_submissions_rejected_total",
			Help: "Intake submissions that did not create an application",
		},
		[]string{"reason"},
	)

	StatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accelerator_status_changes_total",
			Help: "Application status transitions, by target status",
		},
		[]string{"status"},
	)

	OptimisticRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accelerator_optimistic_rollbacks_total",
			Help: "Admin edits reverted after the backend refused them",
		},
		[]string{"action"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accelerator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)
