// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Mail gateway
var (
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_emails_sent_total",
			Help: "Emails accepted by the transport",
		},
		[]string{"provider"},
	)

	EmailTransportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_email_transport_failures_total",
			Help: "Emails the transport rejected after quota reservation",
		},
		[]string{"provider"},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_quota_rejections_total",
			Help: "Sends rejected because the daily limit was reached",
		},
	)

	QueueReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_queue_reconciled_total",
			Help: "Queued emails processed by reconciliation, by result",
		},
		[]string{"result"},
	)
)

// Issue pipeline
var (
	IssueSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_issue_submissions_total",
			Help: "Issue report submissions by outcome code",
		},
		[]string{"outcome"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_notification_failures_total",
			Help: "Failed notification steps, fatal or not",
		},
		[]string{"step", "fatal"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_submission_duration_seconds",
			Help:    "End-to-end issue submission time",
			Buckets: prometheus.DefBuckets,
		},
	)
)
