package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_evaluate_duration_sec",
	Help: "Total duration of submission evaluations",
}, []string{"kind"})

var evaluateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_evaluations",
	Help: "Number of submission evaluations, by outcome",
}, []string{"kind", "outcome"})

var evaluateErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_evaluate_errors",
	Help: "Number of evaluations recovered from an internal exception",
}, []string{"kind"})

var detectorErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_detector_errors",
	Help: "Number of detector runs degraded to no-signal by error or panic",
}, []string{"detector"})

var actionNewFlagCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_new_content_flags",
	Help: "Number of content flags persisted",
}, []string{"type"})

var actionNewReportCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_new_auto_reports",
	Help: "Number of auto-reports filed",
}, []string{"reason"})

var reportQuotaTrips = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_report_quota_trips",
	Help: "Number of times the daily auto-report circuit breaker fired",
})

var notifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_notify_errors",
	Help: "Number of failed ops notifications",
})
