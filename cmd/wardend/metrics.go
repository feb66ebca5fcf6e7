package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("wardend")

var sweepRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wardend_sweep_runs",
	Help: "Number of maintenance sweep runs",
}, []string{"job"})

var sweepErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wardend_sweep_errors",
	Help: "Number of maintenance sweep runs that failed",
}, []string{"job"})

var accountsScannedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wardend_accounts_scanned",
	Help: "Number of accounts scanned for behavioral anomalies",
})
