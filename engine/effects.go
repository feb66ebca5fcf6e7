package engine

import (
	"github.com/inkhaven-social/warden/flagstore"
)

var (
	// QuotaAutoReportDay caps how many evaluations may file auto-reports per
	// day, across all subjects and reasons combined (circuit breaker).
	QuotaAutoReportDay = 50
)

type CounterRef struct {
	Name string
	Val  string
}

type CounterDistinctRef struct {
	Name   string
	Bucket string
	Val    string
}

// ReportRef is an auto-report requested during evaluation, before dedupe and
// quota checks run.
type ReportRef struct {
	Reason  string
	Comment string
}

// Effects is the mutable container for the side effects of one evaluation.
// Effects accumulate while the decision is computed and are persisted in bulk
// only once it is final, so a rejected submission never leaves partial state
// behind.
type Effects struct {
	// Counters to increment once evaluation completes. Collected during the
	// decision and persisted in bulk at the end.
	CounterIncrements []CounterRef
	// Same, for "distinct value" counters.
	CounterDistinctIncrements []CounterDistinctRef
	// Content flags to append to the subject's flag history.
	ContentFlags []flagstore.ContentFlag
	// Auto-reports to file against the subject.
	Reports []ReportRef
}

// Increment enqueues a counter bump for all time periods.
func (e *Effects) Increment(name, val string) {
	e.CounterIncrements = append(e.CounterIncrements, CounterRef{Name: name, Val: val})
}

// IncrementDistinct enqueues a distinct-value counter bump.
func (e *Effects) IncrementDistinct(name, bucket, val string) {
	e.CounterDistinctIncrements = append(e.CounterDistinctIncrements, CounterDistinctRef{Name: name, Bucket: bucket, Val: val})
}

// AddContentFlag enqueues a flag to be appended to the subject's history.
func (e *Effects) AddContentFlag(flag flagstore.ContentFlag) {
	e.ContentFlags = append(e.ContentFlags, flag)
}

// ReportContent enqueues an auto-report to be filed after the decision.
func (e *Effects) ReportContent(reason, comment string) {
	if comment == "" {
		comment = "(warden)"
	} else {
		comment = "warden: " + comment
	}
	e.Reports = append(e.Reports, ReportRef{Reason: reason, Comment: comment})
}
