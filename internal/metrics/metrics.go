// Package metrics exposes Prometheus collectors for the jobsync pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestFilesTotal    *prometheus.CounterVec
	ingestJobsTotal     prometheus.Counter
	syncStepErrorsTotal *prometheus.CounterVec
	syncRecordsTotal    *prometheus.CounterVec
	skillsCreatedTotal  prometheus.Counter
	apiRequestsTotal    *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestFilesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsync_ingest_files_total",
				Help: "Total number of JSON dump files handled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestJobsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsync_ingest_jobs_total",
				Help: "Total number of job rows upserted into the relational store.",
			},
		)

		syncStepErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsync_sync_step_errors_total",
				Help: "Total number of abandoned sync steps, labeled by step.",
			},
			[]string{"step"},
		)

		syncRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsync_sync_records_total",
				Help: "Total number of external records written, labeled by table and op.",
			},
			[]string{"table", "op"},
		)

		skillsCreatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsync_skills_created_total",
				Help: "Total number of skill records created in the external tool.",
			},
		)

		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsync_api_requests_total",
				Help: "Total number of external API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFile increments the ingest file counter for the given outcome.
func ObserveFile(outcome string) {
	if ingestFilesTotal != nil {
		ingestFilesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveJobsUpserted adds to the ingested-jobs counter.
func ObserveJobsUpserted(n int) {
	if ingestJobsTotal != nil && n > 0 {
		ingestJobsTotal.Add(float64(n))
	}
}

// ObserveStepError increments the abandoned-step counter.
func ObserveStepError(step string) {
	if syncStepErrorsTotal != nil {
		syncStepErrorsTotal.WithLabelValues(step).Inc()
	}
}

// ObserveRecords adds to the external write counter.
func ObserveRecords(table, op string, n int) {
	if syncRecordsTotal != nil && n > 0 {
		syncRecordsTotal.WithLabelValues(table, op).Add(float64(n))
	}
}

// ObserveSkillsCreated adds to the created-skills counter.
func ObserveSkillsCreated(n int) {
	if skillsCreatedTotal != nil && n > 0 {
		skillsCreatedTotal.Add(float64(n))
	}
}

// ObserveAPIRequest increments the external request counter.
func ObserveAPIRequest(method, code string) {
	if apiRequestsTotal != nil {
		apiRequestsTotal.WithLabelValues(method, code).Inc()
	}
}
