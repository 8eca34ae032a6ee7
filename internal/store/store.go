// Package store defines the relational store interface the pipeline and
// sync engine consume, decoupling them from a specific backend so tests can
// substitute fakes without process-wide environment mutation.
package store

import (
	"context"
	"time"

	"github.com/jslade/jobsync/internal/jobs"
)

// StatusBackup mirrors one externally-edited status back into the store.
type StatusBackup struct {
	JobID     string
	Status    string
	ChangedAt string
}

// Store is the keyed table store backing the pipeline. Upserts are
// last-write-wins on the declared conflict key.
type Store interface {
	// UpsertJobs writes flat job rows keyed by job_id. The sync mirror
	// columns (airtable_status and its change time) are never touched.
	UpsertJobs(ctx context.Context, rows []jobs.FlatJob) error

	// UpsertScrapeRequest records provenance for one page file, keyed by
	// search_id.
	UpsertScrapeRequest(ctx context.Context, req jobs.ScrapeRequest) error

	// SetScrapeRequestProcessed flips the processed flag and stamps the
	// upload time for a scrape request.
	SetScrapeRequestProcessed(ctx context.Context, searchID string, processed bool, uploadedAt time.Time) error

	// UpsertSearchResults writes junction rows keyed by (search_id, job_id).
	UpsertSearchResults(ctx context.Context, results []jobs.SearchResult) error

	// ExistingJobIDs reports which of the given job ids are present.
	ExistingJobIDs(ctx context.Context, ids []string) (map[string]struct{}, error)

	// BackupStatuses updates the sync mirror columns for existing jobs.
	BackupStatuses(ctx context.Context, updates []StatusBackup) error

	// JobsByID fetches full rows for the given job ids; unknown ids are
	// silently absent from the result.
	JobsByID(ctx context.Context, ids []string) ([]jobs.FlatJob, error)

	// PushCandidates returns rows whose mirrored status is null or "Lead",
	// i.e. jobs never pushed externally or eligible for re-push.
	PushCandidates(ctx context.Context) ([]jobs.FlatJob, error)

	// Close releases backend resources.
	Close()
}
