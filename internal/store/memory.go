package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jslade/jobsync/internal/jobs"
)

// Memory provides an in-memory Store for development and testing.
type Memory struct {
	mu       sync.RWMutex
	jobs     map[string]jobs.FlatJob
	requests map[string]jobs.ScrapeRequest
	results  map[string]jobs.SearchResult
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[string]jobs.FlatJob),
		requests: make(map[string]jobs.ScrapeRequest),
		results:  make(map[string]jobs.SearchResult),
	}
}

// UpsertJobs overwrites scraped columns, preserving the sync mirror columns.
func (m *Memory) UpsertJobs(_ context.Context, rows []jobs.FlatJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range rows {
		if prev, ok := m.jobs[j.JobID]; ok {
			j.AirtableStatus = prev.AirtableStatus
			j.AirtableStatusChangeTime = prev.AirtableStatusChangeTime
		}
		m.jobs[j.JobID] = j
	}
	return nil
}

// UpsertScrapeRequest records a scrape request keyed by search id.
func (m *Memory) UpsertScrapeRequest(_ context.Context, req jobs.ScrapeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.SearchID] = req
	return nil
}

// SetScrapeRequestProcessed flips the processed flag for a known request.
func (m *Memory) SetScrapeRequestProcessed(_ context.Context, searchID string, processed bool, uploadedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[searchID]
	if !ok {
		return nil
	}
	req.Processed = processed
	req.UploadTimestamp = &uploadedAt
	m.requests[searchID] = req
	return nil
}

// UpsertSearchResults writes junction rows keyed by (search_id, job_id).
func (m *Memory) UpsertSearchResults(_ context.Context, results []jobs.SearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		m.results[r.SearchID+"\x00"+r.JobID] = r
	}
	return nil
}

// ExistingJobIDs reports which of the given job ids are present.
func (m *Memory) ExistingJobIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	existing := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := m.jobs[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// BackupStatuses mirrors statuses onto existing rows; unknown ids are dropped.
func (m *Memory) BackupStatuses(_ context.Context, updates []StatusBackup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		j, ok := m.jobs[u.JobID]
		if !ok {
			continue
		}
		status := u.Status
		changed := u.ChangedAt
		j.AirtableStatus = &status
		j.AirtableStatusChangeTime = &changed
		m.jobs[u.JobID] = j
	}
	return nil
}

// JobsByID fetches rows for the given ids; unknown ids are absent.
func (m *Memory) JobsByID(_ context.Context, ids []string) ([]jobs.FlatJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []jobs.FlatJob
	for _, id := range ids {
		if j, ok := m.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

// PushCandidates returns rows with a null or "Lead" mirrored status.
func (m *Memory) PushCandidates(_ context.Context) ([]jobs.FlatJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []jobs.FlatJob
	for _, j := range m.jobs {
		if j.AirtableStatus == nil || *j.AirtableStatus == "Lead" {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].JobID < out[k].JobID })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// Job returns one row by id for test assertions.
func (m *Memory) Job(id string) (jobs.FlatJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok
}

// JobCount reports the number of stored job rows.
func (m *Memory) JobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Request returns one scrape request by search id for test assertions.
func (m *Memory) Request(searchID string) (jobs.ScrapeRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[searchID]
	return r, ok
}

// ResultCount reports the number of stored search result rows.
func (m *Memory) ResultCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}
