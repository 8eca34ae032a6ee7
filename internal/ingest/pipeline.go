// Package ingest reads directories of per-page JSON dumps, normalizes the
// raw records and upserts them into the relational store, tracking
// per-file provenance through scrape_requests rows.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jslade/jobsync/internal/archive"
	"github.com/jslade/jobsync/internal/jobs"
	"github.com/jslade/jobsync/internal/metrics"
	"github.com/jslade/jobsync/internal/queue"
	"github.com/jslade/jobsync/internal/store"
)

// Pipeline ingests page dumps into the relational store.
type Pipeline struct {
	store   store.Store
	archive archive.Provider
	events  queue.Provider
	logger  *zap.Logger
	now     func() time.Time
}

// NewPipeline wires the pipeline's collaborators. Archive and events may be
// nil, in which case they default to no-ops.
func NewPipeline(st store.Store, arch archive.Provider, events queue.Provider, logger *zap.Logger) *Pipeline {
	if arch == nil {
		arch = &archive.NoOpProvider{}
	}
	if events == nil {
		events = &queue.NoOpProvider{}
	}
	return &Pipeline{
		store:   st,
		archive: arch,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Run processes every *.json file in the directory in lexicographic order,
// continuing past per-file failures. A missing directory or one without any
// JSON files aborts the whole run.
func (p *Pipeline) Run(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read input directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return fmt.Errorf("no JSON files found in %s", dir)
	}
	sort.Strings(names)

	for _, name := range names {
		p.processFile(ctx, dir, name)
	}
	return nil
}

// processFile handles one page dump. Failures are logged and leave the
// scrape request unprocessed so a later run can pick the file up again;
// they never abort the batch.
func (p *Pipeline) processFile(ctx context.Context, dir, name string) {
	log := p.logger.With(zap.String("file", name))
	log.Info("Processing page dump")

	meta, err := jobs.ParseSearchFilename(name)
	if err != nil {
		log.Error("Cannot extract search metadata, skipping file", zap.Error(err))
		metrics.ObserveFile("skipped")
		return
	}

	path := filepath.Join(dir, name)
	req := jobs.ScrapeRequest{
		SearchID:       meta.SearchID,
		QueryTimestamp: meta.QueryTimestamp,
		Query:          meta.Query,
		Page:           meta.Page,
		Filepath:       path,
		Processed:      false,
	}
	if err := p.store.UpsertScrapeRequest(ctx, req); err != nil {
		log.Error("Failed to record scrape request, skipping file", zap.Error(err))
		metrics.ObserveFile("failed")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("Failed to read page dump", zap.Error(err))
		metrics.ObserveFile("failed")
		return
	}

	records := recordList(data)
	if len(records) == 0 {
		log.Warn("No job records found, leaving scrape request unprocessed")
		if err := p.store.SetScrapeRequestProcessed(ctx, meta.SearchID, false, p.now()); err != nil {
			log.Error("Failed to update scrape request status", zap.Error(err))
		}
		metrics.ObserveFile("empty")
		return
	}

	flat := p.normalizeAll(records, log)
	if len(flat) == 0 {
		log.Warn("All records lacked a job id, leaving scrape request unprocessed")
		metrics.ObserveFile("empty")
		return
	}

	if err := p.store.UpsertJobs(ctx, flat); err != nil {
		log.Error("Failed to upsert jobs, leaving scrape request unprocessed", zap.Error(err))
		p.markUnprocessed(ctx, meta.SearchID, log)
		metrics.ObserveFile("failed")
		return
	}

	results := make([]jobs.SearchResult, 0, len(flat))
	for _, j := range flat {
		results = append(results, jobs.SearchResult{
			SearchID:      meta.SearchID,
			JobID:         j.JobID,
			ProposalsTier: j.ProposalsTier,
			IsApplied:     j.IsApplied,
		})
	}
	if err := p.store.UpsertSearchResults(ctx, results); err != nil {
		log.Error("Failed to upsert search results, leaving scrape request unprocessed", zap.Error(err))
		p.markUnprocessed(ctx, meta.SearchID, log)
		metrics.ObserveFile("failed")
		return
	}

	if err := p.store.SetScrapeRequestProcessed(ctx, meta.SearchID, true, p.now()); err != nil {
		log.Error("Failed to mark scrape request processed", zap.Error(err))
		metrics.ObserveFile("failed")
		return
	}

	p.archiveDump(ctx, name, data, log)
	if err := p.events.Publish(ctx, queue.ProcessedEvent{
		SearchID: meta.SearchID,
		Filepath: path,
		Jobs:     len(flat),
	}); err != nil {
		log.Warn("Failed to publish processed event", zap.Error(err))
	}

	metrics.ObserveFile("processed")
	metrics.ObserveJobsUpserted(len(flat))
	log.Info("Processed page dump", zap.Int("jobs", len(flat)))
}

// recordList accepts either a bare list of raw records or an object with a
// "jobs" key holding the list; any other shape yields zero records.
func recordList(data []byte) []gjson.Result {
	parsed := gjson.ParseBytes(data)
	if parsed.IsArray() {
		return parsed.Array()
	}
	if nested := parsed.Get("jobs"); nested.IsArray() {
		return nested.Array()
	}
	return nil
}

// normalizeAll flattens the raw records and deduplicates them by job id,
// keeping the last occurrence within the file. Output is sorted by job id.
func (p *Pipeline) normalizeAll(records []gjson.Result, log *zap.Logger) []jobs.FlatJob {
	byID := make(map[string]jobs.FlatJob, len(records))
	for _, rec := range records {
		flat := jobs.Normalize(rec)
		if flat.JobID == "" {
			log.Warn("Dropping record without job id")
			continue
		}
		byID[flat.JobID] = flat
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]jobs.FlatJob, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

func (p *Pipeline) markUnprocessed(ctx context.Context, searchID string, log *zap.Logger) {
	if err := p.store.SetScrapeRequestProcessed(ctx, searchID, false, p.now()); err != nil {
		log.Error("Failed to update scrape request status", zap.Error(err))
	}
}

func (p *Pipeline) archiveDump(ctx context.Context, name string, data []byte, log *zap.Logger) {
	key := p.now().UTC().Format("2006-01-02") + "/" + name
	uri, err := p.archive.Put(ctx, key, data)
	if err != nil {
		log.Warn("Failed to archive page dump", zap.Error(err))
		return
	}
	if uri != "" {
		log.Debug("Archived page dump", zap.String("uri", uri))
	}
}
