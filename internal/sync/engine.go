// Package sync reconciles the relational job store with an Airtable base in
// both directions: statuses curated externally are mirrored back into the
// store, terminal records are swept, existing records receive refreshed
// scraped data, and jobs never pushed before are created.
package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jslade/jobsync/internal/airtable"
	"github.com/jslade/jobsync/internal/jobs"
	"github.com/jslade/jobsync/internal/metrics"
	"github.com/jslade/jobsync/internal/store"
)

const (
	// statusField is the externally curated status column on the jobs table.
	statusField = "Status"

	// statusModifiedField tracks when the status last changed.
	statusModifiedField = "Last Modified"

	// jobIDField carries the relational natural key on external records.
	jobIDField = "job_id"

	// skillJobsLinkField is the reverse link on the skills table; a skill
	// with no linked jobs is an orphan.
	skillJobsLinkField = "jobs"

	// terminalFormula selects records whose status marks them for removal.
	terminalFormula = "OR({Status} = 'Discarded', {Status} = 'Lead')"
)

// updatableColumns are the columns safe to refresh on existing external
// records. Everything else may carry manual edits and is left alone.
var updatableColumns = []string{"proposals_tier", "is_applied", "skills"}

// Table is the subset of the Airtable table API the engine drives.
type Table interface {
	List(ctx context.Context, formula string) ([]airtable.Record, error)
	BatchCreate(ctx context.Context, fields []map[string]any) ([]airtable.Record, error)
	BatchUpdate(ctx context.Context, updates []airtable.Update) ([]airtable.Record, error)
	BatchDelete(ctx context.Context, ids []string) error
}

// Engine runs the bidirectional sync. Step failures are logged and counted;
// only a missing schema file or an unreadable external jobs table aborts a
// run, because the push step cannot stay idempotent without the full
// external id map.
type Engine struct {
	store      store.Store
	jobs       Table
	skills     Table
	schemaPath string
	prioritize func([]jobs.FlatJob) []jobs.FlatJob
	logger     *zap.Logger
}

// SetPrioritize replaces the candidate ordering hook. The default keeps
// candidates in store order.
func (e *Engine) SetPrioritize(fn func([]jobs.FlatJob) []jobs.FlatJob) {
	if fn != nil {
		e.prioritize = fn
	}
}

// NewEngine wires the engine's collaborators.
func NewEngine(st store.Store, jobsTable, skillsTable Table, schemaPath string, logger *zap.Logger) *Engine {
	return &Engine{
		store:      st,
		jobs:       jobsTable,
		skills:     skillsTable,
		schemaPath: schemaPath,
		prioritize: func(candidates []jobs.FlatJob) []jobs.FlatJob { return candidates },
		logger:     logger,
	}
}

// Run executes one full sync pass.
func (e *Engine) Run(ctx context.Context) error {
	log := e.logger.With(zap.String("run_id", uuid.NewString()))
	log.Info("Starting sync run")

	e.backupStatuses(ctx, log)
	e.deleteTerminalRecords(ctx, log)
	e.deleteOrphanedSkills(ctx, log)

	mapping, err := LoadMapping(e.schemaPath)
	if err != nil {
		log.Error("Cannot load schema mapping", zap.Error(err))
		return err
	}

	skills, err := loadSkillSet(ctx, e.skills)
	if err != nil {
		log.Error("Cannot load skill set", zap.Error(err))
		return err
	}

	externalIDs, err := e.refreshExisting(ctx, mapping, skills, log)
	if err != nil {
		return err
	}

	if err := e.pushNew(ctx, externalIDs, mapping, skills, log); err != nil {
		return err
	}

	log.Info("Sync run complete")
	return nil
}

// backupStatuses mirrors externally curated statuses into the store. Only
// records carrying a status, a change time and a job id known to the store
// are written back.
func (e *Engine) backupStatuses(ctx context.Context, log *zap.Logger) {
	records, err := e.jobs.List(ctx, "")
	if err != nil {
		log.Error("Failed to list external records for status backup", zap.Error(err))
		metrics.ObserveStepError("backup")
		return
	}

	var updates []store.StatusBackup
	for _, rec := range records {
		jobID := rec.StringField(jobIDField)
		status := rec.StringField(statusField)
		changedAt := rec.StringField(statusModifiedField)
		if jobID == "" || status == "" || changedAt == "" {
			continue
		}
		updates = append(updates, store.StatusBackup{
			JobID:     jobID,
			Status:    status,
			ChangedAt: changedAt,
		})
	}
	if len(updates) == 0 {
		log.Info("No status updates to back up")
		return
	}

	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.JobID)
	}
	existing, err := e.store.ExistingJobIDs(ctx, ids)
	if err != nil {
		log.Error("Failed to check existing job ids", zap.Error(err))
		metrics.ObserveStepError("backup")
		return
	}

	known := updates[:0]
	for _, u := range updates {
		if _, ok := existing[u.JobID]; ok {
			known = append(known, u)
		}
	}
	if len(known) == 0 {
		log.Info("No backed-up statuses match stored jobs")
		return
	}

	if err := e.store.BackupStatuses(ctx, known); err != nil {
		log.Error("Failed to back up statuses", zap.Error(err))
		metrics.ObserveStepError("backup")
		return
	}
	metrics.ObserveRecords("jobs", "backup", len(known))
	log.Info("Backed up status updates", zap.Int("count", len(known)))
}

// deleteTerminalRecords sweeps records whose status marks them done. Their
// mirrored status survives in the store, so re-pushing is suppressed for
// anything but a Lead.
func (e *Engine) deleteTerminalRecords(ctx context.Context, log *zap.Logger) {
	records, err := e.jobs.List(ctx, terminalFormula)
	if err != nil {
		log.Error("Failed to list terminal records", zap.Error(err))
		metrics.ObserveStepError("delete")
		return
	}
	if len(records) == 0 {
		log.Info("No terminal records to delete")
		return
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	if err := e.jobs.BatchDelete(ctx, ids); err != nil {
		log.Error("Failed to delete terminal records", zap.Error(err))
		metrics.ObserveStepError("delete")
		return
	}
	metrics.ObserveRecords("jobs", "delete", len(ids))
	log.Info("Deleted terminal records", zap.Int("count", len(ids)))
}

// deleteOrphanedSkills removes skills no longer linked to any job.
func (e *Engine) deleteOrphanedSkills(ctx context.Context, log *zap.Logger) {
	records, err := e.skills.List(ctx, "")
	if err != nil {
		log.Error("Failed to list skills", zap.Error(err))
		metrics.ObserveStepError("orphans")
		return
	}

	var orphans []string
	for _, rec := range records {
		if linked, ok := rec.Fields[skillJobsLinkField].([]any); !ok || len(linked) == 0 {
			orphans = append(orphans, rec.ID)
		}
	}
	if len(orphans) == 0 {
		log.Info("No orphaned skills to delete")
		return
	}

	if err := e.skills.BatchDelete(ctx, orphans); err != nil {
		log.Error("Failed to delete orphaned skills", zap.Error(err))
		metrics.ObserveStepError("orphans")
		return
	}
	metrics.ObserveRecords("skills", "delete", len(orphans))
	log.Info("Deleted orphaned skills", zap.Int("count", len(orphans)))
}

// refreshExisting pushes the updatable columns of the store's rows onto the
// matching external records, and returns the job-id-to-record-id map of
// everything currently external. The map doubles as the dedup filter for the
// push step, so a listing failure here is fatal to the run.
func (e *Engine) refreshExisting(ctx context.Context, mapping Mapping, skills *skillSet, log *zap.Logger) (map[string]string, error) {
	records, err := e.jobs.List(ctx, "")
	if err != nil {
		metrics.ObserveStepError("refresh")
		return nil, fmt.Errorf("list external records: %w", err)
	}

	externalIDs := make(map[string]string, len(records))
	for _, rec := range records {
		if jobID := rec.StringField(jobIDField); jobID != "" {
			externalIDs[jobID] = rec.ID
		}
	}
	if len(externalIDs) == 0 {
		log.Info("No external records with a job id to refresh")
		return externalIDs, nil
	}

	ids := make([]string, 0, len(externalIDs))
	for id := range externalIDs {
		ids = append(ids, id)
	}
	rows, err := e.store.JobsByID(ctx, ids)
	if err != nil {
		log.Error("Failed to fetch stored jobs for refresh", zap.Error(err))
		metrics.ObserveStepError("refresh")
		return externalIDs, nil
	}

	updateMapping := mapping.Restrict(updatableColumns)
	if err := skills.ensure(ctx, collectSkillNames(rows)); err != nil {
		log.Error("Failed to create missing skills", zap.Error(err))
		metrics.ObserveStepError("refresh")
	}

	var updates []airtable.Update
	for _, row := range rows {
		recordID, ok := externalIDs[row.JobID]
		if !ok {
			continue
		}
		updates = append(updates, airtable.Update{
			ID:     recordID,
			Fields: formatFields(row, updateMapping, skills),
		})
	}
	if len(updates) == 0 {
		log.Info("No external records to refresh")
		return externalIDs, nil
	}

	if _, err := e.jobs.BatchUpdate(ctx, updates); err != nil {
		log.Error("Failed to refresh external records", zap.Error(err))
		metrics.ObserveStepError("refresh")
		return externalIDs, nil
	}
	metrics.ObserveRecords("jobs", "update", len(updates))
	log.Info("Refreshed external records", zap.Int("count", len(updates)))
	return externalIDs, nil
}

// pushNew creates external records for stored jobs that were never pushed
// or whose mirrored status is Lead, skipping anything already external so
// repeated runs never duplicate records.
func (e *Engine) pushNew(ctx context.Context, externalIDs map[string]string, mapping Mapping, skills *skillSet, log *zap.Logger) error {
	candidates, err := e.store.PushCandidates(ctx)
	if err != nil {
		log.Error("Failed to fetch push candidates", zap.Error(err))
		metrics.ObserveStepError("push")
		return nil
	}

	fresh := candidates[:0]
	for _, row := range candidates {
		if _, ok := externalIDs[row.JobID]; ok {
			continue
		}
		fresh = append(fresh, row)
	}
	if skipped := len(candidates) - len(fresh); skipped > 0 {
		log.Info("Skipping candidates already present externally", zap.Int("count", skipped))
	}
	if len(fresh) == 0 {
		log.Info("No new jobs to push")
		return nil
	}

	fresh = e.prioritize(fresh)

	if err := skills.ensure(ctx, collectSkillNames(fresh)); err != nil {
		log.Error("Failed to create missing skills", zap.Error(err))
		metrics.ObserveStepError("push")
	}

	fields := make([]map[string]any, 0, len(fresh))
	for _, row := range fresh {
		fields = append(fields, formatFields(row, mapping, skills))
	}
	created, err := e.jobs.BatchCreate(ctx, fields)
	metrics.ObserveRecords("jobs", "create", len(created))
	if err != nil {
		log.Error("Failed to push new records", zap.Error(err))
		metrics.ObserveStepError("push")
		return nil
	}
	log.Info("Pushed new records", zap.Int("count", len(created)))
	return nil
}

// formatFields translates one stored row into external field names. Null
// columns are omitted and skill names become linked record ids.
func formatFields(row jobs.FlatJob, mapping Mapping, skills *skillSet) map[string]any {
	values := row.Row()
	fields := make(map[string]any, len(mapping))
	for col, name := range mapping {
		if col == "skills" {
			if ids := skills.ids(row.Skills); len(ids) > 0 {
				fields[name] = ids
			}
			continue
		}
		if v, ok := values[col]; ok {
			fields[name] = v
		}
	}
	return fields
}

func collectSkillNames(rows []jobs.FlatJob) []string {
	var names []string
	for _, row := range rows {
		names = append(names, row.Skills...)
	}
	return names
}
