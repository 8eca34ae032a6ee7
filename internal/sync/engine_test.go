package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jslade/jobsync/internal/airtable"
	"github.com/jslade/jobsync/internal/jobs"
	"github.com/jslade/jobsync/internal/store"
)

// fakeTable is an in-memory stand-in for one Airtable table. The only
// formula the engine issues filters on terminal statuses, so that is the
// only one the fake interprets.
type fakeTable struct {
	mu      sync.Mutex
	name    string
	records []airtable.Record
	nextID  int
	listErr error
}

func (t *fakeTable) List(_ context.Context, formula string) ([]airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listErr != nil {
		return nil, t.listErr
	}
	var out []airtable.Record
	for _, rec := range t.records {
		if formula != "" {
			status, _ := rec.Fields["Status"].(string)
			if status != "Discarded" && status != "Lead" {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *fakeTable) BatchCreate(_ context.Context, fields []map[string]any) ([]airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var created []airtable.Record
	for _, f := range fields {
		t.nextID++
		rec := airtable.Record{
			ID:     fmt.Sprintf("rec%s%03d", t.name, t.nextID),
			Fields: f,
		}
		t.records = append(t.records, rec)
		created = append(created, rec)
	}
	return created, nil
}

func (t *fakeTable) BatchUpdate(_ context.Context, updates []airtable.Update) ([]airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var updated []airtable.Record
	for _, u := range updates {
		for i := range t.records {
			if t.records[i].ID != u.ID {
				continue
			}
			for k, v := range u.Fields {
				t.records[i].Fields[k] = v
			}
			updated = append(updated, t.records[i])
		}
	}
	return updated, nil
}

func (t *fakeTable) BatchDelete(_ context.Context, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := t.records[:0]
	for _, rec := range t.records {
		if _, ok := drop[rec.ID]; !ok {
			kept = append(kept, rec)
		}
	}
	t.records = kept
	return nil
}

func (t *fakeTable) byJobID(jobID string) (airtable.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range t.records {
		if rec.StringField("job_id") == jobID {
			return rec, true
		}
	}
	return airtable.Record{}, false
}

func (t *fakeTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func strPtr(s string) *string { return &s }

func seedJob(t *testing.T, st *store.Memory, id, title string, skills ...string) {
	t.Helper()
	require.NoError(t, st.UpsertJobs(context.Background(), []jobs.FlatJob{{
		JobID:    id,
		Title:    strPtr(title),
		Skills:   skills,
		Currency: "USD",
	}}))
}

func newTestEngine(st *store.Memory, jobsTable, skillsTable *fakeTable) *Engine {
	schema := filepath.Join("testdata", "airtable_schema.json")
	return NewEngine(st, jobsTable, skillsTable, schema, zap.NewNop())
}

func TestEnginePushesNewJobs(t *testing.T) {
	st := store.NewMemory()
	seedJob(t, st, "1", "Go developer", "Golang", "Docker")
	seedJob(t, st, "2", "Data engineer")

	jobsTable := &fakeTable{name: "Job"}
	skillsTable := &fakeTable{name: "Skill"}
	e := newTestEngine(st, jobsTable, skillsTable)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 2, jobsTable.count())
	rec, ok := jobsTable.byJobID("1")
	require.True(t, ok)
	assert.Equal(t, "Go developer", rec.Fields["Title"])

	// Skill names became linked record ids in the created skills table.
	assert.Equal(t, 2, skillsTable.count())
	linked, ok := rec.Fields["Skills"].([]string)
	require.True(t, ok)
	require.Len(t, linked, 2)
	for _, id := range linked {
		assert.True(t, strings.HasPrefix(id, "recSkill"))
	}

	// Fields without a source value are absent rather than null.
	_, hasApplied := rec.Fields["Applied"]
	assert.False(t, hasApplied)
}

func TestEngineRerunCreatesNoDuplicates(t *testing.T) {
	st := store.NewMemory()
	seedJob(t, st, "1", "Go developer", "Golang")

	jobsTable := &fakeTable{name: "Job"}
	skillsTable := &fakeTable{name: "Skill"}

	// The store still reports the job as a push candidate on the second
	// run because nobody set a status externally; the engine must notice
	// it is already present and skip it.
	e := newTestEngine(st, jobsTable, skillsTable)
	require.NoError(t, e.Run(context.Background()))
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 1, jobsTable.count())
	assert.Equal(t, 1, skillsTable.count())
}

func TestEngineBacksUpStatuses(t *testing.T) {
	st := store.NewMemory()
	seedJob(t, st, "1", "Go developer")

	jobsTable := &fakeTable{name: "Job", records: []airtable.Record{
		{ID: "recJob001", Fields: map[string]any{
			"job_id":        "1",
			"Status":        "Applied",
			"Last Modified": "2024-01-05T10:00:00.000Z",
		}},
		// Unknown job id: must not invent a store row.
		{ID: "recJob002", Fields: map[string]any{
			"job_id":        "999",
			"Status":        "Applied",
			"Last Modified": "2024-01-05T10:00:00.000Z",
		}},
	}}
	e := newTestEngine(st, jobsTable, &fakeTable{name: "Skill"})

	require.NoError(t, e.Run(context.Background()))

	job, ok := st.Job("1")
	require.True(t, ok)
	require.NotNil(t, job.AirtableStatus)
	assert.Equal(t, "Applied", *job.AirtableStatus)
	require.NotNil(t, job.AirtableStatusChangeTime)
	assert.Equal(t, "2024-01-05T10:00:00.000Z", *job.AirtableStatusChangeTime)

	_, ok = st.Job("999")
	assert.False(t, ok)
}

func TestEngineDeletesTerminalRecords(t *testing.T) {
	st := store.NewMemory()
	jobsTable := &fakeTable{name: "Job", records: []airtable.Record{
		{ID: "recJob001", Fields: map[string]any{"job_id": "1", "Status": "Discarded", "Last Modified": "2024-01-05T10:00:00.000Z"}},
		{ID: "recJob002", Fields: map[string]any{"job_id": "2", "Status": "Applied", "Last Modified": "2024-01-05T10:00:00.000Z"}},
	}}
	seedJob(t, st, "2", "Survivor")
	e := newTestEngine(st, jobsTable, &fakeTable{name: "Skill"})

	require.NoError(t, e.Run(context.Background()))

	_, discarded := jobsTable.byJobID("1")
	assert.False(t, discarded)
	_, applied := jobsTable.byJobID("2")
	assert.True(t, applied)
}

func TestEngineDeletesOrphanedSkills(t *testing.T) {
	st := store.NewMemory()
	skillsTable := &fakeTable{name: "Skill", records: []airtable.Record{
		{ID: "recSkill001", Fields: map[string]any{"Name": "Orphan"}},
		{ID: "recSkill002", Fields: map[string]any{"Name": "AlsoOrphan", "jobs": []any{}}},
		{ID: "recSkill003", Fields: map[string]any{"Name": "Linked", "jobs": []any{"recJob001"}}},
	}}
	e := newTestEngine(st, &fakeTable{name: "Job"}, skillsTable)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 1, skillsTable.count())
	skillsTable.mu.Lock()
	defer skillsTable.mu.Unlock()
	assert.Equal(t, "Linked", skillsTable.records[0].StringField("Name"))
}

func TestEngineRefreshesUpdatableColumnsOnly(t *testing.T) {
	st := store.NewMemory()
	tier := "BETWEEN_5_AND_10"
	applied := true
	require.NoError(t, st.UpsertJobs(context.Background(), []jobs.FlatJob{{
		JobID:         "1",
		Title:         strPtr("New title from scrape"),
		ProposalsTier: &tier,
		IsApplied:     &applied,
		Currency:      "USD",
	}}))
	// Mirrored status keeps the job out of the push candidate set.
	require.NoError(t, st.BackupStatuses(context.Background(), []store.StatusBackup{
		{JobID: "1", Status: "Applied", ChangedAt: "2024-01-05T10:00:00.000Z"},
	}))

	jobsTable := &fakeTable{name: "Job", records: []airtable.Record{
		{ID: "recJob001", Fields: map[string]any{
			"job_id":    "1",
			"Title":     "Manually edited title",
			"Proposals": "LESS_THAN_5",
		}},
	}}
	e := newTestEngine(st, jobsTable, &fakeTable{name: "Skill"})

	require.NoError(t, e.Run(context.Background()))

	rec, ok := jobsTable.byJobID("1")
	require.True(t, ok)
	assert.Equal(t, "BETWEEN_5_AND_10", rec.Fields["Proposals"])
	assert.Equal(t, true, rec.Fields["Applied"])
	// Manually curated fields are never overwritten by a refresh.
	assert.Equal(t, "Manually edited title", rec.Fields["Title"])
	assert.Equal(t, 1, jobsTable.count())
}

func TestEngineMissingSchemaIsFatal(t *testing.T) {
	e := NewEngine(store.NewMemory(), &fakeTable{name: "Job"}, &fakeTable{name: "Skill"}, filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	require.Error(t, e.Run(context.Background()))
}

func TestEngineUnreadableJobsTableIsFatal(t *testing.T) {
	st := store.NewMemory()
	seedJob(t, st, "1", "Go developer")
	jobsTable := &fakeTable{name: "Job", listErr: fmt.Errorf("boom")}
	e := newTestEngine(st, jobsTable, &fakeTable{name: "Skill"})

	// The push step cannot dedup without the external id map, so the run
	// must fail rather than risk duplicate records.
	require.Error(t, e.Run(context.Background()))
}
