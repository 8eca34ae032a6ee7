package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jslade/jobsync/internal/queue"
	"github.com/jslade/jobsync/internal/store"
)

const pageDump = `[
	{
		"uid": "12345",
		"title": "Go <b>backend</b> developer",
		"type": 2,
		"hourlyBudget": {"min": 30, "max": 60, "currencyCode": "EUR"},
		"proposalsTier": "ProposalsTier.BETWEEN_5_AND_10",
		"isApplied": false,
		"attrs": [{"prettyName": "Golang"}, {"prettyName": "PostgreSQL"}]
	},
	{
		"uid": "67890",
		"title": "First pass",
		"type": 1,
		"amount": {"amount": 500, "currencyCode": "USD"}
	},
	{
		"uid": "67890",
		"title": "Second pass wins",
		"type": 1,
		"amount": {"amount": 750, "currencyCode": "USD"}
	}
]`

func writeDump(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestPipelineProcessesPageDump(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "20240101123000000-pyquery-page1.json", pageDump)

	st := store.NewMemory()
	events := &queue.MemoryProvider{}
	p := NewPipeline(st, nil, events, zap.NewNop())
	p.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, p.Run(context.Background(), dir))

	assert.Equal(t, 2, st.JobCount())
	assert.Equal(t, 2, st.ResultCount())

	job, ok := st.Job("12345")
	require.True(t, ok)
	require.NotNil(t, job.Title)
	assert.Equal(t, "Go backend developer", *job.Title)
	require.NotNil(t, job.ProposalsTier)
	assert.Equal(t, "BETWEEN_5_AND_10", *job.ProposalsTier)
	assert.Equal(t, "EUR", job.Currency)
	assert.Equal(t, []string{"Golang", "PostgreSQL"}, job.Skills)

	// Duplicate uid within one file: the later record wins.
	dup, ok := st.Job("67890")
	require.True(t, ok)
	require.NotNil(t, dup.Title)
	assert.Equal(t, "Second pass wins", *dup.Title)
	require.NotNil(t, dup.FixedBudget)
	assert.Equal(t, 750.0, *dup.FixedBudget)

	req, ok := st.Request("20240101123000000")
	require.True(t, ok)
	assert.True(t, req.Processed)
	require.NotNil(t, req.UploadTimestamp)
	assert.Equal(t, 2024, req.UploadTimestamp.Year())
	assert.Equal(t, "pyquery", req.Query)
	assert.Equal(t, 1, req.Page)

	published := events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, "20240101123000000", published[0].SearchID)
	assert.Equal(t, 2, published[0].Jobs)
}

func TestPipelineSkipsUnparsableFilenames(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "notes.json", pageDump)
	writeDump(t, dir, "20240101123000000-go-page1.json", pageDump)

	st := store.NewMemory()
	p := NewPipeline(st, nil, nil, zap.NewNop())

	require.NoError(t, p.Run(context.Background(), dir))

	// The good file still lands; the unparsable one leaves no trace.
	assert.Equal(t, 2, st.JobCount())
	_, ok := st.Request("notes")
	assert.False(t, ok)
}

func TestPipelineLeavesEmptyDumpUnprocessed(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "20240101123000000-go-page1.json", `{"unexpected": true}`)

	st := store.NewMemory()
	p := NewPipeline(st, nil, nil, zap.NewNop())

	require.NoError(t, p.Run(context.Background(), dir))

	req, ok := st.Request("20240101123000000")
	require.True(t, ok)
	assert.False(t, req.Processed)
	assert.Equal(t, 0, st.JobCount())
}

func TestPipelineDropsRecordsWithoutJobID(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "20240101123000000-go-page1.json", `[{"title": "no uid"}, {"uid": "1"}]`)

	st := store.NewMemory()
	p := NewPipeline(st, nil, nil, zap.NewNop())

	require.NoError(t, p.Run(context.Background(), dir))

	assert.Equal(t, 1, st.JobCount())
	req, ok := st.Request("20240101123000000")
	require.True(t, ok)
	assert.True(t, req.Processed)
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "20240101123000000-go-page1.json", pageDump)

	st := store.NewMemory()
	p := NewPipeline(st, nil, nil, zap.NewNop())

	require.NoError(t, p.Run(context.Background(), dir))

	// Simulate the sync engine mirroring a status between runs.
	require.NoError(t, st.BackupStatuses(context.Background(), []store.StatusBackup{
		{JobID: "12345", Status: "Applied", ChangedAt: "2024-01-03T00:00:00.000Z"},
	}))

	require.NoError(t, p.Run(context.Background(), dir))

	assert.Equal(t, 2, st.JobCount())
	assert.Equal(t, 2, st.ResultCount())

	// Re-ingesting never clobbers the mirrored status columns.
	job, ok := st.Job("12345")
	require.True(t, ok)
	require.NotNil(t, job.AirtableStatus)
	assert.Equal(t, "Applied", *job.AirtableStatus)
}

func TestPipelineMissingDirectoryIsFatal(t *testing.T) {
	p := NewPipeline(store.NewMemory(), nil, nil, zap.NewNop())
	err := p.Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestPipelineEmptyDirectoryIsFatal(t *testing.T) {
	p := NewPipeline(store.NewMemory(), nil, nil, zap.NewNop())
	err := p.Run(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON files")
}
