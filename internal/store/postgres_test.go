package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jslade/jobsync/internal/jobs"
)

func TestUpsertScrapeRequest(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	req := jobs.ScrapeRequest{
		SearchID:       "20240101123000000",
		QueryTimestamp: ts,
		Query:          "test_query",
		Page:           1,
		Filepath:       "/data/20240101123000000-test_query-page1.json",
		Processed:      false,
	}

	mock.ExpectExec("INSERT INTO scrape_requests").
		WithArgs(req.SearchID, req.QueryTimestamp, req.Query, req.Page, req.Filepath, req.Processed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.UpsertScrapeRequest(context.Background(), req))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetScrapeRequestProcessed(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	uploaded := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("UPDATE scrape_requests").
		WithArgs("20240101123000000", true, uploaded).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.SetScrapeRequestProcessed(context.Background(), "20240101123000000", true, uploaded))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJobsBindsAllColumns(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	hourly := "hourly"
	minRate := 15.0
	maxRate := 30.0
	job := jobs.FlatJob{
		JobID:           "12345",
		JobType:         &hourly,
		HourlyBudgetMin: &minRate,
		HourlyBudgetMax: &maxRate,
		Currency:        "USD",
		Skills:          []string{"Go", "PostgreSQL"},
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(
			"12345", (*string)(nil), (*string)(nil), (*string)(nil), []string{"Go", "PostgreSQL"},
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*float64)(nil),
			&hourly, (*string)(nil), (*string)(nil), (*string)(nil),
			(*float64)(nil), (*float64)(nil), &minRate, &maxRate, "USD",
			(*string)(nil), (*float64)(nil), (*bool)(nil), (*int)(nil), (*float64)(nil),
			(*bool)(nil), (*string)(nil), (*bool)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.UpsertJobs(context.Background(), []jobs.FlatJob{job}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJobsRejectsMissingID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	err = st.UpsertJobs(context.Background(), []jobs.FlatJob{{Currency: "USD"}})
	require.Error(t, err)
}

func TestExistingJobIDs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	ids := []string{"1", "2", "3"}
	mock.ExpectQuery("SELECT job_id FROM jobs").
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"job_id"}).AddRow("1").AddRow("3"))

	existing, err := st.ExistingJobIDs(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, existing, 2)
	_, ok := existing["1"]
	require.True(t, ok)
	_, ok = existing["2"]
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupStatuses(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewPostgresWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE jobs SET airtable_status").
		WithArgs("12345", "Applied", "2024-02-01T10:00:00.000Z").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = st.BackupStatuses(context.Background(), []StatusBackup{
		{JobID: "12345", Status: "Applied", ChangedAt: "2024-02-01T10:00:00.000Z"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
