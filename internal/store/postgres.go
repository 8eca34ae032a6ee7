package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jslade/jobsync/internal/jobs"
)

// pgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

// Postgres implements Store on a Postgres-compatible database.
type Postgres struct {
	pool pgxPool
}

// NewPostgres connects a pool and verifies the connection.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (primarily
// for testing).
func NewPostgresWithPool(pool pgxPool) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

const upsertJobSQL = `
INSERT INTO jobs (
	job_id, url, title, description, skills,
	created_on, published_on, renewed_on, duration_label, connect_price,
	job_type, engagement, proposals_tier, tier_text,
	fixed_budget, weekly_budget, hourly_budget_min, hourly_budget_max, currency,
	client_country, client_total_spent, client_payment_verified,
	client_total_reviews, client_avg_feedback,
	is_sts_vector_search_result, relevance_encoded, is_applied
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
)
ON CONFLICT (job_id) DO UPDATE SET
	url = EXCLUDED.url,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	skills = EXCLUDED.skills,
	created_on = EXCLUDED.created_on,
	published_on = EXCLUDED.published_on,
	renewed_on = EXCLUDED.renewed_on,
	duration_label = EXCLUDED.duration_label,
	connect_price = EXCLUDED.connect_price,
	job_type = EXCLUDED.job_type,
	engagement = EXCLUDED.engagement,
	proposals_tier = EXCLUDED.proposals_tier,
	tier_text = EXCLUDED.tier_text,
	fixed_budget = EXCLUDED.fixed_budget,
	weekly_budget = EXCLUDED.weekly_budget,
	hourly_budget_min = EXCLUDED.hourly_budget_min,
	hourly_budget_max = EXCLUDED.hourly_budget_max,
	currency = EXCLUDED.currency,
	client_country = EXCLUDED.client_country,
	client_total_spent = EXCLUDED.client_total_spent,
	client_payment_verified = EXCLUDED.client_payment_verified,
	client_total_reviews = EXCLUDED.client_total_reviews,
	client_avg_feedback = EXCLUDED.client_avg_feedback,
	is_sts_vector_search_result = EXCLUDED.is_sts_vector_search_result,
	relevance_encoded = EXCLUDED.relevance_encoded,
	is_applied = EXCLUDED.is_applied`

// UpsertJobs writes each row with full-overwrite-on-conflict semantics,
// deliberately leaving the airtable mirror columns alone.
func (p *Postgres) UpsertJobs(ctx context.Context, rows []jobs.FlatJob) error {
	for _, j := range rows {
		if j.JobID == "" {
			return fmt.Errorf("job row without job_id")
		}
		skills := j.Skills
		if skills == nil {
			skills = []string{}
		}
		_, err := p.pool.Exec(ctx, upsertJobSQL,
			j.JobID, j.URL, j.Title, j.Description, skills,
			j.CreatedOn, j.PublishedOn, j.RenewedOn, j.DurationLabel, j.ConnectPrice,
			j.JobType, j.Engagement, j.ProposalsTier, j.TierText,
			j.FixedBudget, j.WeeklyBudget, j.HourlyBudgetMin, j.HourlyBudgetMax, j.Currency,
			j.ClientCountry, j.ClientTotalSpent, j.ClientPaymentVerified,
			j.ClientTotalReviews, j.ClientAvgFeedback,
			j.IsSTSVectorSearchResult, j.RelevanceEncoded, j.IsApplied,
		)
		if err != nil {
			return fmt.Errorf("upsert job %s: %w", j.JobID, err)
		}
	}
	return nil
}

// UpsertScrapeRequest records provenance for one page file.
func (p *Postgres) UpsertScrapeRequest(ctx context.Context, req jobs.ScrapeRequest) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO scrape_requests (search_id, query_timestamp, query, page, filepath, processed)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (search_id) DO UPDATE SET
	query_timestamp = EXCLUDED.query_timestamp,
	query = EXCLUDED.query,
	page = EXCLUDED.page,
	filepath = EXCLUDED.filepath,
	processed = EXCLUDED.processed`,
		req.SearchID, req.QueryTimestamp, req.Query, req.Page, req.Filepath, req.Processed,
	)
	if err != nil {
		return fmt.Errorf("upsert scrape request %s: %w", req.SearchID, err)
	}
	return nil
}

// SetScrapeRequestProcessed flips the processed flag for a scrape request.
func (p *Postgres) SetScrapeRequestProcessed(ctx context.Context, searchID string, processed bool, uploadedAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
UPDATE scrape_requests SET processed = $2, upload_timestamp = $3 WHERE search_id = $1`,
		searchID, processed, uploadedAt,
	)
	if err != nil {
		return fmt.Errorf("update scrape request %s: %w", searchID, err)
	}
	return nil
}

// UpsertSearchResults writes junction rows for one scrape request.
func (p *Postgres) UpsertSearchResults(ctx context.Context, results []jobs.SearchResult) error {
	for _, r := range results {
		_, err := p.pool.Exec(ctx, `
INSERT INTO search_results (search_id, job_id, proposals_tier, is_applied)
VALUES ($1, $2, $3, $4)
ON CONFLICT (search_id, job_id) DO UPDATE SET
	proposals_tier = EXCLUDED.proposals_tier,
	is_applied = EXCLUDED.is_applied`,
			r.SearchID, r.JobID, r.ProposalsTier, r.IsApplied,
		)
		if err != nil {
			return fmt.Errorf("upsert search result (%s, %s): %w", r.SearchID, r.JobID, err)
		}
	}
	return nil
}

// ExistingJobIDs reports which of the given job ids are present.
func (p *Postgres) ExistingJobIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT job_id FROM jobs WHERE job_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select existing job ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job ids: %w", err)
	}
	return existing, nil
}

// BackupStatuses mirrors externally-edited statuses onto existing rows.
func (p *Postgres) BackupStatuses(ctx context.Context, updates []StatusBackup) error {
	for _, u := range updates {
		_, err := p.pool.Exec(ctx, `
UPDATE jobs SET airtable_status = $2, airtable_status_change_time = $3 WHERE job_id = $1`,
			u.JobID, u.Status, u.ChangedAt,
		)
		if err != nil {
			return fmt.Errorf("backup status for %s: %w", u.JobID, err)
		}
	}
	return nil
}

const selectJobColumns = `
SELECT
	job_id, url, title, description, COALESCE(skills, '{}'),
	created_on, published_on, renewed_on, duration_label, connect_price,
	job_type, engagement, proposals_tier, tier_text,
	fixed_budget, weekly_budget, hourly_budget_min, hourly_budget_max, currency,
	client_country, client_total_spent, client_payment_verified,
	client_total_reviews, client_avg_feedback,
	is_sts_vector_search_result, relevance_encoded, is_applied,
	airtable_status, airtable_status_change_time
FROM jobs`

// JobsByID fetches full rows for the given job ids.
func (p *Postgres) JobsByID(ctx context.Context, ids []string) ([]jobs.FlatJob, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, selectJobColumns+` WHERE job_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select jobs by id: %w", err)
	}
	return scanJobs(rows)
}

// PushCandidates returns rows never pushed externally or marked "Lead".
func (p *Postgres) PushCandidates(ctx context.Context) ([]jobs.FlatJob, error) {
	rows, err := p.pool.Query(ctx,
		selectJobColumns+` WHERE airtable_status IS NULL OR airtable_status = 'Lead'`)
	if err != nil {
		return nil, fmt.Errorf("select push candidates: %w", err)
	}
	return scanJobs(rows)
}

func scanJobs(rows pgx.Rows) ([]jobs.FlatJob, error) {
	defer rows.Close()
	var out []jobs.FlatJob
	for rows.Next() {
		var j jobs.FlatJob
		err := rows.Scan(
			&j.JobID, &j.URL, &j.Title, &j.Description, &j.Skills,
			&j.CreatedOn, &j.PublishedOn, &j.RenewedOn, &j.DurationLabel, &j.ConnectPrice,
			&j.JobType, &j.Engagement, &j.ProposalsTier, &j.TierText,
			&j.FixedBudget, &j.WeeklyBudget, &j.HourlyBudgetMin, &j.HourlyBudgetMax, &j.Currency,
			&j.ClientCountry, &j.ClientTotalSpent, &j.ClientPaymentVerified,
			&j.ClientTotalReviews, &j.ClientAvgFeedback,
			&j.IsSTSVectorSearchResult, &j.RelevanceEncoded, &j.IsApplied,
			&j.AirtableStatus, &j.AirtableStatusChangeTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}
