// Package jobs holds the canonical flat job schema and the normalization
// logic that maps the job board's unstable nested state format onto it.
package jobs

import "time"

// FlatJob is the canonical, store-bound representation of one job posting.
// Pointer fields are nullable; a nil means the source record did not carry
// the value. JobID is the natural key and is stable across re-scrapes.
type FlatJob struct {
	JobID string
	URL   *string

	Title         *string
	Description   *string
	Skills        []string
	CreatedOn     *string
	PublishedOn   *string
	RenewedOn     *string
	DurationLabel *string
	ConnectPrice  *float64

	JobType       *string
	Engagement    *string
	ProposalsTier *string
	TierText      *string

	FixedBudget     *float64
	WeeklyBudget    *float64
	HourlyBudgetMin *float64
	HourlyBudgetMax *float64
	Currency        string

	ClientCountry         *string
	ClientTotalSpent      *float64
	ClientPaymentVerified *bool
	ClientTotalReviews    *int
	ClientAvgFeedback     *float64

	IsSTSVectorSearchResult *bool
	RelevanceEncoded        *string
	IsApplied               *bool

	// Mirror columns maintained by the sync engine, never by ingestion.
	AirtableStatus           *string
	AirtableStatusChangeTime *string
}

// Row exposes the scraped columns under their relational column names,
// omitting nulls. The sync engine's schema mapping is keyed by these names.
func (j FlatJob) Row() map[string]any {
	row := map[string]any{
		"job_id":   j.JobID,
		"currency": j.Currency,
	}
	putStr := func(col string, v *string) {
		if v != nil {
			row[col] = *v
		}
	}
	putFloat := func(col string, v *float64) {
		if v != nil {
			row[col] = *v
		}
	}
	putBool := func(col string, v *bool) {
		if v != nil {
			row[col] = *v
		}
	}

	putStr("url", j.URL)
	putStr("title", j.Title)
	putStr("description", j.Description)
	putStr("created_on", j.CreatedOn)
	putStr("published_on", j.PublishedOn)
	putStr("renewed_on", j.RenewedOn)
	putStr("duration_label", j.DurationLabel)
	putFloat("connect_price", j.ConnectPrice)
	putStr("job_type", j.JobType)
	putStr("engagement", j.Engagement)
	putStr("proposals_tier", j.ProposalsTier)
	putStr("tier_text", j.TierText)
	putFloat("fixed_budget", j.FixedBudget)
	putFloat("weekly_budget", j.WeeklyBudget)
	putFloat("hourly_budget_min", j.HourlyBudgetMin)
	putFloat("hourly_budget_max", j.HourlyBudgetMax)
	putStr("client_country", j.ClientCountry)
	putFloat("client_total_spent", j.ClientTotalSpent)
	putBool("client_payment_verified", j.ClientPaymentVerified)
	if j.ClientTotalReviews != nil {
		row["client_total_reviews"] = *j.ClientTotalReviews
	}
	putFloat("client_avg_feedback", j.ClientAvgFeedback)
	putBool("is_sts_vector_search_result", j.IsSTSVectorSearchResult)
	putStr("relevance_encoded", j.RelevanceEncoded)
	putBool("is_applied", j.IsApplied)
	if len(j.Skills) > 0 {
		row["skills"] = j.Skills
	}
	return row
}

// ScrapeRequest is the provenance record for one ingested page file.
type ScrapeRequest struct {
	SearchID        string
	QueryTimestamp  time.Time
	Query           string
	Page            int
	Filepath        string
	Processed       bool
	UploadTimestamp *time.Time
}

// SearchResult links a scrape request to one job it surfaced, with the
// proposals tier and applied flag snapshotted at scrape time.
type SearchResult struct {
	SearchID      string
	JobID         string
	ProposalsTier *string
	IsApplied     *bool
}
