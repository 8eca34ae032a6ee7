package jobs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const jobURLPrefix = "https://www.upwork.com/jobs/"

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// Normalize flattens one raw nested job record into a FlatJob. It is total:
// every lookup is optional-safe and a malformed or empty record yields a
// FlatJob with null fields rather than an error. The raw record is treated
// as a generic JSON tree because the job board's state schema is versioned
// and unstable.
func Normalize(rec gjson.Result) FlatJob {
	job := FlatJob{
		JobID:  scalarString(rec.Get("uid")),
		Title:  stripHTML(rec.Get("title")),
		Skills: skillNames(rec.Get("attrs")),

		Description:   stripHTML(rec.Get("description")),
		CreatedOn:     optString(rec.Get("createdOn")),
		PublishedOn:   optString(rec.Get("publishedOn")),
		RenewedOn:     optString(rec.Get("renewedOn")),
		DurationLabel: optString(rec.Get("durationLabel")),
		ConnectPrice:  optFloat(rec.Get("connectPrice")),

		JobType:       jobType(rec.Get("type")),
		Engagement:    afterLastDot(rec.Get("engagement")),
		ProposalsTier: afterLastDot(rec.Get("proposalsTier")),
		TierText:      betweenUnderscores(rec.Get("tierText")),

		FixedBudget:     optFloat(rec.Get("amount.amount")),
		WeeklyBudget:    optFloat(rec.Get("weeklyBudget.amount")),
		HourlyBudgetMin: optFloat(rec.Get("hourlyBudget.min")),
		HourlyBudgetMax: optFloat(rec.Get("hourlyBudget.max")),
		Currency:        currency(rec),

		ClientCountry:         optString(rec.Get("client.location.country")),
		ClientTotalSpent:      safeFloat(rec.Get("client.totalSpent")),
		ClientPaymentVerified: optBool(rec.Get("client.isPaymentVerified")),
		ClientTotalReviews:    optInt(rec.Get("client.totalReviews")),
		ClientAvgFeedback:     optFloat(rec.Get("client.totalFeedback")),

		IsSTSVectorSearchResult: optBool(rec.Get("isSTSVectorSearchResult")),
		RelevanceEncoded:        optString(rec.Get("relevanceEncoded")),
		IsApplied:               optBool(rec.Get("isApplied")),
	}

	if ct := rec.Get("ciphertext"); ct.Type == gjson.String && ct.Str != "" {
		url := jobURLPrefix + ct.Str
		job.URL = &url
	}

	return job
}

// scalarString renders string or numeric ids as a string, "" otherwise.
func scalarString(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number:
		return v.String()
	default:
		return ""
	}
}

func optString(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := v.Str
	return &s
}

func optFloat(v gjson.Result) *float64 {
	if v.Type != gjson.Number {
		return nil
	}
	f := v.Float()
	return &f
}

func optInt(v gjson.Result) *int {
	if v.Type != gjson.Number {
		return nil
	}
	n := int(v.Int())
	return &n
}

func optBool(v gjson.Result) *bool {
	if v.Type != gjson.True && v.Type != gjson.False {
		return nil
	}
	b := v.Bool()
	return &b
}

// stripHTML removes anything matching a generic tag pattern from a string
// value; non-string values degrade to null.
func stripHTML(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := htmlTagPattern.ReplaceAllString(v.Str, "")
	return &s
}

// afterLastDot keeps only the text after the final '.' of a dotted enum
// string, or the whole value when it carries no dot.
func afterLastDot(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := v.Str
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		s = s[idx+1:]
	}
	return &s
}

// betweenUnderscores extracts the segment between the first two underscores
// of tier text like "_Intermediate_"; anything with fewer than two
// underscores passes through unchanged.
func betweenUnderscores(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := v.Str
	if parts := strings.Split(s, "_"); len(parts) > 2 {
		s = parts[1]
	}
	return &s
}

// jobType maps the integer discriminator onto its label. The mapping is
// exhaustive: anything but 1 or 2 is null.
func jobType(v gjson.Result) *string {
	if v.Type != gjson.Number {
		return nil
	}
	var label string
	switch v.Int() {
	case 1:
		label = "fixed"
	case 2:
		label = "hourly"
	default:
		return nil
	}
	return &label
}

// currency prefers the fixed-budget code, then the hourly-budget code,
// and defaults to USD.
func currency(rec gjson.Result) string {
	if v := rec.Get("amount.currencyCode"); v.Type == gjson.String && v.Str != "" {
		return v.Str
	}
	if v := rec.Get("hourlyBudget.currencyCode"); v.Type == gjson.String && v.Str != "" {
		return v.Str
	}
	return "USD"
}

// safeFloat coerces numeric or numeric-string values; any failure is null.
func safeFloat(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		return &f
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// skillNames collects prettyName values from the attribute list, preserving
// source order. A missing or non-list input yields no skills.
func skillNames(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var names []string
	v.ForEach(func(_, attr gjson.Result) bool {
		if name := attr.Get("prettyName"); name.Type == gjson.String {
			names = append(names, name.Str)
		}
		return true
	})
	return names
}
