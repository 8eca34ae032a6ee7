// Package extract renders saved job-board HTML snapshots and pulls the
// embedded page-state JSON out of them, writing one JSON dump per page for
// the ingestion pipeline to consume.
package extract

import (
	"context"

	"github.com/tidwall/gjson"
)

// Renderer loads one saved HTML document and returns the parsed page-state
// object as raw JSON. Implementations own their browser resources.
type Renderer interface {
	Render(ctx context.Context, htmlPath string) ([]byte, error)
	Close(ctx context.Context) error
}

// The job array lives at one of two known paths inside the page state,
// depending on whether the page was a search or the best-match feed.
var stateJobPaths = []string{
	"state.jobsSearch.jobs",
	"state.feedBestMatch.jobs",
}

// StateJobs navigates the page state to the job list. A state carrying
// neither known path means "no jobs found", not an error.
func StateJobs(state []byte) (gjson.Result, bool) {
	for _, path := range stateJobPaths {
		if v := gjson.GetBytes(state, path); v.IsArray() {
			return v, true
		}
	}
	return gjson.Result{}, false
}
