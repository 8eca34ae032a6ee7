package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "key-test",
		BaseID:  "appTEST",
		BaseURL: srv.URL,
	}, zap.NewNop())
}

func TestListFollowsPagination(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/appTEST/Jobs", r.URL.Path)
		assert.Equal(t, "Bearer key-test", r.Header.Get("Authorization"))

		if r.URL.Query().Get("offset") == "" {
			assert.Equal(t, "{Status} = 'Lead'", r.URL.Query().Get("filterByFormula"))
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"job_id":"1"}}],"offset":"page2"}`)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec2","fields":{"job_id":"2"}}]}`)
	}))

	records, err := client.Table("Jobs").List(context.Background(), "{Status} = 'Lead'")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "2", records[1].StringField("job_id"))
	assert.Equal(t, 2, calls)
}

func TestBatchCreateChunksAtTen(t *testing.T) {
	t.Parallel()

	var sizes []int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Records []struct {
				Fields map[string]any `json:"fields"`
			} `json:"records"`
			Typecast bool `json:"typecast"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.True(t, body.Typecast)
		sizes = append(sizes, len(body.Records))

		resp := recordsPage{}
		for i, rec := range body.Records {
			resp.Records = append(resp.Records, Record{
				ID:     fmt.Sprintf("rec%d-%d", len(sizes), i),
				Fields: rec.Fields,
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	fields := make([]map[string]any, 12)
	for i := range fields {
		fields[i] = map[string]any{"Name": fmt.Sprintf("Skill %d", i)}
	}

	created, err := client.Table("Skills").BatchCreate(context.Background(), fields)
	require.NoError(t, err)
	assert.Len(t, created, 12)
	assert.Equal(t, []int{10, 2}, sizes)
}

func TestBatchDeleteSendsRecordIDs(t *testing.T) {
	t.Parallel()

	var deleted []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = append(deleted, r.URL.Query()["records[]"]...)
		fmt.Fprint(w, `{"records":[]}`)
	}))

	err := client.Table("Jobs").BatchDelete(context.Background(), []string{"rec1", "rec2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rec1", "rec2"}, deleted)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"type":"INVALID_REQUEST_UNKNOWN"}}`)
	}))

	_, err := client.Table("Jobs").List(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "INVALID_REQUEST_UNKNOWN")
}

func TestBatchUpdatePatchesRecords(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		var body updateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Records, 1)
		assert.Equal(t, "rec9", body.Records[0].ID)

		resp := recordsPage{Records: []Record{{ID: "rec9", Fields: body.Records[0].Fields}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	updated, err := client.Table("Jobs").BatchUpdate(context.Background(), []Update{
		{ID: "rec9", Fields: map[string]any{"is_applied": true}},
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, true, updated[0].Fields["is_applied"])
}
