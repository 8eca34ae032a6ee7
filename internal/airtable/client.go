// Package airtable is a minimal client for the Airtable records API,
// covering the operations the sync engine needs: formula-filtered listing
// with offset pagination and batched create/update/delete, chunked to the
// API's 10-record limit.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jslade/jobsync/internal/metrics"
)

const (
	defaultBaseURL = "https://api.airtable.com/v0"

	// MaxBatchSize is the documented per-request record limit.
	MaxBatchSize = 10

	// The API allows 5 requests per second per base.
	requestsPerSecond = 5
)

// Config identifies the base to talk to.
type Config struct {
	APIKey  string
	BaseID  string
	BaseURL string // override for tests; defaults to the public API
}

// Client is a rate-limited HTTP client for one Airtable base.
type Client struct {
	apiKey  string
	baseID  string
	baseURL string
	hc      *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a client for the configured base.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseID:  cfg.BaseID,
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// Table returns a handle for one table in the base.
func (c *Client) Table(tableID string) *Table {
	return &Table{client: c, tableID: tableID}
}

// Record is one Airtable record.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// StringField returns a field as a string, or "" when absent or non-string.
func (r Record) StringField(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Update is a partial update of one record.
type Update struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Table addresses one table of the client's base.
type Table struct {
	client  *Client
	tableID string
}

type recordsPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// List fetches all records, optionally restricted by a filter formula,
// following offset pagination to the end.
func (t *Table) List(ctx context.Context, formula string) ([]Record, error) {
	var out []Record
	offset := ""
	for {
		query := url.Values{}
		if formula != "" {
			query.Set("filterByFormula", formula)
		}
		if offset != "" {
			query.Set("offset", offset)
		}
		var page recordsPage
		if err := t.client.do(ctx, http.MethodGet, t.tableID, query, nil, &page); err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

type createRequest struct {
	Records  []createEntry `json:"records"`
	Typecast bool          `json:"typecast"`
}

type createEntry struct {
	Fields map[string]any `json:"fields"`
}

// BatchCreate creates records in chunks of MaxBatchSize and returns the
// created records in input order.
func (t *Table) BatchCreate(ctx context.Context, fields []map[string]any) ([]Record, error) {
	var created []Record
	for _, chunk := range chunkBy(fields, MaxBatchSize) {
		body := createRequest{Typecast: true}
		for _, f := range chunk {
			body.Records = append(body.Records, createEntry{Fields: f})
		}
		var page recordsPage
		if err := t.client.do(ctx, http.MethodPost, t.tableID, nil, body, &page); err != nil {
			return created, fmt.Errorf("batch create: %w", err)
		}
		created = append(created, page.Records...)
	}
	return created, nil
}

type updateRequest struct {
	Records  []Update `json:"records"`
	Typecast bool     `json:"typecast"`
}

// BatchUpdate applies partial updates in chunks of MaxBatchSize.
func (t *Table) BatchUpdate(ctx context.Context, updates []Update) ([]Record, error) {
	var updated []Record
	for _, chunk := range chunkBy(updates, MaxBatchSize) {
		body := updateRequest{Records: chunk, Typecast: true}
		var page recordsPage
		if err := t.client.do(ctx, http.MethodPatch, t.tableID, nil, body, &page); err != nil {
			return updated, fmt.Errorf("batch update: %w", err)
		}
		updated = append(updated, page.Records...)
	}
	return updated, nil
}

// BatchDelete removes records by id in chunks of MaxBatchSize.
func (t *Table) BatchDelete(ctx context.Context, ids []string) error {
	for _, chunk := range chunkBy(ids, MaxBatchSize) {
		query := url.Values{}
		for _, id := range chunk {
			query.Add("records[]", id)
		}
		if err := t.client.do(ctx, http.MethodDelete, t.tableID, query, nil, nil); err != nil {
			return fmt.Errorf("batch delete: %w", err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, tableID string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, tableID)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(method, "error")
		return fmt.Errorf("%s %s: %w", method, tableID, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()
	metrics.ObserveAPIRequest(method, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, tableID, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func chunkBy[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size > 0 && len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		chunks = append(chunks, items[:n])
		items = items[n:]
	}
	return chunks
}
