// Package airtable is a small read-only client for the Airtable REST API.
package airtable

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "github.com/clickonetwo/airtable-tsml-feed/internal/log"
)

const (
	DefaultBaseURL        = "https://api.airtable.com/v0"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPageSize       = 100
	maxPageSize           = 100
)

// Options configures the shared HTTP client.
type Options struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
	PageSize       int
}

func (o *Options) normalize() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	if o.RetryMaxWait <= 0 {
		o.RetryMaxWait = 30 * time.Second
	}
	if o.PageSize <= 0 || o.PageSize > maxPageSize {
		o.PageSize = DefaultPageSize
	}
}

// FetchError is returned when a table cannot be read completely.
type FetchError struct {
	Table  string
	Status int // 0 for transport errors
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.Table, e.Err)
	case e.Body != "":
		return fmt.Sprintf("fetch %s: status %d: %s", e.Table, e.Status, e.Body)
	default:
		return fmt.Sprintf("fetch %s: status %d", e.Table, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Registry hands out Base handles. The HTTP client is built on first use
// and shared by every base; bases are cached by ID.
type Registry struct {
	opts Options

	clientOnce sync.Once
	client     *resty.Client

	mu    sync.Mutex
	bases map[string]*Base
}

// NewRegistry returns a Registry. No network or client setup happens until
// the first call to Base.
func NewRegistry(opts Options) *Registry {
	opts.normalize()
	return &Registry{opts: opts, bases: make(map[string]*Base)}
}

func (r *Registry) httpClient() *resty.Client {
	r.clientOnce.Do(func() {
		r.client = resty.New().
			SetBaseURL(r.opts.BaseURL).
			SetTimeout(r.opts.RequestTimeout).
			SetAuthToken(r.opts.APIKey).
			SetHeader("Accept", "application/json").
			SetRetryCount(r.opts.RetryCount).
			SetRetryWaitTime(r.opts.RetryWait).
			SetRetryMaxWaitTime(r.opts.RetryMaxWait).
			AddRetryCondition(retryCondition)
		appLog.Debug("airtable client configured",
			"base_url", r.opts.BaseURL,
			"timeout", r.opts.RequestTimeout.String(),
			"retries", r.opts.RetryCount,
		)
	})
	return r.client
}

// retryCondition retries transport errors, rate limiting and server errors.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Base returns the cached handle for baseID, creating it if needed.
func (r *Registry) Base(baseID string) *Base {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bases[baseID]; ok {
		return b
	}
	b := &Base{id: baseID, client: r.httpClient(), pageSize: r.opts.PageSize}
	r.bases[baseID] = b
	return b
}

// Base is one Airtable base.
type Base struct {
	id       string
	client   *resty.Client
	pageSize int
}

func (b *Base) ID() string { return b.id }

// Table returns a handle for a table ID or name in this base.
func (b *Base) Table(id string) *Table {
	return &Table{base: b, id: id}
}

// Table is one table in a base.
type Table struct {
	base *Base
	id   string
}

// SelectOptions narrows a Select.
type SelectOptions struct {
	View       string
	MaxRecords int
	Fields     []string
}

// Record is one row as returned by the API.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// Select reads every page of the table and returns the records in API
// order. Nothing is returned if any page fails.
func (t *Table) Select(ctx context.Context, opts SelectOptions) ([]Record, error) {
	var all []Record
	offset := ""
	for page := 1; ; page++ {
		var body listResponse
		req := t.base.client.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"base": t.base.id, "table": t.id}).
			SetQueryParam("pageSize", strconv.Itoa(t.base.pageSize)).
			SetResult(&body)
		if opts.View != "" {
			req.SetQueryParam("view", opts.View)
		}
		if opts.MaxRecords > 0 {
			req.SetQueryParam("maxRecords", strconv.Itoa(opts.MaxRecords))
		}
		if len(opts.Fields) > 0 {
			req.SetQueryParamsFromValues(map[string][]string{"fields[]": opts.Fields})
		}
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}

		resp, err := req.Get("/{base}/{table}")
		if err != nil {
			appLog.Error("airtable fetch failed", err, "table", t.id, "page", page)
			return nil, &FetchError{Table: t.id, Err: err}
		}
		if resp.IsError() {
			ferr := &FetchError{Table: t.id, Status: resp.StatusCode(), Body: truncate(resp.String(), 512)}
			appLog.Error("airtable fetch failed", ferr, "table", t.id, "page", page, "status", resp.StatusCode())
			return nil, ferr
		}

		appLog.Info("airtable page fetched", "table", t.id, "page", page, "count", len(body.Records))
		all = append(all, body.Records...)

		if body.Offset == "" || (opts.MaxRecords > 0 && len(all) >= opts.MaxRecords) {
			break
		}
		offset = body.Offset
	}
	if opts.MaxRecords > 0 && len(all) > opts.MaxRecords {
		all = all[:opts.MaxRecords]
	}
	return all, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
