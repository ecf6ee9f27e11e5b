// Package client reads dashboard datasets from the listings API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesm/estateview/internal/analytics"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 16 << 20
	userAgent      = "estateview"
)

// StatusError is returned when the API answers with a non-2xx
// status.
type StatusError struct {
	Path   string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: API returned %d", e.Path, e.Code)
	}
	return fmt.Sprintf(
		"%s: API returned %d: %s", e.Path, e.Code, e.Detail,
	)
}

// Client talks to the listings API. It is safe for concurrent
// use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Nil is
// ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SalesPerformance returns the sales trend at the given
// granularity, in the order the API sent it.
func (c *Client) SalesPerformance(
	ctx context.Context, g analytics.Granularity,
) ([]analytics.TimeSeriesPoint, error) {
	q := url.Values{}
	q.Set("granularity", string(g))
	res, err := c.get(ctx, "/analytics/sales", q)
	if err != nil {
		return nil, err
	}
	return decodeSales(res)
}

// LocationPerformance returns per-city counts.
func (c *Client) LocationPerformance(
	ctx context.Context,
) ([]analytics.LocationMetric, error) {
	res, err := c.get(ctx, "/analytics/locations", nil)
	if err != nil {
		return nil, err
	}
	return decodeLocations(res)
}

// RecentActivity returns up to limit activity records matching
// the backend-side filters, mapped into feed records.
func (c *Client) RecentActivity(
	ctx context.Context, limit int, f analytics.Filters,
) ([]analytics.ActivityRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if f.PropertyType != "" {
		q.Set("propertyType", f.PropertyType)
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.DateRange != "" {
		q.Set("dateRange", f.DateRange)
	}
	res, err := c.get(ctx, "/analytics/activities", q)
	if err != nil {
		return nil, err
	}
	return decodeActivities(res)
}

// ResponseMetrics returns the response-time summary, or nil when
// the API has none.
func (c *Client) ResponseMetrics(
	ctx context.Context,
) (*analytics.ResponseMetric, error) {
	res, err := c.get(ctx, "/analytics/response-metrics", nil)
	if err != nil {
		return nil, err
	}
	return decodeResponse(res)
}

// get issues a GET and returns the parsed body, unwrapping a
// top-level "data" envelope. An empty body parses as null.
func (c *Client) get(
	ctx context.Context, path string, q url.Values,
) (gjson.Result, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return gjson.Result{}, &StatusError{
			Path:   path,
			Code:   resp.StatusCode,
			Detail: errorDetail(body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: malformed JSON", path)
	}

	res := gjson.ParseBytes(body)
	if res.IsObject() {
		if data := res.Get("data"); data.Exists() {
			return data, nil
		}
	}
	return res, nil
}

// errorDetail extracts a message from an error body, preferring
// a JSON "error" or "message" field.
func errorDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if gjson.ValidBytes(body) {
		if m := first(gjson.ParseBytes(body), "error", "message"); m.Exists() {
			return m.String()
		}
	}
	return string(body)
}
