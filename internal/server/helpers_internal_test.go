package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/config"
	"github.com/wesm/estateview/internal/db"
	"github.com/wesm/estateview/internal/sync"
)

// stubSource serves one fixed dataset for internal tests.
type stubSource struct{}

func (stubSource) SalesPerformance(
	context.Context, analytics.Granularity,
) ([]analytics.TimeSeriesPoint, error) {
	return []analytics.TimeSeriesPoint{
		{Period: "Jan", Primary: 900_000, Secondary: 150_000},
	}, nil
}

func (stubSource) LocationPerformance(
	context.Context,
) ([]analytics.LocationMetric, error) {
	return []analytics.LocationMetric{
		{City: "Lagos", Properties: 12, Inquiries: 7, Sales: 2, Rentals: 1},
	}, nil
}

func (stubSource) RecentActivity(
	context.Context, int, analytics.Filters,
) ([]analytics.ActivityRecord, error) {
	return []analytics.ActivityRecord{}, nil
}

func (stubSource) ResponseMetrics(
	context.Context,
) (*analytics.ResponseMetric, error) {
	return nil, nil
}

// withHandlerDelay slows every timeout-wrapped handler by d. It
// must be passed to New so the routes see it.
func withHandlerDelay(d time.Duration) Option {
	return func(s *Server) { s.handlerDelay = d }
}

// testServer creates a Server for internal tests with the given
// write timeout and one published snapshot. It registers cleanup
// of the database via t.Cleanup.
func testServer(
	t *testing.T, writeTimeout time.Duration,
) *Server {
	t.Helper()
	return testServerOpts(t, writeTimeout)
}

func testServerOpts(
	t *testing.T, writeTimeout time.Duration,
	opts ...Option,
) *Server {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	database, err := db.Open(dbPath)
	require.NoError(t, err, "opening db")
	t.Cleanup(func() { database.Close() })

	cfg := config.Config{
		Host:         "127.0.0.1",
		Port:         0,
		DataDir:      dir,
		DBPath:       dbPath,
		HeatmapRows:  analytics.DefaultHeatmapRows,
		WriteTimeout: writeTimeout,
	}
	engine := sync.NewEngine(stubSource{}, database)
	_, err = engine.Refresh(context.Background(), sync.Request{}, nil)
	require.NoError(t, err, "seeding snapshot")

	return New(cfg, engine, database, opts...)
}

// assertTimeoutResponse checks for the 503 JSON body written
// by withTimeout.
func assertTimeoutResponse(t *testing.T, resp *http.Response) {
	t.Helper()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "request timed out", body.Error)
}

// isTimeoutResponse reports whether resp is the withTimeout 503.
func isTimeoutResponse(resp *http.Response) bool {
	if resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	var body errorBody
	if json.NewDecoder(resp.Body).Decode(&body) != nil {
		return false
	}
	return body.Error == "request timed out"
}
