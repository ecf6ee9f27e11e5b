package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/estateview/internal/analytics"
)

func testSnapshot() *analytics.Snapshot {
	return &analytics.Snapshot{
		ID:          "snap-1",
		FetchedAt:   time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Granularity: analytics.Monthly,
		Sales: []analytics.TimeSeriesPoint{
			{Period: "Jan", Primary: 1_200_000, Secondary: 300_000},
			{Period: "Feb", Primary: 1_550_000, Secondary: 420_000},
		},
		Locations: []analytics.LocationMetric{
			{City: "Lagos", Properties: 40, Inquiries: 20, Sales: 5, Rentals: 3},
			{City: "Abuja", Properties: 25, Inquiries: 8, Sales: 9, Rentals: 2},
		},
		Activities: []analytics.ActivityRecord{},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testSnapshot(), 0))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "EstateView analytics (2024-06-01 09:30 UTC)")
	assert.Contains(t, out, "Sales performance (monthly)")
	assert.Contains(t, out, "Location performance")
	assert.Contains(t, out, "Location heatmap")
	assert.Contains(t, out, "Jan")
	assert.Contains(t, out, "Lagos")
	assert.Contains(t, out, "Lag")
}

func TestRender_EmptySnapshot(t *testing.T) {
	snap := &analytics.Snapshot{
		FetchedAt:   time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Granularity: analytics.Weekly,
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, 0))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.False(t, strings.Contains(out, "Sales performance"))
	assert.False(t, strings.Contains(out, "Location heatmap"))
}

func TestRender_NilSnapshot(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, nil, 0))
}

func TestRender_CollidingCodes(t *testing.T) {
	snap := testSnapshot()
	snap.Locations = []analytics.LocationMetric{
		{City: "Abuja", Inquiries: 10},
		{City: "Abule", Inquiries: 4, Sales: 9},
	}
	h := analytics.BuildHeatmap(snap.Locations, 0)
	require.Equal(t, []string{"Abu", "Abu"}, h.Codes)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, 0))
	assert.Contains(t, buf.String(), "Location heatmap")
}

func TestHeatmapSeriesMatchesCells(t *testing.T) {
	locations := []analytics.LocationMetric{
		{City: "Lagos", Inquiries: 1, Sales: 1},
		{City: "Abuja", Inquiries: 0, Rentals: 1},
	}
	h := analytics.BuildHeatmap(locations, 0)
	require.Greater(t, len(h.Tiers), len(lo.Uniq(h.Tiers)),
		"small maximum should repeat tier labels")

	tiers, codes, data := heatmapSeries(h)
	assert.Equal(t, lo.Uniq(h.Tiers), tiers)
	assert.Equal(t, []string{"Lag", "Abu"}, codes)
	assert.Len(t, data, len(h.Cells()))
}
