package analytics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHeatmapEmpty(t *testing.T) {
	h := BuildHeatmap(nil, DefaultHeatmapRows)
	assert.True(t, h.Empty())
	assert.NotNil(t, h.Codes)
	assert.NotNil(t, h.Tiers)
	assert.NotNil(t, h.Grid)
	assert.Empty(t, h.Codes)
	assert.Empty(t, h.Tiers)
	assert.Empty(t, h.Grid)
	assert.Empty(t, h.Cells())
}

func TestBuildHeatmapSingleLocation(t *testing.T) {
	locs := []LocationMetric{
		{City: "Lagos", Properties: 5, Inquiries: 100, Sales: 40, Rentals: 10},
	}
	h := BuildHeatmap(locs, DefaultHeatmapRows)

	assert.Equal(t, []string{"Lag"}, h.Codes)
	assert.Equal(t,
		[]string{"100", "80", "60", "40", "20", "10"}, h.Tiers)
	assert.Equal(t, 100, h.MaxInquiries)
	assert.Equal(t, 40, h.MaxSales)
	assert.Equal(t, 10, h.MaxRentals)

	// inquiries reach every tier
	for _, tier := range h.Tiers {
		assert.Equal(t, MetricInquiries, h.Grid["Lag"][tier], "tier %s", tier)
	}
}

func TestBuildHeatmapClassification(t *testing.T) {
	locs := []LocationMetric{
		{City: "Abuja", Inquiries: 200, Sales: 0, Rentals: 0},
		{City: "Kano", Inquiries: 50, Sales: 70, Rentals: 3},
		{City: "Ibadan", Inquiries: 10, Sales: 5, Rentals: 90},
	}
	h := BuildHeatmap(locs, DefaultHeatmapRows)

	require.Equal(t,
		[]string{"200", "160", "120", "80", "40", "20"}, h.Tiers)

	want := map[string]map[string]Metric{
		"Abu": {
			"200": MetricInquiries, "160": MetricInquiries,
			"120": MetricInquiries, "80": MetricInquiries,
			"40": MetricInquiries, "20": MetricInquiries,
		},
		// sales 70 >= half of 120 and 80, not of 160 or 200
		"Kan": {
			"200": MetricRentals, "160": MetricRentals,
			"120": MetricSales, "80": MetricSales,
			"40": MetricInquiries, "20": MetricInquiries,
		},
		// rentals win whenever neither rule fires, however large
		"Iba": {
			"200": MetricRentals, "160": MetricRentals,
			"120": MetricRentals, "80": MetricRentals,
			"40": MetricRentals, "20": MetricRentals,
		},
	}
	if diff := cmp.Diff(want, h.Grid); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildHeatmapTiersIgnoreSalesAndRentals(t *testing.T) {
	locs := []LocationMetric{
		{City: "Lekki", Inquiries: 10, Sales: 1_000, Rentals: 5_000},
	}
	h := BuildHeatmap(locs, 0)
	assert.Equal(t, []string{"10", "8", "6", "4", "2", "1"}, h.Tiers)
	assert.Equal(t, 1_000, h.MaxSales)
	assert.Equal(t, 5_000, h.MaxRentals)
}

func TestBuildHeatmapTierRounding(t *testing.T) {
	locs := []LocationMetric{{City: "Enugu", Inquiries: 15}}
	h := BuildHeatmap(locs, DefaultHeatmapRows)
	// 12, 9, 6, 3, 1.5 -> 2
	assert.Equal(t, []string{"15", "12", "9", "6", "3", "2"}, h.Tiers)
}

func TestBuildHeatmapTruncatesInInputOrder(t *testing.T) {
	var locs []LocationMetric
	cities := []string{
		"Aba", "Bauchi", "Calabar", "Dutse", "Eket", "Funtua",
		"Gombe", "Hadejia", "Ilorin", "Jos", "Katsina",
	}
	for i, c := range cities {
		locs = append(locs, LocationMetric{City: c, Inquiries: i})
	}
	h := BuildHeatmap(locs, DefaultHeatmapRows)

	assert.Equal(t, []string{
		"Aba", "Bau", "Cal", "Dut", "Eke", "Fun", "Gom", "Had", "Ilo",
	}, h.Codes)
	// the maximum comes from every location, not just the shown ones
	assert.Equal(t, 10, h.MaxInquiries)
	assert.Equal(t, "10", h.Tiers[0])
	assert.NotContains(t, h.Grid, "Jos")

	h = BuildHeatmap(locs, 2)
	assert.Equal(t, []string{"Aba", "Bau"}, h.Codes)
}

func TestBuildHeatmapCodeCollision(t *testing.T) {
	locs := []LocationMetric{
		{City: "Portland", Inquiries: 100},
		{City: "Port Harcourt", Inquiries: 0, Sales: 0},
	}
	h := BuildHeatmap(locs, DefaultHeatmapRows)

	assert.Equal(t, []string{"Por", "Por"}, h.Codes)
	require.Len(t, h.Grid, 1)
	assert.Equal(t, MetricRentals, h.Grid["Por"]["100"])

	cells := h.Cells()
	assert.Len(t, cells, 6)
}

func TestLocationCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Lagos", "Lag"},
		{"Jo", "Jo"},
		{"", ""},
		{"Zürich", "Zür"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LocationCode(tt.in), tt.in)
	}
}

func TestHeatmapCells(t *testing.T) {
	locs := []LocationMetric{
		{City: "Lagos", Inquiries: 100, Sales: 40},
		{City: "Abuja", Inquiries: 30, Sales: 45},
	}
	cells := BuildHeatmap(locs, DefaultHeatmapRows).Cells()
	require.Len(t, cells, 12)
	assert.Equal(t, HeatmapCell{
		LocationCode: "Lag", Tier: "100", DominantMetric: MetricInquiries,
	}, cells[0])
	// Abuja at 80: 30 < 80, 45 >= 40
	assert.Equal(t, HeatmapCell{
		LocationCode: "Abu", Tier: "80", DominantMetric: MetricSales,
	}, cells[7])
}

func TestBuildHeatmapIdempotent(t *testing.T) {
	locs := []LocationMetric{
		{City: "Lagos", Inquiries: 100, Sales: 40, Rentals: 10},
		{City: "Abuja", Inquiries: 30, Sales: 45, Rentals: 1},
	}
	a := BuildHeatmap(locs, DefaultHeatmapRows)
	b := BuildHeatmap(locs, DefaultHeatmapRows)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("second build differs:\n%s", diff)
	}
}
