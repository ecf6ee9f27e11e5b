package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildExportEmpty(t *testing.T) {
	got := BuildExport(nil, nil, nil, nil)
	want := "SALES PERFORMANCE\n" +
		"Period,Sales,Rentals\n" +
		"\n" +
		"LOCATION PERFORMANCE\n" +
		"City,Properties,Inquiries,Sales,Rentals\n" +
		"\n" +
		"RECENT ACTIVITIES\n" +
		"Activity Type,Property,Description,Admin,Timestamp,Status\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "RESPONSE METRICS")
}

func TestBuildExportFull(t *testing.T) {
	sales := []TimeSeriesPoint{
		{Period: "Jan", Primary: 450_000, Secondary: 100_000},
		{Period: "", Primary: 12.5, Secondary: 0},
	}
	locs := []LocationMetric{
		{City: "Lagos", Properties: 5, Inquiries: 100, Sales: 40, Rentals: 10},
		{City: "Washington, D.C.", Properties: 1, Inquiries: 2, Sales: 3, Rentals: 4},
	}
	acts := []ActivityRecord{
		{
			ID: "1", ActivityType: "New Listing",
			PropertyName: `Ocean View, "Deluxe"`,
			Description:  "12 inquiries", AdminName: "System",
			Timestamp: "Jan 2, 2025 3:04 PM", Status: "Available",
		},
	}
	resp := &ResponseMetric{
		AvgResponseTime: 12.5, FastestResponse: 2, SlowestResponse: 45,
	}

	got := BuildExport(sales, locs, acts, resp)
	want := strings.Join([]string{
		"SALES PERFORMANCE",
		"Period,Sales,Rentals",
		"Jan,450000,100000",
		"N/A,12.5,0",
		"",
		"LOCATION PERFORMANCE",
		"City,Properties,Inquiries,Sales,Rentals",
		"Lagos,5,100,40,10",
		`"Washington, D.C.",1,2,3,4`,
		"",
		"RECENT ACTIVITIES",
		"Activity Type,Property,Description,Admin,Timestamp,Status",
		`"New Listing","Ocean View, ""Deluxe""","12 inquiries","System","Jan 2, 2025 3:04 PM","Available"`,
		"",
		"RESPONSE METRICS",
		"Metric,Minutes",
		"Average Response Time,12.5",
		"Fastest Response,2",
		"Slowest Response,45",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBuildExportPreservesOrder(t *testing.T) {
	sales := []TimeSeriesPoint{
		{Period: "Mar"}, {Period: "Jan"}, {Period: "Feb"},
	}
	got := BuildExport(sales, nil, nil, nil)
	mar := strings.Index(got, "Mar,")
	jan := strings.Index(got, "Jan,")
	feb := strings.Index(got, "Feb,")
	assert.Less(t, mar, jan)
	assert.Less(t, jan, feb)
}

func TestBuildExportDeterministic(t *testing.T) {
	sales := []TimeSeriesPoint{{Period: "Jan", Primary: 1}}
	resp := &ResponseMetric{AvgResponseTime: 1}
	a := BuildExport(sales, nil, nil, resp)
	b := BuildExport(sales, nil, nil, resp)
	assert.Equal(t, a, b)
}

func TestExportFilename(t *testing.T) {
	ts := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "complete-analytics-2025-03-09.csv", ExportFilename(ts))
}

func TestSnapshotExport(t *testing.T) {
	s := &Snapshot{
		Sales:    []TimeSeriesPoint{{Period: "Jan", Primary: 1, Secondary: 2}},
		Response: &ResponseMetric{},
	}
	assert.Equal(t,
		BuildExport(s.Sales, nil, nil, s.Response), s.Export())
	assert.Equal(t, Counts{Sales: 1, HasResponse: true}, s.Counts())
}
