// Package analytics derives chart, heatmap, feed and export
// structures from one fetched snapshot of dashboard data.
package analytics

import "errors"

// ErrEmptyDataset reports that a computation was asked to run
// over no records. It is a "no data" state, not a failure.
var ErrEmptyDataset = errors.New("no data available")

// All disables a categorical filter predicate.
const All = "All"

// TimeSeriesPoint is one period of the sales trend. Primary is
// sales volume, Secondary is rental volume.
type TimeSeriesPoint struct {
	Period    string  `json:"period"`
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
}

// LocationMetric holds per-city listing counts.
type LocationMetric struct {
	City       string `json:"city"`
	Properties int    `json:"properties"`
	Inquiries  int    `json:"inquiries"`
	Sales      int    `json:"sales"`
	Rentals    int    `json:"rentals"`
}

// ActivityRecord is one entry of the recent-activity feed.
type ActivityRecord struct {
	ID           string `json:"id"`
	ActivityType string `json:"activity_type"`
	PropertyName string `json:"property_name"`
	Description  string `json:"description"`
	AdminName    string `json:"admin_name"`
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
}

// ResponseMetric summarizes inquiry response times in minutes.
type ResponseMetric struct {
	AvgResponseTime float64 `json:"avg_response_time"`
	FastestResponse float64 `json:"fastest_response"`
	SlowestResponse float64 `json:"slowest_response"`
}

// Granularity selects the bucket size of the sales series.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// DefaultGranularity is used when a request names none.
const DefaultGranularity = Monthly

// ParseGranularity validates s. The empty string maps to
// DefaultGranularity.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return DefaultGranularity, nil
	case Daily, Weekly, Monthly, Yearly:
		return g, nil
	}
	return "", errors.New(
		"invalid granularity: must be daily, weekly, monthly, or yearly",
	)
}

// Filters narrows the activity feed on the backend side.
// Empty fields are not sent.
type Filters struct {
	PropertyType string `json:"property_type,omitempty"`
	Location     string `json:"location,omitempty"`
	DateRange    string `json:"date_range,omitempty"`
}

var validDateRanges = map[string]bool{
	"": true, "7d": true, "30d": true, "90d": true,
	"1y": true, "all": true,
}

// Validate checks the date range token.
func (f Filters) Validate() error {
	if !validDateRanges[f.DateRange] {
		return errors.New(
			"invalid date range: must be 7d, 30d, 90d, 1y, or all",
		)
	}
	return nil
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}
