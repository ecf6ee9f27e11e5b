package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesm/estateview/internal/analytics"
)

// activityTimeLayout is how feed timestamps are displayed.
const activityTimeLayout = "Jan 2, 2006 3:04 PM"

// defaultAdmin is credited with activities that name no admin.
const defaultAdmin = "System"

// statusActivityTypes maps a listing status to the feed label
// used when the API sends no explicit activity type.
var statusActivityTypes = map[string]string{
	"Available": "New Listing",
	"Rented":    "Property Rented",
	"Sold":      "Property Sold",
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// first returns the first of paths present on r.
func first(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// records returns the elements of a list body. Null is an empty
// list; anything else that is not an array is an error.
func records(r gjson.Result, what string) ([]gjson.Result, error) {
	switch {
	case r.Type == gjson.Null:
		return nil, nil
	case r.IsArray():
		return r.Array(), nil
	}
	return nil, fmt.Errorf("decoding %s: expected a JSON array", what)
}

func decodeSales(r gjson.Result) ([]analytics.TimeSeriesPoint, error) {
	items, err := records(r, "sales performance")
	if err != nil {
		return nil, err
	}
	points := make([]analytics.TimeSeriesPoint, 0, len(items))
	for _, it := range items {
		points = append(points, analytics.TimeSeriesPoint{
			Period:    first(it, "period", "month", "label", "name").String(),
			Primary:   first(it, "primary", "sales", "revenue").Float(),
			Secondary: first(it, "secondary", "rentals").Float(),
		})
	}
	return points, nil
}

func decodeLocations(r gjson.Result) ([]analytics.LocationMetric, error) {
	items, err := records(r, "location performance")
	if err != nil {
		return nil, err
	}
	locs := make([]analytics.LocationMetric, 0, len(items))
	for _, it := range items {
		locs = append(locs, analytics.LocationMetric{
			City:       first(it, "city", "location", "name").String(),
			Properties: int(first(it, "properties", "listings").Int()),
			Inquiries:  int(it.Get("inquiries").Int()),
			Sales:      int(it.Get("sales").Int()),
			Rentals:    int(it.Get("rentals").Int()),
		})
	}
	return locs, nil
}

func decodeActivities(r gjson.Result) ([]analytics.ActivityRecord, error) {
	items, err := records(r, "recent activity")
	if err != nil {
		return nil, err
	}
	acts := make([]analytics.ActivityRecord, 0, len(items))
	for _, it := range items {
		acts = append(acts, mapActivity(it))
	}
	return acts, nil
}

// mapActivity converts the API's listing event
// {id, title, inquiries, date, status} into a feed record.
func mapActivity(it gjson.Result) analytics.ActivityRecord {
	status := it.Get("status").String()

	activityType := first(it, "activityType", "type").String()
	if activityType == "" {
		activityType = statusActivityTypes[status]
	}
	if activityType == "" {
		activityType = "Update"
	}

	admin := first(it, "adminName", "admin").String()
	if admin == "" {
		admin = defaultAdmin
	}

	description := first(it, "description").String()
	if description == "" {
		description = inquiriesText(it.Get("inquiries").Int())
	}

	return analytics.ActivityRecord{
		ID:           first(it, "id", "_id").String(),
		ActivityType: activityType,
		PropertyName: first(it, "title", "propertyName").String(),
		Description:  description,
		AdminName:    admin,
		Timestamp:    formatTimestamp(first(it, "date", "timestamp").String()),
		Status:       status,
	}
}

func inquiriesText(n int64) string {
	if n == 1 {
		return "1 inquiry"
	}
	return strconv.FormatInt(n, 10) + " inquiries"
}

// formatTimestamp renders raw in activityTimeLayout when it
// parses as a known date format, else returns it unchanged.
func formatTimestamp(raw string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(activityTimeLayout)
		}
	}
	return raw
}

func decodeResponse(r gjson.Result) (*analytics.ResponseMetric, error) {
	if r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsObject() {
		return nil, fmt.Errorf(
			"decoding response metrics: expected a JSON object",
		)
	}
	return &analytics.ResponseMetric{
		AvgResponseTime: first(r, "avgResponseTime", "avg_response_time").Float(),
		FastestResponse: first(r, "fastestResponse", "fastest_response").Float(),
		SlowestResponse: first(r, "slowestResponse", "slowest_response").Float(),
	}, nil
}
