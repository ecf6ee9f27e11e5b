package analytics

import "time"

// Snapshot is the immutable result of one completed fetch cycle.
// Every derived view of the dashboard is computed from a single
// snapshot; a newer snapshot replaces it wholesale.
type Snapshot struct {
	ID          string            `json:"id"`
	Seq         uint64            `json:"seq"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Granularity Granularity       `json:"granularity"`
	Filters     Filters           `json:"filters"`
	Sales       []TimeSeriesPoint `json:"sales"`
	Locations   []LocationMetric  `json:"locations"`
	Activities  []ActivityRecord  `json:"activities"`
	Response    *ResponseMetric   `json:"response"`
}

// Export serializes the snapshot with BuildExport.
func (s *Snapshot) Export() string {
	return BuildExport(s.Sales, s.Locations, s.Activities, s.Response)
}

// Counts summarizes dataset sizes for status reporting.
type Counts struct {
	Sales       int  `json:"sales"`
	Locations   int  `json:"locations"`
	Activities  int  `json:"activities"`
	HasResponse bool `json:"has_response"`
}

// Counts returns the dataset sizes of s.
func (s *Snapshot) Counts() Counts {
	return Counts{
		Sales:       len(s.Sales),
		Locations:   len(s.Locations),
		Activities:  len(s.Activities),
		HasResponse: s.Response != nil,
	}
}
