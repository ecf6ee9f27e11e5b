package sync

import "fmt"

// Phase describes the current refresh phase.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFetching Phase = "fetching"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)

// Dataset names, in the order they are reported.
const (
	DatasetSales      = "sales"
	DatasetLocations  = "locations"
	DatasetActivities = "activities"
	DatasetResponse   = "response"
)

// datasetCount is the number of reads joined into one snapshot.
const datasetCount = 4

// Progress reports refresh progress to listeners.
type Progress struct {
	Phase         Phase  `json:"phase"`
	Seq           uint64 `json:"seq"`
	Dataset       string `json:"dataset,omitempty"`
	DatasetsTotal int    `json:"datasets_total"`
	DatasetsDone  int    `json:"datasets_done"`
}

// Percent returns how many of the datasets have arrived, from 0
// to 100.
func (p Progress) Percent() float64 {
	if p.DatasetsTotal <= 0 {
		return 0
	}
	done := min(max(p.DatasetsDone, 0), p.DatasetsTotal)
	return 100 * float64(done) / float64(p.DatasetsTotal)
}

// String renders p for terminal output, e.g.
// "fetching 2/4 (50%) locations".
func (p Progress) String() string {
	s := fmt.Sprintf("%s %d/%d (%.0f%%)",
		p.Phase, p.DatasetsDone, p.DatasetsTotal, p.Percent())
	if p.Dataset != "" {
		s += " " + p.Dataset
	}
	return s
}

// ProgressFunc is called with progress updates during a refresh.
type ProgressFunc func(Progress)
