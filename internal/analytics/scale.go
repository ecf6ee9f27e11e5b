package analytics

import (
	"math"

	"github.com/samber/lo"
)

const (
	// ScaleStep is the boundary the chart maximum is rounded up to.
	ScaleStep = 200_000
	// TickCount is the number of y-axis ticks, both ends included.
	TickCount = 6
)

// Scale is the y-axis of the sales trend chart.
type Scale struct {
	Max   float64   `json:"max"`
	Ticks []float64 `json:"ticks"`
}

// ComputeScale pools the primary and secondary values of every
// point, rounds their maximum up to the next ScaleStep and spaces
// TickCount ticks evenly from 0 to that bound. An empty series
// returns ErrEmptyDataset.
func ComputeScale(points []TimeSeriesPoint) (Scale, error) {
	if len(points) == 0 {
		return Scale{}, ErrEmptyDataset
	}

	rawMax := lo.Max(lo.FlatMap(points,
		func(p TimeSeriesPoint, _ int) []float64 {
			return []float64{p.Primary, p.Secondary}
		},
	))

	var roundedMax float64
	if rawMax > 0 {
		roundedMax = math.Ceil(rawMax/ScaleStep) * ScaleStep
	}

	ticks := make([]float64, TickCount)
	for i := range ticks {
		ticks[i] = roundHalfUp(
			float64(i) * roundedMax / (TickCount - 1),
		)
	}
	return Scale{Max: roundedMax, Ticks: ticks}, nil
}
