package analytics

// ChartPoint is one period of the sales trend with values scaled
// against the chart maximum.
type ChartPoint struct {
	Period         string  `json:"period"`
	Primary        float64 `json:"primary"`
	Secondary      float64 `json:"secondary"`
	PrimaryRatio   float64 `json:"primary_ratio"`
	SecondaryRatio float64 `json:"secondary_ratio"`
	PrimaryLabel   string  `json:"primary_label"`
	SecondaryLabel string  `json:"secondary_label"`
}

// SalesChart is everything the line-chart renderer needs.
type SalesChart struct {
	Scale      Scale        `json:"scale"`
	TickLabels []string     `json:"tick_labels"`
	Points     []ChartPoint `json:"points"`
}

// BuildSalesChart computes the axis scale for points and scales
// every point against it, keeping input order.
func BuildSalesChart(points []TimeSeriesPoint) (SalesChart, error) {
	scale, err := ComputeScale(points)
	if err != nil {
		return SalesChart{}, err
	}

	out := make([]ChartPoint, len(points))
	for i, p := range points {
		out[i] = ChartPoint{
			Period:         p.Period,
			Primary:        p.Primary,
			Secondary:      p.Secondary,
			PrimaryRatio:   ratio(p.Primary, scale.Max),
			SecondaryRatio: ratio(p.Secondary, scale.Max),
			PrimaryLabel:   Magnitude(p.Primary),
			SecondaryLabel: Magnitude(p.Secondary),
		}
	}

	return SalesChart{
		Scale:      scale,
		TickLabels: TickLabels(scale.Ticks),
		Points:     out,
	}, nil
}

func ratio(v, bound float64) float64 {
	if bound == 0 {
		return 0
	}
	return v / bound
}
