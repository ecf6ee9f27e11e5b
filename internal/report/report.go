// Package report renders a snapshot as a standalone HTML page of
// ECharts charts.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/samber/lo"

	"github.com/wesm/estateview/internal/analytics"
)

const (
	chartWidth  = "960px"
	chartHeight = "420px"
	textColor   = "#334155"
)

// metricColors maps the dominant metric index to a color.
var metricColors = []string{"#2563eb", "#16a34a", "#f59e0b"}

var metricIndex = map[analytics.Metric]int{
	analytics.MetricInquiries: 0,
	analytics.MetricSales:     1,
	analytics.MetricRentals:   2,
}

// Render writes an HTML page for snap to w. Datasets that are
// empty are left out of the page. rows caps the heatmap; <= 0
// selects the default.
func Render(w io.Writer, snap *analytics.Snapshot, rows int) error {
	if snap == nil {
		return errors.New("rendering report: nil snapshot")
	}

	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf(
		"EstateView analytics (%s)",
		snap.FetchedAt.UTC().Format("2006-01-02 15:04 MST"),
	))

	sales, err := salesChart(snap.Sales, snap.Granularity)
	switch {
	case errors.Is(err, analytics.ErrEmptyDataset):
	case err != nil:
		return err
	default:
		page.AddCharts(sales)
	}

	if len(snap.Locations) > 0 {
		page.AddCharts(locationChart(snap.Locations))
	}

	hm := analytics.BuildHeatmap(snap.Locations, rows)
	if !hm.Empty() {
		page.AddCharts(heatmapChart(hm))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

func baseOptions(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			TitleStyle: &opts.TextStyle{Color: textColor},
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show:  opts.Bool(true),
			Right: "10",
		}),
	}
}

// salesChart plots sales and rentals against the same rounded
// axis maximum the dashboard uses.
func salesChart(
	points []analytics.TimeSeriesPoint, g analytics.Granularity,
) (*charts.Line, error) {
	chart, err := analytics.BuildSalesChart(points)
	if err != nil {
		return nil, err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(append(
		baseOptions("Sales performance ("+string(g)+")"),
		charts.WithYAxisOpts(opts.YAxis{
			Name:        "Value",
			Min:         0,
			Max:         chart.Scale.Max,
			SplitNumber: analytics.TickCount - 1,
			AxisLabel:   &opts.AxisLabel{Color: textColor},
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Period",
			AxisLabel: &opts.AxisLabel{Color: textColor},
		}),
	)...)

	periods := lo.Map(chart.Points, func(p analytics.ChartPoint, _ int) string {
		return p.Period
	})
	primary := lo.Map(chart.Points, func(p analytics.ChartPoint, _ int) opts.LineData {
		return opts.LineData{Name: p.PrimaryLabel, Value: p.Primary}
	})
	secondary := lo.Map(chart.Points, func(p analytics.ChartPoint, _ int) opts.LineData {
		return opts.LineData{Name: p.SecondaryLabel, Value: p.Secondary}
	})

	smooth := charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)})
	line.SetXAxis(periods).
		AddSeries("Sales", primary, smooth).
		AddSeries("Rentals", secondary, smooth)
	return line, nil
}

func locationChart(locations []analytics.LocationMetric) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(
		baseOptions("Location performance"),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Color: textColor, Rotate: 30},
		}),
	)...)

	series := func(value func(analytics.LocationMetric) int) []opts.BarData {
		return lo.Map(locations, func(l analytics.LocationMetric, _ int) opts.BarData {
			return opts.BarData{Value: value(l)}
		})
	}
	cities := lo.Map(locations, func(l analytics.LocationMetric, _ int) string {
		return l.City
	})

	bar.SetXAxis(cities).
		AddSeries("Inquiries", series(func(l analytics.LocationMetric) int { return l.Inquiries })).
		AddSeries("Sales", series(func(l analytics.LocationMetric) int { return l.Sales })).
		AddSeries("Rentals", series(func(l analytics.LocationMetric) int { return l.Rentals }))
	return bar
}

// heatmapChart draws the tier x location grid. Cell values are
// metric indexes so the visual map colors them by dominant metric.
func heatmapChart(h analytics.Heatmap) *charts.HeatMap {
	tiers, codes, data := heatmapSeries(h)

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "Location heatmap",
			Subtitle:   fmt.Sprintf("tiers of max %d inquiries", h.MaxInquiries),
			TitleStyle: &opts.TextStyle{Color: textColor},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Tier",
			Type:      "category",
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Location",
			Type:      "category",
			Data:      codes,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min: 0,
			Max: float32(len(metricColors) - 1),
			InRange: &opts.VisualMapInRange{
				Color: metricColors,
			},
		}),
	)

	hm.SetXAxis(tiers).AddSeries("Dominant metric", data)
	return hm
}

// heatmapSeries lays out the grid on deduplicated tier and code
// axes, the same cells Heatmap.Cells reports.
func heatmapSeries(
	h analytics.Heatmap,
) (tiers, codes []string, data []opts.HeatMapData) {
	tiers = lo.Uniq(h.Tiers)
	codes = lo.Uniq(h.Codes)
	for yi, code := range codes {
		for xi, tier := range tiers {
			m := h.Grid[code][tier]
			data = append(data, opts.HeatMapData{
				Name:  string(m),
				Value: [3]interface{}{xi, yi, metricIndex[m]},
			})
		}
	}
	return tiers, codes, data
}
