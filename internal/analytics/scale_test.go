package analytics

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScale(t *testing.T) {
	tests := []struct {
		name   string
		points []TimeSeriesPoint
		want   Scale
	}{
		{
			name: "single point",
			points: []TimeSeriesPoint{
				{Period: "Jan", Primary: 450_000, Secondary: 100_000},
			},
			want: Scale{
				Max: 600_000,
				Ticks: []float64{
					0, 120_000, 240_000, 360_000, 480_000, 600_000,
				},
			},
		},
		{
			name: "secondary drives max",
			points: []TimeSeriesPoint{
				{Period: "Jan", Primary: 10_000, Secondary: 20_000},
				{Period: "Feb", Primary: 30_000, Secondary: 810_000},
			},
			want: Scale{
				Max: 1_000_000,
				Ticks: []float64{
					0, 200_000, 400_000, 600_000, 800_000, 1_000_000,
				},
			},
		},
		{
			name: "exact boundary is not bumped",
			points: []TimeSeriesPoint{
				{Period: "Jan", Primary: 400_000},
			},
			want: Scale{
				Max: 400_000,
				Ticks: []float64{
					0, 80_000, 160_000, 240_000, 320_000, 400_000,
				},
			},
		},
		{
			name: "all zero",
			points: []TimeSeriesPoint{
				{Period: "Jan"}, {Period: "Feb"},
			},
			want: Scale{Max: 0, Ticks: []float64{0, 0, 0, 0, 0, 0}},
		},
		{
			name: "small value rounds up to one step",
			points: []TimeSeriesPoint{
				{Period: "Jan", Primary: 1},
			},
			want: Scale{
				Max: 200_000,
				Ticks: []float64{
					0, 40_000, 80_000, 120_000, 160_000, 200_000,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeScale(tt.points)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ComputeScale() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeScaleEmpty(t *testing.T) {
	_, err := ComputeScale(nil)
	assert.True(t, errors.Is(err, ErrEmptyDataset))
}

func TestComputeScaleTicksInvariants(t *testing.T) {
	points := []TimeSeriesPoint{
		{Period: "Q1", Primary: 1_234_567, Secondary: 87_000},
		{Period: "Q2", Primary: 2_345_678, Secondary: 99_000},
	}
	got, err := ComputeScale(points)
	require.NoError(t, err)
	require.Len(t, got.Ticks, TickCount)
	assert.Equal(t, 0.0, got.Ticks[0])
	assert.Equal(t, got.Max, got.Ticks[TickCount-1])
	for i := 1; i < len(got.Ticks); i++ {
		assert.GreaterOrEqual(t, got.Ticks[i], got.Ticks[i-1])
	}

	again, err := ComputeScale(points)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestBuildSalesChart(t *testing.T) {
	points := []TimeSeriesPoint{
		{Period: "Jan", Primary: 300_000, Secondary: 150_000},
		{Period: "Feb", Primary: 1_500_000, Secondary: 0},
	}
	chart, err := BuildSalesChart(points)
	require.NoError(t, err)

	assert.Equal(t, 1_600_000.0, chart.Scale.Max)
	assert.Equal(t,
		[]string{"0K", "320K", "640K", "960K", "1.3M", "1.6M"},
		chart.TickLabels,
	)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, "Jan", chart.Points[0].Period)
	assert.Equal(t, "Feb", chart.Points[1].Period)
	assert.InDelta(t, 0.1875, chart.Points[0].PrimaryRatio, 1e-9)
	assert.InDelta(t, 0.9375, chart.Points[1].PrimaryRatio, 1e-9)
	assert.Equal(t, "300K", chart.Points[0].PrimaryLabel)
	assert.Equal(t, "1.5M", chart.Points[1].PrimaryLabel)
	assert.Equal(t, "0K", chart.Points[1].SecondaryLabel)
}

func TestBuildSalesChartZeroMax(t *testing.T) {
	chart, err := BuildSalesChart([]TimeSeriesPoint{{Period: "Jan"}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, chart.Points[0].PrimaryRatio)
	assert.Equal(t, 0.0, chart.Points[0].SecondaryRatio)
}

func TestBuildSalesChartEmpty(t *testing.T) {
	_, err := BuildSalesChart([]TimeSeriesPoint{})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}
