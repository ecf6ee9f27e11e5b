package analytics

import (
	"strconv"

	"github.com/samber/lo"
)

// Metric names the dominant measure of a heatmap cell.
type Metric string

const (
	MetricInquiries Metric = "inquiries"
	MetricSales     Metric = "sales"
	MetricRentals   Metric = "rentals"
)

// DefaultHeatmapRows caps how many locations enter the grid.
const DefaultHeatmapRows = 9

// codeLength is the number of leading runes of a city name used
// as its location code.
const codeLength = 3

// tierFractions are the tier thresholds as fractions of the
// largest inquiry count, highest first.
var tierFractions = []float64{1.0, 0.8, 0.6, 0.4, 0.2, 0.1}

// HeatmapCell is one classified (location, tier) pair.
type HeatmapCell struct {
	LocationCode   string `json:"location_code"`
	Tier           string `json:"tier"`
	DominantMetric Metric `json:"dominant_metric"`
}

// Heatmap is the tier × location grid of the location heatmap.
// Grid is keyed by location code, then tier label.
//
// Codes are the first three runes of each city and may collide;
// colliding codes repeat in Codes and the later location's row
// replaces the earlier one in Grid.
type Heatmap struct {
	Codes []string                     `json:"codes"`
	Tiers []string                     `json:"tiers"`
	Grid  map[string]map[string]Metric `json:"grid"`

	// Tiers derive from MaxInquiries only. The sales and rentals
	// maxima are reported but never drive thresholds.
	MaxInquiries int `json:"max_inquiries"`
	MaxSales     int `json:"max_sales"`
	MaxRentals   int `json:"max_rentals"`
}

// BuildHeatmap buckets the first maxRows locations, in input
// order, against tiers derived from the largest inquiry count of
// all locations. maxRows <= 0 selects DefaultHeatmapRows. An
// empty input yields an empty (non-nil) heatmap.
func BuildHeatmap(locations []LocationMetric, maxRows int) Heatmap {
	h := Heatmap{
		Codes: []string{},
		Tiers: []string{},
		Grid:  map[string]map[string]Metric{},
	}
	if len(locations) == 0 {
		return h
	}
	if maxRows <= 0 {
		maxRows = DefaultHeatmapRows
	}

	h.MaxInquiries = lo.MaxBy(locations, func(a, b LocationMetric) bool {
		return a.Inquiries > b.Inquiries
	}).Inquiries
	h.MaxSales = lo.MaxBy(locations, func(a, b LocationMetric) bool {
		return a.Sales > b.Sales
	}).Sales
	h.MaxRentals = lo.MaxBy(locations, func(a, b LocationMetric) bool {
		return a.Rentals > b.Rentals
	}).Rentals

	tierValues := make([]int, len(tierFractions))
	for i, frac := range tierFractions {
		tierValues[i] = int(roundHalfUp(float64(h.MaxInquiries) * frac))
		h.Tiers = append(h.Tiers, strconv.Itoa(tierValues[i]))
	}

	for _, loc := range locations[:min(maxRows, len(locations))] {
		code := LocationCode(loc.City)
		h.Codes = append(h.Codes, code)
		row := make(map[string]Metric, len(tierValues))
		for i, tv := range tierValues {
			row[h.Tiers[i]] = Classify(loc, tv)
		}
		h.Grid[code] = row
	}
	return h
}

// Classify picks the dominant metric of loc at a tier threshold:
// inquiries if they reach it, else sales if they reach half of
// it, else rentals.
func Classify(loc LocationMetric, tierValue int) Metric {
	if loc.Inquiries >= tierValue {
		return MetricInquiries
	}
	if float64(loc.Sales) >= float64(tierValue)*0.5 {
		return MetricSales
	}
	return MetricRentals
}

// LocationCode abbreviates a city to its first three runes.
func LocationCode(city string) string {
	r := []rune(city)
	if len(r) > codeLength {
		r = r[:codeLength]
	}
	return string(r)
}

// Cells flattens the grid in code order, then tier order.
// Repeated codes and tiers are emitted once.
func (h Heatmap) Cells() []HeatmapCell {
	codes := lo.Uniq(h.Codes)
	tiers := lo.Uniq(h.Tiers)
	cells := make([]HeatmapCell, 0, len(codes)*len(tiers))
	for _, code := range codes {
		row := h.Grid[code]
		for _, tier := range tiers {
			cells = append(cells, HeatmapCell{
				LocationCode:   code,
				Tier:           tier,
				DominantMetric: row[tier],
			})
		}
	}
	return cells
}

// Empty reports whether the heatmap has no rows.
func (h Heatmap) Empty() bool {
	return len(h.Codes) == 0
}
