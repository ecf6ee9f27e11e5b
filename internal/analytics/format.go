package analytics

import (
	"math"
	"strconv"
)

const (
	thousand     = 1_000
	tenthMillion = 100_000
	million      = 1_000_000
)

// roundHalfUp rounds to the nearest integer with halves going
// toward +Inf, matching the dashboard's rounding.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Magnitude renders v as a compact label: "1.5M", "2M", "450K".
// Values of a million or more keep one decimal, rounded half up
// from the raw value, unless v is an exact multiple of a million;
// smaller values are rounded to whole thousands. Axis ticks and
// tooltips both use it. Ties are judged on the decimal value, so
// 1,950,000 renders "2.0M" even though 1.95 has no exact binary
// form. It suits money volumes only; see Count and Minutes.
func Magnitude(v float64) string {
	if v >= million {
		if math.Mod(v, million) == 0 {
			return strconv.FormatFloat(v/million, 'f', 0, 64) + "M"
		}
		tenths := roundHalfUp(v / tenthMillion)
		return strconv.FormatFloat(tenths/10, 'f', 1, 64) + "M"
	}
	return strconv.FormatFloat(roundHalfUp(v/thousand), 'f', 0, 64) + "K"
}

// Count renders a whole count such as properties or inquiries.
func Count(n int) string {
	return strconv.Itoa(n)
}

// Minutes renders a response time in minutes with the shortest
// exact decimal: "12.5 min", "2 min".
func Minutes(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " min"
}

// MagnitudePtr is Magnitude for optional values; nil renders "-".
func MagnitudePtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return Magnitude(*v)
}

// TickLabels formats each tick with Magnitude.
func TickLabels(ticks []float64) []string {
	labels := make([]string, len(ticks))
	for i, t := range ticks {
		labels[i] = Magnitude(t)
	}
	return labels
}
