package analytics

import (
	"strconv"
	"strings"
	"time"
)

const (
	sectionSales     = "SALES PERFORMANCE"
	sectionLocations = "LOCATION PERFORMANCE"
	sectionActivity  = "RECENT ACTIVITIES"
	sectionResponse  = "RESPONSE METRICS"

	missingPeriod = "N/A"
)

// ExportFilename is the download name of a combined export
// produced at t.
func ExportFilename(t time.Time) string {
	return "complete-analytics-" + t.UTC().Format("2006-01-02") + ".csv"
}

// BuildExport serializes the datasets of one snapshot into a
// single multi-section CSV document. Sections appear in a fixed
// order, separated by a blank line, each with a title line, a
// column row and one row per record in input order. The
// response section is omitted when response is nil. The output
// depends only on its inputs.
func BuildExport(
	sales []TimeSeriesPoint,
	locations []LocationMetric,
	activities []ActivityRecord,
	response *ResponseMetric,
) string {
	var b strings.Builder
	w := exportWriter{b: &b}

	w.section(sectionSales, "Period", "Sales", "Rentals")
	for _, p := range sales {
		period := p.Period
		if period == "" {
			period = missingPeriod
		}
		w.row(text(period), number(p.Primary), number(p.Secondary))
	}

	w.blank()
	w.section(sectionLocations,
		"City", "Properties", "Inquiries", "Sales", "Rentals")
	for _, l := range locations {
		w.row(text(l.City), integer(l.Properties),
			integer(l.Inquiries), integer(l.Sales), integer(l.Rentals))
	}

	w.blank()
	w.section(sectionActivity, "Activity Type", "Property",
		"Description", "Admin", "Timestamp", "Status")
	for _, a := range activities {
		w.row(quoted(a.ActivityType), quoted(a.PropertyName),
			quoted(a.Description), quoted(a.AdminName),
			quoted(a.Timestamp), quoted(a.Status))
	}

	if response != nil {
		w.blank()
		w.section(sectionResponse, "Metric", "Minutes")
		w.row(text("Average Response Time"),
			number(response.AvgResponseTime))
		w.row(text("Fastest Response"),
			number(response.FastestResponse))
		w.row(text("Slowest Response"),
			number(response.SlowestResponse))
	}
	return b.String()
}

type exportWriter struct {
	b *strings.Builder
}

func (w exportWriter) section(title string, columns ...string) {
	w.b.WriteString(title)
	w.b.WriteByte('\n')
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = text(c)
	}
	w.row(cells...)
}

func (w exportWriter) row(cells ...string) {
	w.b.WriteString(strings.Join(cells, ","))
	w.b.WriteByte('\n')
}

func (w exportWriter) blank() {
	w.b.WriteByte('\n')
}

// quoted always wraps s in double quotes, doubling embedded ones.
func quoted(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// text quotes s only when it holds a separator, quote or newline.
func text(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quoted(s)
	}
	return s
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func integer(v int) string {
	return strconv.Itoa(v)
}
