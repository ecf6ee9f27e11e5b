package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/wesm/estateview/internal/analytics"
)

// maxHeatmapRows bounds the rows query parameter.
const maxHeatmapRows = 100

type salesResponse struct {
	Snapshot snapshotMeta          `json:"snapshot"`
	Empty    bool                  `json:"empty"`
	Chart    *analytics.SalesChart `json:"chart"`
}

func (s *Server) handleSales(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	resp := salesResponse{Snapshot: metaOf(snap)}
	chart, err := analytics.BuildSalesChart(snap.Sales)
	switch {
	case errors.Is(err, analytics.ErrEmptyDataset):
		resp.Empty = true
	case err != nil:
		log.Printf("analytics error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	default:
		resp.Chart = &chart
	}
	writeJSON(w, http.StatusOK, resp)
}

type heatmapResponse struct {
	Snapshot snapshotMeta            `json:"snapshot"`
	Empty    bool                    `json:"empty"`
	Rows     int                     `json:"rows"`
	Heatmap  analytics.Heatmap       `json:"heatmap"`
	Cells    []analytics.HeatmapCell `json:"cells"`
}

func (s *Server) handleHeatmap(
	w http.ResponseWriter, r *http.Request,
) {
	rows := s.heatmapRows()
	if v := r.URL.Query().Get("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHeatmapRows {
			writeError(w, http.StatusBadRequest,
				"rows must be 1-100")
			return
		}
		rows = n
	}

	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	h := analytics.BuildHeatmap(snap.Locations, rows)
	writeJSON(w, http.StatusOK, heatmapResponse{
		Snapshot: metaOf(snap),
		Empty:    h.Empty(),
		Rows:     rows,
		Heatmap:  h,
		Cells:    h.Cells(),
	})
}

// locationRow is a location with display labels for each count.
type locationRow struct {
	analytics.LocationMetric
	PropertiesLabel string `json:"properties_label"`
	InquiriesLabel  string `json:"inquiries_label"`
}

func (s *Server) handleLocations(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	rows := make([]locationRow, len(snap.Locations))
	for i, l := range snap.Locations {
		rows[i] = locationRow{
			LocationMetric:  l,
			PropertiesLabel: analytics.Count(l.Properties),
			InquiriesLabel:  analytics.Count(l.Inquiries),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  metaOf(snap),
		"empty":     len(rows) == 0,
		"locations": rows,
	})
}

func (s *Server) handleActivities(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	activityType := q.Get("type")
	status := q.Get("status")
	filtered := analytics.FilterActivities(
		snap.Activities, activityType, status,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":   metaOf(snap),
		"empty":      len(snap.Activities) == 0,
		"type":       orAll(activityType),
		"status":     orAll(status),
		"total":      len(snap.Activities),
		"count":      len(filtered),
		"activities": filtered,
	})
}

func (s *Server) handleActivityOptions(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"types": append(
			[]string{analytics.All},
			analytics.ActivityTypes(snap.Activities)...,
		),
		"statuses": append(
			[]string{analytics.All},
			analytics.Statuses(snap.Activities)...,
		),
	})
}

type responseLabels struct {
	Average string `json:"average"`
	Fastest string `json:"fastest"`
	Slowest string `json:"slowest"`
}

func (s *Server) handleResponse(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	var labels *responseLabels
	if m := snap.Response; m != nil {
		labels = &responseLabels{
			Average: analytics.Minutes(m.AvgResponseTime),
			Fastest: analytics.Minutes(m.FastestResponse),
			Slowest: analytics.Minutes(m.SlowestResponse),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": metaOf(snap),
		"empty":    snap.Response == nil,
		"response": snap.Response,
		"labels":   labels,
	})
}

func orAll(v string) string {
	if v == "" {
		return analytics.All
	}
	return v
}
