package server

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/report"
)

func (s *Server) handleExport(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	filename := analytics.ExportFilename(s.now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, filename),
	)
	_, _ = io.WriteString(w, snap.Export())
}

func (s *Server) handleReport(
	w http.ResponseWriter, r *http.Request,
) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	// Render to a buffer first so a failure can still become a
	// JSON error.
	var buf bytes.Buffer
	if err := report.Render(&buf, snap, s.heatmapRows()); err != nil {
		log.Printf("report error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
