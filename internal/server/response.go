package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/sync"
)

// refreshPath is returned as the retry affordance of fetch
// failures.
const refreshPath = "/api/v1/refresh"

// writeJSON writes v as JSON with the given HTTP status code.
// Logs a warning if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encoding response: %v", err)
	}
}

// writeError writes a JSON error response with the given status
// and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// handleContextError detects context.Canceled and
// context.DeadlineExceeded errors, returning true so the
// caller stops processing. It does NOT write an HTTP
// response: the withTimeout middleware handles that via
// http.TimeoutHandler (503). Writing here would race with
// the middleware's buffered response.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// writeSnapshotError maps an engine error to a response. Fetch
// failures are 502 with a retry link; no snapshot yet is 503.
func writeSnapshotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sync.ErrFetchFailed):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error: err.Error(),
			Retry: refreshPath,
		})
	case errors.Is(err, sync.ErrNoSnapshot):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: err.Error(),
			Retry: refreshPath,
		})
	default:
		log.Printf("snapshot error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
	}
}

// currentSnapshot returns the published snapshot, writing the
// error response and returning false when there is none.
func (s *Server) currentSnapshot(
	w http.ResponseWriter,
) (*analytics.Snapshot, bool) {
	snap, err := s.engine.Current()
	if err != nil {
		writeSnapshotError(w, err)
		return nil, false
	}
	return snap, true
}

// snapshotMeta identifies the snapshot a view was derived from.
type snapshotMeta struct {
	ID          string                `json:"id"`
	Seq         uint64                `json:"seq"`
	FetchedAt   string                `json:"fetched_at"`
	Granularity analytics.Granularity `json:"granularity"`
	Filters     analytics.Filters     `json:"filters"`
}

func metaOf(snap *analytics.Snapshot) snapshotMeta {
	return snapshotMeta{
		ID:          snap.ID,
		Seq:         snap.Seq,
		FetchedAt:   snap.FetchedAt.UTC().Format(time.RFC3339),
		Granularity: snap.Granularity,
		Filters:     snap.Filters,
	}
}
