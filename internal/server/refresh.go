package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/db"
	"github.com/wesm/estateview/internal/sync"
)

// refreshBody is the optional JSON body of POST /api/v1/refresh.
// Omitted fields keep the values of the previous refresh.
type refreshBody struct {
	Granularity   *string `json:"granularity"`
	PropertyType  *string `json:"propertyType"`
	Location      *string `json:"location"`
	DateRange     *string `json:"dateRange"`
	ActivityLimit *int    `json:"activityLimit"`
}

// parseRefreshRequest merges the body and query parameters over
// the engine's last request. Query parameters win over the body.
func (s *Server) parseRefreshRequest(
	r *http.Request,
) (sync.Request, error) {
	req := s.engine.LastRequest()

	var body refreshBody
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			return req, errors.New("reading request body")
		}
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				return req, errors.New("invalid JSON body")
			}
		}
	}

	q := r.URL.Query()
	pick := func(key string, fromBody *string) *string {
		if q.Has(key) {
			v := q.Get(key)
			return &v
		}
		return fromBody
	}

	if v := pick("granularity", body.Granularity); v != nil {
		g, err := analytics.ParseGranularity(*v)
		if err != nil {
			return req, err
		}
		req.Granularity = g
	}
	if v := pick("propertyType", body.PropertyType); v != nil {
		req.Filters.PropertyType = *v
	}
	if v := pick("location", body.Location); v != nil {
		req.Filters.Location = *v
	}
	if v := pick("dateRange", body.DateRange); v != nil {
		req.Filters.DateRange = *v
	}
	if err := req.Filters.Validate(); err != nil {
		return req, err
	}

	limit := body.ActivityLimit
	if q.Has("activityLimit") {
		n, err := strconv.Atoi(q.Get("activityLimit"))
		if err != nil {
			return req, errors.New("activityLimit must be a number")
		}
		limit = &n
	}
	if limit != nil {
		if *limit < 1 {
			return req, errors.New("activityLimit must be positive")
		}
		req.ActivityLimit = *limit
	}
	return req, nil
}

type refreshResponse struct {
	Snapshot snapshotMeta     `json:"snapshot"`
	Counts   analytics.Counts `json:"counts"`
}

func (s *Server) handleRefresh(
	w http.ResponseWriter, r *http.Request,
) {
	req, err := s.parseRefreshRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		if stream, err := openEventStream(w); err == nil {
			s.streamRefresh(r, req, stream)
			return
		}
	}

	// A client hanging up must not turn into a failed cycle that
	// clears the published snapshot.
	ctx := context.WithoutCancel(r.Context())
	snap, err := s.engine.Refresh(ctx, req, nil)
	if err != nil {
		writeRefreshError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Snapshot: metaOf(snap),
		Counts:   snap.Counts(),
	})
}

// streamRefresh runs a refresh, sending "progress" events and a
// final "done" or "error" event.
func (s *Server) streamRefresh(
	r *http.Request, req sync.Request, stream *eventStream,
) {
	snap, err := s.engine.Refresh(
		context.WithoutCancel(r.Context()), req,
		func(p sync.Progress) {
			_ = stream.send("progress", p)
		},
	)
	if err != nil {
		_ = stream.send("error", errorBody{
			Error: err.Error(),
			Retry: refreshPath,
		})
		return
	}
	if err := stream.send("done", refreshResponse{
		Snapshot: metaOf(snap),
		Counts:   snap.Counts(),
	}); err != nil {
		log.Printf("refresh %s: client missed done event: %v",
			snap.ID, err)
	}
}

func writeRefreshError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sync.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sync.ErrFetchFailed):
		writeSnapshotError(w, err)
	default:
		log.Printf("refresh error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
	}
}

type statusResponse struct {
	Refreshing bool              `json:"refreshing"`
	IssuedSeq  uint64            `json:"issued_seq"`
	AppliedSeq uint64            `json:"applied_seq"`
	Request    sync.Request      `json:"request"`
	Progress   sync.Progress     `json:"progress"`
	Snapshot   *snapshotMeta     `json:"snapshot"`
	Counts     *analytics.Counts `json:"counts,omitempty"`
	Error      string            `json:"error,omitempty"`
	Retry      string            `json:"retry,omitempty"`
	Persisted  bool              `json:"persisted"`
}

func (s *Server) handleStatus(
	w http.ResponseWriter, r *http.Request,
) {
	st := s.engine.State()
	resp := statusResponse{
		Refreshing: st.Refreshing,
		IssuedSeq:  st.IssuedSeq,
		AppliedSeq: st.AppliedSeq,
		Request:    st.Request,
		Progress:   st.Progress,
		Persisted:  s.db != nil,
	}
	if st.Snapshot != nil {
		meta := metaOf(st.Snapshot)
		counts := st.Snapshot.Counts()
		resp.Snapshot = &meta
		resp.Counts = &counts
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
		resp.Retry = refreshPath
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSnapshots(
	w http.ResponseWriter, r *http.Request,
) {
	limit := db.DefaultSnapshotLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > db.MaxSnapshotLimit {
			writeError(w, http.StatusBadRequest,
				"limit must be 1-500")
			return
		}
		limit = n
	}

	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"persisted": false,
			"snapshots": []db.SnapshotSummary{},
		})
		return
	}

	list, err := s.db.ListSnapshots(r.Context(), limit)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		log.Printf("snapshots error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"persisted": true,
		"snapshots": list,
	})
}
