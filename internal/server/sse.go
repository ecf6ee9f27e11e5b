package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	gosync "sync"
	"time"
)

const sseWriteTimeout = 3 * time.Second

// errStreamClosed is returned by send after an earlier write to
// the client failed.
var errStreamClosed = errors.New("event stream closed")

// eventStream writes refresh events as Server-Sent Events. Each
// event carries an increasing id. send is safe for concurrent use
// since progress arrives from several fetch goroutines at once.
type eventStream struct {
	mu     gosync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	lastID int
	closed bool
}

// openEventStream sends the SSE response headers. It fails
// without writing anything when w cannot flush, leaving the
// caller free to answer with plain JSON.
func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.Del("Content-Type")
		h.Del("Cache-Control")
		h.Del("Connection")
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &eventStream{w: w, rc: rc}, nil
}

// send writes one event with v encoded as JSON data. A stalled
// client is cut off after sseWriteTimeout and every later send
// returns errStreamClosed.
func (s *eventStream) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}

	_ = s.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	defer func() { _ = s.rc.SetWriteDeadline(time.Time{}) }()

	s.lastID++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n",
		s.lastID, event, data); err != nil {
		s.closed = true
		log.Printf("SSE write error for %q: %v", event, err)
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.closed = true
		return err
	}
	return nil
}
