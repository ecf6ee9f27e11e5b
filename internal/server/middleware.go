package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

// errorBody is the JSON envelope of every error response.
type errorBody struct {
	Error string `json:"error"`
	Retry string `json:"retry,omitempty"`
}

// timeoutMessage is the body http.TimeoutHandler writes when a
// view handler overruns the write timeout.
var timeoutMessage = func() string {
	b, _ := json.Marshal(errorBody{Error: "request timed out"})
	return string(b)
}()

// withTimeout bounds a view handler by the configured write
// timeout. Overruns answer 503 with a JSON error body.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	if d := s.handlerDelay; d > 0 {
		inner := h
		h = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(d)
			inner(w, r)
		}
	}

	s.mu.RLock()
	timeout := s.cfg.WriteTimeout
	s.mu.RUnlock()
	th := http.TimeoutHandler(h, timeout, timeoutMessage)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		th.ServeHTTP(&unavailableAsJSON{ResponseWriter: w}, r)
	})
}

// unavailableAsJSON labels a 503 response as JSON unless the
// handler already chose a Content-Type. http.TimeoutHandler
// writes its message without one.
type unavailableAsJSON struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *unavailableAsJSON) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	h := w.ResponseWriter.Header()
	if code == http.StatusServiceUnavailable && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *unavailableAsJSON) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// corsHeaders are set on every /api/ response.
var corsHeaders = [][2]string{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "Content-Type, Accept"},
}

// corsMiddleware opens the API to browser clients on other
// origins and answers preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		for _, kv := range corsHeaders {
			w.Header().Set(kv[0], kv[1])
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logMiddleware logs method, path, status and latency of API
// requests once they complete.
func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status,
			time.Since(start).Round(time.Microsecond))
	})
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// statusRecorder remembers the first status code written. It
// forwards flushes and unwraps to the underlying writer so SSE
// refresh streams keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// FlushError is the hook http.ResponseController uses for Flush.
func (r *statusRecorder) FlushError() error {
	err := http.NewResponseController(r.ResponseWriter).Flush()
	if err == nil && r.status == 0 {
		r.status = http.StatusOK
	}
	return err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
