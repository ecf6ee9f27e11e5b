// Package sync fetches dashboard datasets into immutable
// snapshots and keeps the newest one current.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wesm/estateview/internal/analytics"
)

// DefaultActivityLimit is how many activity records a refresh
// asks for when the request names no limit.
const DefaultActivityLimit = 50

var (
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoSnapshot is returned before the first refresh lands.
	ErrNoSnapshot = errors.New("no snapshot available")
	// ErrSuperseded is returned by Refresh when a refresh issued
	// later has already published its result.
	ErrSuperseded = errors.New("refresh superseded by a newer one")
)

// FetchError reports a refresh whose joined reads did not all
// succeed. The whole cycle is discarded.
type FetchError struct {
	Seq     uint64
	Dataset string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Dataset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetchFailed) true for any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Source supplies the four datasets of a snapshot.
type Source interface {
	SalesPerformance(
		ctx context.Context, g analytics.Granularity,
	) ([]analytics.TimeSeriesPoint, error)
	LocationPerformance(
		ctx context.Context,
	) ([]analytics.LocationMetric, error)
	RecentActivity(
		ctx context.Context, limit int, f analytics.Filters,
	) ([]analytics.ActivityRecord, error)
	ResponseMetrics(
		ctx context.Context,
	) (*analytics.ResponseMetric, error)
}

// SnapshotStore persists published snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s *analytics.Snapshot) error
}

// Request parameterizes one refresh.
type Request struct {
	Granularity   analytics.Granularity `json:"granularity"`
	Filters       analytics.Filters     `json:"filters"`
	ActivityLimit int                   `json:"activity_limit"`
}

func (r Request) normalized() Request {
	if r.Granularity == "" {
		r.Granularity = analytics.DefaultGranularity
	}
	if r.ActivityLimit <= 0 {
		r.ActivityLimit = DefaultActivityLimit
	}
	return r
}

// State is a point-in-time view of the engine.
type State struct {
	Snapshot   *analytics.Snapshot
	Err        error
	Refreshing bool
	IssuedSeq  uint64
	AppliedSeq uint64
	Request    Request
	Progress   Progress
}

// Engine runs refreshes and holds the current snapshot. Every
// refresh takes a sequence number when it starts; a finished
// refresh is published only if no refresh issued after it has
// already been published, so a slow stale response never
// replaces newer data.
type Engine struct {
	source Source
	store  SnapshotStore

	seq atomic.Uint64

	mu       gosync.RWMutex
	snapshot *analytics.Snapshot
	err      error
	applied  uint64
	inflight int
	request  Request
	progress Progress

	now   func() time.Time
	newID func() string
}

// NewEngine creates an Engine reading from source. store may be
// nil to disable persistence.
func NewEngine(source Source, store SnapshotStore) *Engine {
	return &Engine{
		source:   source,
		store:    store,
		request:  Request{}.normalized(),
		progress: Progress{Phase: PhaseIdle, DatasetsTotal: datasetCount},
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Refresh fetches all four datasets concurrently and, if every
// read succeeds, publishes them as one snapshot. Any failure
// discards the cycle and publishes a *FetchError instead. There
// is no retry. onProgress may be nil.
func (e *Engine) Refresh(
	ctx context.Context, req Request, onProgress ProgressFunc,
) (*analytics.Snapshot, error) {
	req = req.normalized()
	seq := e.seq.Add(1)

	e.mu.Lock()
	e.inflight++
	e.request = req
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inflight--
		e.mu.Unlock()
	}()

	report := e.reporter(seq, onProgress)
	report(Progress{Phase: PhaseFetching})

	snap, err := e.fetch(ctx, seq, req, report)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{Dataset: "snapshot", Err: err}
		}
		fe.Seq = seq
		log.Printf("refresh %d failed: %v", seq, fe)
		report(Progress{Phase: PhaseFailed, Dataset: fe.Dataset})
		if !e.publish(seq, nil, fe) {
			return nil, ErrSuperseded
		}
		return nil, fe
	}

	if !e.publish(seq, snap, nil) {
		log.Printf("refresh %d: dropping stale snapshot", seq)
		return nil, ErrSuperseded
	}
	report(Progress{Phase: PhaseDone, DatasetsDone: datasetCount})

	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, snap); err != nil {
			log.Printf("refresh %d: saving snapshot: %v", seq, err)
		}
	}
	return snap, nil
}

// fetch fans the four reads out and joins them. The first failure
// cancels the others.
func (e *Engine) fetch(
	ctx context.Context, seq uint64, req Request,
	report func(Progress),
) (*analytics.Snapshot, error) {
	var (
		sales      []analytics.TimeSeriesPoint
		locations  []analytics.LocationMetric
		activities []analytics.ActivityRecord
		response   *analytics.ResponseMetric
		done       atomic.Int32
	)

	g, gctx := errgroup.WithContext(ctx)
	run := func(dataset string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				return &FetchError{Dataset: dataset, Err: err}
			}
			report(Progress{
				Phase:        PhaseFetching,
				Dataset:      dataset,
				DatasetsDone: int(done.Add(1)),
			})
			return nil
		})
	}

	run(DatasetSales, func() (err error) {
		sales, err = e.source.SalesPerformance(gctx, req.Granularity)
		return err
	})
	run(DatasetLocations, func() (err error) {
		locations, err = e.source.LocationPerformance(gctx)
		return err
	})
	run(DatasetActivities, func() (err error) {
		activities, err = e.source.RecentActivity(
			gctx, req.ActivityLimit, req.Filters,
		)
		return err
	})
	run(DatasetResponse, func() (err error) {
		response, err = e.source.ResponseMetrics(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &analytics.Snapshot{
		ID:          e.newID(),
		Seq:         seq,
		FetchedAt:   e.now().UTC(),
		Granularity: req.Granularity,
		Filters:     req.Filters,
		Sales:       orEmpty(sales),
		Locations:   orEmpty(locations),
		Activities:  orEmpty(activities),
		Response:    response,
	}, nil
}

// publish installs the outcome of refresh seq unless a later
// refresh has already been installed.
func (e *Engine) publish(
	seq uint64, snap *analytics.Snapshot, err error,
) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq < e.applied {
		return false
	}
	e.applied = seq
	e.snapshot = snap
	e.err = err
	return true
}

// reporter returns a progress callback stamped with seq that
// also records the latest progress for State.
func (e *Engine) reporter(
	seq uint64, onProgress ProgressFunc,
) func(Progress) {
	return func(p Progress) {
		p.Seq = seq
		p.DatasetsTotal = datasetCount
		e.mu.Lock()
		if seq >= e.progress.Seq {
			e.progress = p
		}
		e.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}
}

// Current returns the published snapshot. It returns the
// *FetchError of the newest refresh if that one failed, or
// ErrNoSnapshot if nothing has been published.
func (e *Engine) Current() (*analytics.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.err != nil {
		return nil, e.err
	}
	if e.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return e.snapshot, nil
}

// State returns a copy of the engine's current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Snapshot:   e.snapshot,
		Err:        e.err,
		Refreshing: e.inflight > 0,
		IssuedSeq:  e.seq.Load(),
		AppliedSeq: e.applied,
		Request:    e.request,
		Progress:   e.progress,
	}
}

// LastRequest returns the parameters of the most recently issued
// refresh, for periodic and config-triggered refreshes.
func (e *Engine) LastRequest() Request {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.request
}

// Restore seeds the engine with a previously persisted snapshot.
// It is a no-op once any refresh has published.
func (e *Engine) Restore(snap *analytics.Snapshot) {
	if snap == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.applied > 0 || e.snapshot != nil {
		return
	}
	e.snapshot = snap
	e.request = Request{
		Granularity: snap.Granularity,
		Filters:     snap.Filters,
	}.normalized()
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
