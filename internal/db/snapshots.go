package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wesm/estateview/internal/analytics"
)

// timeLayout is fixed-width so fetched_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const (
	// DefaultSnapshotLimit is the default number of summaries listed.
	DefaultSnapshotLimit = 20
	// MaxSnapshotLimit is the maximum number of summaries listed.
	MaxSnapshotLimit = 500
)

const snapshotSummaryCols = `id, seq, fetched_at, granularity,
	filters, sales, locations, activities, has_response`

// SnapshotSummary describes a stored snapshot without its payload.
type SnapshotSummary struct {
	ID          string                `json:"id"`
	Seq         uint64                `json:"seq"`
	FetchedAt   time.Time             `json:"fetched_at"`
	Granularity analytics.Granularity `json:"granularity"`
	Filters     analytics.Filters     `json:"filters"`
	Counts      analytics.Counts      `json:"counts"`
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummaryRow(rs rowScanner) (SnapshotSummary, error) {
	var (
		s         SnapshotSummary
		fetchedAt string
		filters   string
	)
	err := rs.Scan(
		&s.ID, &s.Seq, &fetchedAt, &s.Granularity,
		&filters, &s.Counts.Sales, &s.Counts.Locations,
		&s.Counts.Activities, &s.Counts.HasResponse,
	)
	if err != nil {
		return s, err
	}
	if s.FetchedAt, err = time.Parse(timeLayout, fetchedAt); err != nil {
		return s, fmt.Errorf("parsing fetched_at: %w", err)
	}
	if err := json.Unmarshal([]byte(filters), &s.Filters); err != nil {
		return s, fmt.Errorf("decoding filters: %w", err)
	}
	return s, nil
}

// SaveSnapshot stores snap, replacing any row with the same ID.
func (db *DB) SaveSnapshot(
	ctx context.Context, snap *analytics.Snapshot,
) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("saving snapshot: missing id")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snap.ID, err)
	}
	filters, err := json.Marshal(snap.Filters)
	if err != nil {
		return fmt.Errorf("encoding filters: %w", err)
	}
	counts := snap.Counts()

	return db.Update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO snapshots (
				id, seq, fetched_at, granularity, filters,
				sales, locations, activities, has_response,
				payload
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.Seq,
			snap.FetchedAt.UTC().Format(timeLayout),
			string(snap.Granularity), string(filters),
			counts.Sales, counts.Locations, counts.Activities,
			counts.HasResponse, string(payload),
		)
		if err != nil {
			return fmt.Errorf("saving snapshot %s: %w", snap.ID, err)
		}
		return nil
	})
}

// LatestSnapshot returns the most recently fetched snapshot, or
// nil if none is stored.
func (db *DB) LatestSnapshot(
	ctx context.Context,
) (*analytics.Snapshot, error) {
	var payload string
	err := db.reader.QueryRowContext(ctx, `
		SELECT payload FROM snapshots
		ORDER BY fetched_at DESC, seq DESC
		LIMIT 1`,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

// GetSnapshot returns the snapshot with the given ID, or nil if
// it does not exist.
func (db *DB) GetSnapshot(
	ctx context.Context, id string,
) (*analytics.Snapshot, error) {
	var payload string
	err := db.reader.QueryRowContext(ctx,
		"SELECT payload FROM snapshots WHERE id = ?", id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot %s: %w", id, err)
	}
	return decodeSnapshot(payload)
}

func decodeSnapshot(payload string) (*analytics.Snapshot, error) {
	var snap analytics.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns summaries of stored snapshots, newest
// first. limit is clamped to [1, MaxSnapshotLimit].
func (db *DB) ListSnapshots(
	ctx context.Context, limit int,
) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	limit = min(limit, MaxSnapshotLimit)

	rows, err := db.reader.QueryContext(ctx,
		"SELECT "+snapshotSummaryCols+` FROM snapshots
		ORDER BY fetched_at DESC, seq DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]SnapshotSummary, error) {
	out := []SnapshotSummary{}
	for rows.Next() {
		s, err := scanSummaryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountSnapshots returns the number of stored snapshots.
func (db *DB) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	err := db.reader.QueryRowContext(ctx,
		"SELECT count(*) FROM snapshots",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// PruneFilter defines criteria for finding snapshots to prune.
// Filters combine with AND. At least one must be set.
type PruneFilter struct {
	Before time.Time // fetched_at < Before (zero = no filter)
	Keep   int       // always keep the newest Keep snapshots
}

// HasFilters reports whether at least one filter is set.
func (f PruneFilter) HasFilters() bool {
	return !f.Before.IsZero() || f.Keep > 0
}

// FindPruneCandidates returns summaries of snapshots matching
// all filter criteria, newest first.
func (db *DB) FindPruneCandidates(
	ctx context.Context, f PruneFilter,
) ([]SnapshotSummary, error) {
	if !f.HasFilters() {
		return nil, fmt.Errorf("at least one filter is required")
	}

	where := "1=1"
	args := []any{}

	if !f.Before.IsZero() {
		where += " AND fetched_at < ?"
		args = append(args, f.Before.UTC().Format(timeLayout))
	}
	if f.Keep > 0 {
		where += ` AND id NOT IN (
			SELECT id FROM snapshots
			ORDER BY fetched_at DESC, seq DESC
			LIMIT ?)`
		args = append(args, f.Keep)
	}

	rows, err := db.reader.QueryContext(ctx,
		"SELECT "+snapshotSummaryCols+
			" FROM snapshots WHERE "+where+`
		ORDER BY fetched_at DESC, seq DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("finding prune candidates: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// DeleteSnapshots removes multiple snapshots by ID in a single
// transaction. Batches DELETEs in groups of 500 to stay under
// SQLite variable limits. Returns count of deleted rows.
func (db *DB) DeleteSnapshots(
	ctx context.Context, ids []string,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	total := 0
	err := db.Update(ctx, func(tx *sql.Tx) error {
		const batchSize = 500
		for i := 0; i < len(ids); i += batchSize {
			end := min(i+batchSize, len(ids))
			batch := ids[i:end]

			args := make([]any, len(batch))
			for j, id := range batch {
				args[j] = id
			}
			placeholders := strings.Repeat(",?", len(batch))[1:]

			res, err := tx.ExecContext(ctx,
				"DELETE FROM snapshots WHERE id IN ("+placeholders+")",
				args...,
			)
			if err != nil {
				return fmt.Errorf("deleting batch: %w", err)
			}
			n, _ := res.RowsAffected()
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// PruneSnapshots deletes every snapshot matched by f and returns
// how many were removed.
func (db *DB) PruneSnapshots(
	ctx context.Context, f PruneFilter,
) (int, error) {
	candidates, err := db.FindPruneCandidates(ctx, f)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return db.DeleteSnapshots(ctx, ids)
}
