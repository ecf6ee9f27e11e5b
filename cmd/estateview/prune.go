package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/db"
)

// PruneConfig holds parsed CLI options for the prune command.
type PruneConfig struct {
	Filter db.PruneFilter
	DryRun bool
	Yes    bool
}

// pruneFlags are the raw prune command flags.
type pruneFlags struct {
	before string
	keep   int
	dryRun bool
	yes    bool
}

// parseBefore accepts a date (YYYY-MM-DD, local midnight) or an
// RFC 3339 timestamp.
func parseBefore(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf(
			"invalid --before %q: want YYYY-MM-DD or RFC 3339", s,
		)
	}
	return t, nil
}

func (f pruneFlags) config() (PruneConfig, error) {
	if f.keep < 0 {
		return PruneConfig{}, fmt.Errorf("keep must be >= 0")
	}

	cfg := PruneConfig{
		Filter: db.PruneFilter{Keep: f.keep},
		DryRun: f.dryRun,
		Yes:    f.yes,
	}
	if f.before != "" {
		t, err := parseBefore(f.before)
		if err != nil {
			return PruneConfig{}, err
		}
		cfg.Filter.Before = t
	}

	if !cfg.Filter.HasFilters() {
		return PruneConfig{}, fmt.Errorf(
			"at least one filter is required\n" +
				"use --before or --keep",
		)
	}
	return cfg, nil
}

func newPruneCmd() *cobra.Command {
	var flags pruneFlags
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored snapshots matching filters",
		Long: `Delete stored snapshots. Filters combine with AND and at
least one is required.

Examples:
  # Keep only the 10 newest snapshots
  estateview prune --keep 10

  # Show what fetched before March would be deleted
  estateview prune --before 2024-03-01 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pcfg, err := flags.config()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			pruner := &Pruner{
				DB:  database,
				Out: cmd.OutOrStdout(),
				In:  cmd.InOrStdin(),
			}
			return pruner.Prune(cmd.Context(), pcfg)
		},
	}
	cmd.Flags().StringVar(&flags.before, "before", "",
		"Snapshots fetched before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&flags.keep, "keep", 0,
		"Always keep the newest N snapshots")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false,
		"Show what would be pruned without deleting")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false,
		"Skip confirmation prompt")
	return cmd
}

// Pruner executes the prune workflow against a database.
type Pruner struct {
	DB  *db.DB
	Out io.Writer
	In  io.Reader
}

// Prune finds matching snapshots and deletes them.
func (p *Pruner) Prune(ctx context.Context, cfg PruneConfig) error {
	if !cfg.Filter.HasFilters() {
		return fmt.Errorf(
			"at least one filter is required " +
				"(refusing to prune all snapshots)",
		)
	}

	candidates, err := p.DB.FindPruneCandidates(ctx, cfg.Filter)
	if err != nil {
		return fmt.Errorf("finding candidates: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Fprintln(p.Out,
			"No snapshots match the given filters.")
		return nil
	}

	writeSummary(p.Out, candidates)

	if cfg.DryRun {
		fmt.Fprintln(p.Out, "\nDry run: no changes made.")
		return nil
	}

	if !cfg.Yes {
		msg := fmt.Sprintf(
			"\nDelete %d snapshots?", len(candidates),
		)
		if !confirm(p.In, p.Out, msg) {
			fmt.Fprintln(p.Out, "Aborted.")
			return nil
		}
	}

	ids := make([]string, len(candidates))
	for i, s := range candidates {
		ids[i] = s.ID
	}

	deleted, err := p.DB.DeleteSnapshots(ctx, ids)
	if err != nil {
		return fmt.Errorf("deleting snapshots: %w", err)
	}

	fmt.Fprintf(p.Out, "\nDeleted %d snapshots\n", deleted)
	return nil
}

func confirm(r io.Reader, w io.Writer, msg string) bool {
	fmt.Fprintf(w, "%s [y/N] ", msg)
	scanner := bufio.NewScanner(r)
	scanner.Scan()
	ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return ans == "y" || ans == "yes"
}

func writeSummary(w io.Writer, snapshots []db.SnapshotSummary) {
	byGranularity := map[analytics.Granularity]int{}
	var names []string
	oldest, newest := snapshots[0].FetchedAt, snapshots[0].FetchedAt
	for _, s := range snapshots {
		if byGranularity[s.Granularity] == 0 {
			names = append(names, string(s.Granularity))
		}
		byGranularity[s.Granularity]++
		if s.FetchedAt.Before(oldest) {
			oldest = s.FetchedAt
		}
		if s.FetchedAt.After(newest) {
			newest = s.FetchedAt
		}
	}

	sort.Strings(names)

	fmt.Fprintf(w,
		"Found %d snapshots (fetched %s to %s)\n",
		len(snapshots),
		oldest.Local().Format(time.DateTime),
		newest.Local().Format(time.DateTime),
	)
	fmt.Fprintln(w, "\nBy granularity:")
	for _, name := range names {
		count := byGranularity[analytics.Granularity(name)]
		fmt.Fprintf(w, "  %-12s %d\n", name, count)
	}
}
