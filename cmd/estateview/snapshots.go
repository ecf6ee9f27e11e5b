package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/db"
)

func newSnapshotsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > db.MaxSnapshotLimit {
				return fmt.Errorf(
					"limit must be 1-%d", db.MaxSnapshotLimit,
				)
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

			list, err := database.ListSnapshots(cmd.Context(), limit)
			if err != nil {
				return err
			}
			total, err := database.CountSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshots(cmd.OutOrStdout(), list, total)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", db.DefaultSnapshotLimit,
		"Number of snapshots to show")
	return cmd
}

func printSnapshots(
	w io.Writer, list []db.SnapshotSummary, total int,
) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots stored.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw,
		"ID\tSEQ\tFETCHED\tGRANULARITY\tSALES\tLOCATIONS\tACTIVITIES")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%d\t%d\n",
			s.ID, s.Seq, s.FetchedAt.Local().Format(time.DateTime),
			s.Granularity, s.Counts.Sales, s.Counts.Locations,
			s.Counts.Activities)
	}
	fmt.Fprintf(tw, "\n%d of %d snapshots\n", len(list), total)
	return tw.Flush()
}
