package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/analytics"
)

func newExportCmd() *cobra.Command {
	var (
		output  string
		filters analytics.Filters
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch a snapshot and write the combined CSV export",
		Long: `Fetch all four datasets once and write them as a single
multi-section CSV document.

Examples:
  # Write to stdout
  estateview export

  # Write to a file named after today's date
  estateview export -o .

  # Write weekly sales for Lagos listings
  estateview export --granularity weekly --location Lagos -o report.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			snap, err := fetchOnce(cmd.Context(), cfg, filters)
			if err != nil {
				return err
			}
			return writeExport(
				cmd.OutOrStdout(), output, snap, time.Now(),
			)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "",
		"Output file or directory (default stdout)")
	addFilterFlags(cmd, &filters)
	return cmd
}

// writeExport writes the export of snap to path, or to stdout
// when path is empty or "-". A directory path receives the
// default export file name.
func writeExport(
	stdout io.Writer, path string, snap *analytics.Snapshot,
	now time.Time,
) error {
	doc := snap.Export()
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, doc)
		return err
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, analytics.ExportFilename(now))
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}
