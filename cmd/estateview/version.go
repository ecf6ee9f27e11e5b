package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/client"
)

func newVersionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show the build version. With --check, also ask the
configured API for its version and report whether this build can
read it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "estateview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			if !check {
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(
				cmd.Context(), 10*time.Second,
			)
			defer cancel()
			v, err := newClient(cfg).ServerVersion(ctx)
			if err != nil {
				return fmt.Errorf("querying API version: %w", err)
			}
			fmt.Fprintf(out, "API %s at %s\n", v, cfg.APIURL)
			if err := client.CheckCompatible(v); err != nil {
				return err
			}
			fmt.Fprintf(out, "Compatible (requires %s or newer)\n",
				client.MinAPIVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false,
		"Check compatibility with the configured API")
	return cmd
}
