package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the analytics API token in config.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.SaveAPIToken(token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Saved API token to %s\n", cfg.ConfigPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API bearer token")
	return cmd
}
