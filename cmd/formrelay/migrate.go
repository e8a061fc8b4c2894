package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formrelay/formrelay/internal/config"
)

func newMigrateCmd() *cobra.Command {
	var configPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a configuration file to the current configVersion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			raw, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			migrated, result, err := config.Migrate(raw)
			if err != nil {
				return err
			}
			if !result.Changed() {
				_, err := fmt.Fprintf(cmd.ErrOrStderr(), "config already at version %d\n", result.ToVersion)
				return err
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(migrated)
			} else {
				err = os.WriteFile(outPath, migrated, 0o644)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "migrated version %d -> %d, %d keyword(s) rewritten\n",
				result.FromVersion, result.ToVersion, result.Rewritten)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}
