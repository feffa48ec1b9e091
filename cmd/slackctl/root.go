package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"slackclone/internal/config"
	"slackclone/internal/dbsql"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
}

// NewRootCommand creates the root command for the admin CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "slackctl",
		Short:         "Administer and watch the chat service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default $CONFIG_FILE or config.yaml)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTailCommand(opts))

	return cmd
}

// openDatabase loads the service configuration and connects to its database.
func openDatabase(opts *RootOptions) (*gorm.DB, func(), error) {
	if opts.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", opts.ConfigFile); err != nil {
			return nil, nil, fmt.Errorf("failed to set CONFIG_FILE: %w", err)
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return dbsql.NewDatabase(cfg)
}
