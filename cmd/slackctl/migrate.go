package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slackclone/internal/dbsql"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := openDatabase(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := dbsql.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Database migration completed")
			return nil
		},
	}
}
