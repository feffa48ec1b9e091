package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slackclone/internal/chat/repository"
	"slackclone/internal/chat/service"
	"slackclone/internal/dbsql"
)

var defaultChannels = []string{"general", "random"}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default channels if they are missing",
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

			svc := service.NewChannelService(repository.NewChannelRepository(db))
			created, err := service.EnsureChannels(cmd.Context(), svc, names...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "Nothing to seed")
				return nil
			}
			for _, ch := range created {
				fmt.Fprintf(out, "✅ Created #%s (id %d)\n", ch.Name, ch.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&names, "channel", defaultChannels, "channel names to ensure")
	return cmd
}
