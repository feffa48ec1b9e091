package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slackclone/internal/chat/models"
	"slackclone/internal/client"
	"slackclone/internal/realtime"
)

// TailOptions holds the tail command's flags.
type TailOptions struct {
	API       string
	ChannelID uint
}

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TailOptions{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print a channel's history and follow it live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ChannelID == 0 {
				return fmt.Errorf("--channel is required")
			}

			c, err := client.New(opts.API, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runTail(ctx, c, opts.ChannelID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.API, "api", "http://localhost:3001", "chat API base URL")
	cmd.Flags().UintVar(&opts.ChannelID, "channel", 0, "channel id to follow")
	return cmd
}

func runTail(ctx context.Context, c *client.Client, channelID uint, out io.Writer) error {
	return c.Follow(ctx, channelID, func(view *client.ChannelView, ev *realtime.Event) {
		if ev == nil {
			printHistory(out, view)
			return
		}
		switch ev.Event {
		case realtime.EventNewMessage:
			fmt.Fprintln(out, formatMessage(view.Messages[len(view.Messages)-1]))
		case realtime.EventNewReaction:
			printReaction(out, view, ev)
		}
	})
}

func printHistory(out io.Writer, view *client.ChannelView) {
	n := len(view.Messages)
	if n == 0 {
		fmt.Fprintf(out, "#%d is empty, waiting for messages...\n", view.ChannelID)
		return
	}
	fmt.Fprintf(out, "#%d: %s messages, last %s\n", view.ChannelID,
		humanize.Comma(int64(n)), humanize.Time(view.Messages[n-1].Timestamp))
	for _, msg := range view.Messages {
		fmt.Fprintln(out, formatMessage(msg))
	}
}

func printReaction(out io.Writer, view *client.ChannelView, ev *realtime.Event) {
	var r models.Reaction
	if err := json.Unmarshal(ev.Data, &r); err != nil {
		return
	}
	for _, msg := range view.Messages {
		if msg.ID == r.MessageID {
			fmt.Fprintf(out, "  %s reacted %s to #%d %s\n", r.UserID, r.Emoji, msg.ID, formatReactions(msg))
			return
		}
	}
}

// formatMessage renders one message as a single line, e.g.
// "[10:00:00] alice: hello  👍 2 🎉 1".
func formatMessage(msg models.Message) string {
	line := fmt.Sprintf("[%s] %s: %s", msg.Timestamp.Format("15:04:05"), msg.Username, msg.Content)
	if summary := formatReactions(msg); summary != "" {
		line += "  " + summary
	}
	return line
}

func formatReactions(msg models.Message) string {
	counts := client.CountReactions(msg)
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s %d", c.Emoji, c.Count))
	}
	return strings.Join(parts, " ")
}
