package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"templateflow/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			out := cmd.OutOrStdout()

			recent, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range recent {
				printLogLine(out, line, filter)
			}
			if !follow {
				return nil
			}
			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			return logs.Follow(runCtx, path, offset, 0, func(line string) {
				printLogLine(out, line, filter)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().Int64Var(&filter.ItemID, "item", 0, "Only entries for this item id")
	cmd.Flags().StringVar(&filter.Identity, "identity", "", "Only entries for this identity")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only entries from this component")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func printLogLine(out io.Writer, line string, filter logs.Filter) {
	entry, _ := logs.Parse(line)
	if !filter.Match(entry) {
		return
	}
	fmt.Fprintln(out, entry.Format())
}
