package commands

import (
	"fmt"
	"strings"
	"time"

	"jira-dashboard/internal/batch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	backfillOffset int
	backfillChunk  int
	backfillDelay  time.Duration
	backfillAll    bool
	snapshotsFrom  string
	snapshotsTo    string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute discovery cycles into the cache, one chunk at a time",
	Long: `Processes work items in key order starting at --offset and stores each item's discovery
cycle. Re-running a chunk is safe. Use --all to keep going until every item is processed.

With --snapshots-from, reconstructed weekly workload snapshots are persisted for that range
instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if snapshotsFrom != "" {
			return backfillSnapshots(cmd, a)
		}

		opts := batch.Options{Offset: backfillOffset, ChunkSize: backfillChunk, Delay: backfillDelay}

		if !backfillAll {
			rep, err := a.svc.RunBatch(ctx, opts)
			printReport(rep)
			return err
		}
		rep, err := a.svc.RunAll(ctx, opts, printReport)
		if err != nil {
			return fmt.Errorf("stopped at offset %d: %w", rep.NextOffset, err)
		}
		return nil
	},
}

func backfillSnapshots(cmd *cobra.Command, a *app) error {
	from, err := parseDay(snapshotsFrom)
	if err != nil {
		return err
	}
	to := time.Now()
	if snapshotsTo != "" {
		if to, err = parseDay(snapshotsTo); err != nil {
			return err
		}
	}
	rep, err := a.svc.BackfillSnapshots(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("Weeks: %d  Written: %s  Skipped: %d\n", rep.Weeks, green(rep.Written), rep.Skipped)
	return nil
}

func printReport(rep batch.Report) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	end := rep.Offset + rep.Processed
	fmt.Printf("%s items %d-%d of %d %s\n", cyan("Chunk"), rep.Offset, end, rep.Total, gray("("+rep.RunID+")"))
	fmt.Printf("  Processed: %d  Cached: %s  Errors: %s  Took: %v\n",
		rep.Processed, green(rep.Cached), red(rep.Errors), rep.Duration.Round(time.Millisecond))
	if len(rep.Failed) > 0 {
		fmt.Printf("  Failed: %s\n", red(strings.Join(rep.Failed, ", ")))
	}
	if rep.HasMore {
		fmt.Printf("  Next offset: %d\n", rep.NextOffset)
	} else {
		fmt.Printf("  %s\n", green("All items processed"))
	}
}

func init() {
	backfillCmd.Flags().IntVar(&backfillOffset, "offset", 0, "position in the key-sorted item list to start from")
	backfillCmd.Flags().IntVar(&backfillChunk, "chunk", 0, "items per chunk (default from BATCH_CHUNK_SIZE)")
	backfillCmd.Flags().DurationVar(&backfillDelay, "delay", 0, "pause between items (default from BATCH_DELAY_MS)")
	backfillCmd.Flags().BoolVar(&backfillAll, "all", false, "process every remaining chunk")
	backfillCmd.Flags().StringVar(&snapshotsFrom, "snapshots-from", "", "backfill weekly snapshots from this date (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&snapshotsTo, "snapshots-to", "", "last week for snapshot backfill (default today)")
}
