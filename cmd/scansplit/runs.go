package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/local/scansplit/internal/store"
)

var runsLimit int64

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the Redis ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.RedisURL == "" {
			return errors.New("REDIS_URL is not set; no run ledger to read")
		}
		rl, err := store.NewRedisLedger(cfg.Store.RedisURL, cfg.Store.LockTTL, cfg.Store.LedgerTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rl.Close()
		return listRuns(cmd.Context(), rl, runsLimit, cmd.OutOrStdout())
	},
}

// runReader is the read side of the ledger.
type runReader interface {
	Recent(ctx context.Context, n int64) ([]string, error)
	Get(ctx context.Context, runID string) (store.Run, bool, error)
}

// listRuns prints one line per run, newest first. Runs whose entry has
// expired while still listed are skipped.
func listRuns(ctx context.Context, l runReader, n int64, out io.Writer) error {
	if n <= 0 {
		n = 20
	}
	ids, err := l.Recent(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	for _, id := range ids {
		run, ok, err := l.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read run %s: %w", id, err)
		}
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s  %s  %-11s  pages=%d docs=%d  %s\n",
			run.Started.Local().Format(time.DateTime), run.ID, run.Outcome,
			run.TotalPages, len(run.Outputs), run.Source)
		if run.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", run.Error)
		}
	}
	return nil
}

func init() {
	runsCmd.Flags().Int64VarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
