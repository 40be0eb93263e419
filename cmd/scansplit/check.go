package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/local/scansplit/internal/statuscheck"
	"github.com/local/scansplit/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether Redis, S3 and the output directories are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := statuscheck.Options{
			OutgoingURL: cfg.Paths.OutgoingURL,
			OutputDir:   cfg.Paths.OutputDir,
			OutgoingDir: cfg.Paths.OutgoingDir,
			AWS:         cfg.AWS,
		}
		if cfg.Store.RedisURL != "" {
			rl, err := store.NewRedisLedger(cfg.Store.RedisURL, cfg.Store.LockTTL, cfg.Store.LedgerTTL)
			if err != nil {
				opts.Redis = brokenPinger{err}
			} else {
				defer rl.Close()
				opts.Redis = rl
			}
		}

		sum := statuscheck.New(opts).Summary(cmd.Context())
		out := cmd.OutOrStdout()
		for _, row := range []struct {
			name string
			st   statuscheck.Status
		}{
			{"redis", sum.Redis},
			{"s3", sum.S3},
			{"output dir", sum.OutputDir},
			{"outgoing dir", sum.OutgoingDir},
		} {
			fmt.Fprintf(out, "%-13s %-8s %s\n", row.name, state(row.st), row.st.Message)
		}
		if !sum.OK() {
			return errors.New("one or more checks failed")
		}
		return nil
	},
}

func state(st statuscheck.Status) string {
	switch {
	case st.Disabled:
		return "off"
	case st.OK:
		return "ok"
	}
	return "FAIL"
}

// brokenPinger reports the error that prevented connecting at all.
type brokenPinger struct{ err error }

func (p brokenPinger) Ping(context.Context) error { return p.err }

func init() {
	rootCmd.AddCommand(checkCmd)
}
