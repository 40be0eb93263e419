// Command scansplit splits a batch-scanned PDF into its original documents
// at pages carrying a marker QR code.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/scansplit/internal/config"
	logpkg "github.com/local/scansplit/internal/logger"
	"github.com/local/scansplit/internal/metrics"
	"github.com/local/scansplit/internal/splitter"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfg       cfgpkg.Config
	inputPath string
)

var rootCmd = &cobra.Command{
	Use:   "scansplit [-i] <file.pdf>",
	Short: "Split batch-scanned PDFs at QR marker pages",
	Long: `scansplit reads a PDF produced by scanning several documents back to back,
finds the marker pages carrying the configured QR payload, and writes every
document between markers to its own PDF. The marker pages are dropped and the
input is removed only once every output has been written.

A document without markers, or with a single page, is renamed only.`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := resolveInput(inputPath, args)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return splitFile(ctx, cfg, input, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "PDF file to split")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
}

// setup loads configuration and brings up logging and metrics.
func setup(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := cfgpkg.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg = cfgpkg.FromEnv()

	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		return err
	}
	metrics.Init()
	return nil
}

func resolveInput(flag string, args []string) (string, error) {
	switch {
	case flag != "" && len(args) > 0:
		return "", errors.New("give the input either with -i or as an argument, not both")
	case flag != "":
		return flag, nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", errors.New("no input file; use scansplit -i <file.pdf>")
}

// splitFile runs one input through the pipeline and relocates the results.
// A missing input is reported on out and is not an error.
func splitFile(ctx context.Context, cfg cfgpkg.Config, input string, out io.Writer) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	defer writeMetrics(cfg.Metrics.Textfile)

	res, err := a.pipeline.Run(ctx, input)
	if errors.Is(err, splitter.ErrInputNotFound) {
		fmt.Fprintln(out, "file not found")
		return nil
	}
	if err != nil {
		return err
	}

	final := res.Written()
	if a.relocator != nil {
		moved, err := a.relocator.Relocate(ctx, cfg.Paths.OutputDir)
		if err != nil {
			return fmt.Errorf("relocate outputs: %w", err)
		}
		if len(moved) > 0 {
			final = moved
		}
	}
	for _, p := range final {
		fmt.Fprintln(out, p)
	}
	return nil
}

func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write metrics textfile")
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Str("kind", splitter.Kind(err)).Msg("scansplit failed")
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	logpkg.Close()
	if err != nil {
		os.Exit(1)
	}
}
