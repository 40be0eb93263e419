package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/scansplit/internal/config"
	"github.com/local/scansplit/internal/filetype"
	"github.com/local/scansplit/internal/naming"
	"github.com/local/scansplit/internal/pdfio"
	"github.com/local/scansplit/internal/qr"
	"github.com/local/scansplit/internal/relocate"
	"github.com/local/scansplit/internal/render"
	"github.com/local/scansplit/internal/splitter"
	"github.com/local/scansplit/internal/store"
)

type app struct {
	pipeline  *splitter.Pipeline
	relocator relocate.Relocator
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// build wires the concrete collaborators into a pipeline.
func build(ctx context.Context, cfg cfgpkg.Config) (*app, error) {
	a := &app{}

	var ledger splitter.RunLedger = store.Nop{}
	if cfg.Store.RedisURL != "" {
		rl, err := store.NewRedisLedger(cfg.Store.RedisURL, cfg.Store.LockTTL, cfg.Store.LedgerTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rl.Close)
		ledger = rl
	}

	rel, err := relocate.FromConfig(ctx, cfg.Paths, cfg.AWS)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.relocator = rel

	classifier := splitter.NewClassifier(qr.NewDecoder(cfg.Split.QRMaxDim), cfg.Split.MarkerPayload, cfg.Split.DecodeTimeout)
	indexer := splitter.NewIndexer(render.NewFitz(cfg.Split.RenderTimeout), classifier, float64(cfg.Split.RenderDPI))
	namer := naming.NewDated(cfg.Paths.OutputDir)
	pdf := pdfio.NewWriter()

	a.pipeline = splitter.NewPipeline(splitter.Dependencies{
		Indexer: indexer,
		Splitter: splitter.New(splitter.Options{
			Writer:      pdf,
			Counter:     pdf,
			Namer:       namer,
			EmptyRanges: emptyPolicy(cfg.Split.EmptyRanges),
			Parallelism: cfg.Split.Parallelism,
		}),
		Namer:  namer,
		Types:  filetype.New(),
		Ledger: ledger,
	})

	log.Debug().
		Str("output_dir", cfg.Paths.OutputDir).
		Bool("redis", cfg.Store.RedisURL != "").
		Bool("relocate", rel != nil).
		Int("parallelism", cfg.Split.Parallelism).
		Msg("pipeline ready")
	return a, nil
}

func emptyPolicy(p cfgpkg.EmptyRangePolicy) splitter.EmptyPolicy {
	if p == cfgpkg.EmptyEmit {
		return splitter.EmitEmpty
	}
	return splitter.SkipEmpty
}
